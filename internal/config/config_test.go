package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-sync
rainwave:
  url: ws://localhost:9000/api4/websocket/
  station: 3
  user_id: 2
  api_key: abc123
connection:
  request_timeout: 2s
  correlation_nested: true
database:
  enabled: true
  host: localhost
  name: rainwave
  user: rw
writers:
  keys: [sched_current, user]
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-sync" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-sync")
	}
	if cfg.Rainwave.Station != 3 {
		t.Errorf("Rainwave.Station = %d, want 3", cfg.Rainwave.Station)
	}
	if cfg.Rainwave.UserID != 2 {
		t.Errorf("Rainwave.UserID = %d, want 2", cfg.Rainwave.UserID)
	}
	if cfg.Connection.RequestTimeout != 2*time.Second {
		t.Errorf("Connection.RequestTimeout = %v, want 2s", cfg.Connection.RequestTimeout)
	}
	if !cfg.Connection.CorrelationNested {
		t.Error("Connection.CorrelationNested = false, want true")
	}
	if !cfg.Database.Enabled || cfg.Database.Host != "localhost" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if want := []string{"sched_current", "user"}; !reflect.DeepEqual(cfg.Writers.Keys, want) {
		t.Errorf("Writers.Keys = %v, want %v", cfg.Writers.Keys, want)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RW_KEY", "secret123")
	t.Setenv("TEST_DB_PASSWORD", "pgpass")

	yaml := `
instance:
  id: test-sync
rainwave:
  user_id: 2
  api_key: ${TEST_RW_KEY}
database:
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Rainwave.APIKey != "secret123" {
		t.Errorf("Rainwave.APIKey = %q, want %q", cfg.Rainwave.APIKey, "secret123")
	}
	if cfg.Database.Password != "pgpass" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "pgpass")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-sync
rainwave:
  user_id: 2
  api_key: abc
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Rainwave.URL != DefaultURL {
		t.Errorf("Rainwave.URL = %q, want default %q", cfg.Rainwave.URL, DefaultURL)
	}
	if cfg.Rainwave.Station != DefaultStation {
		t.Errorf("Rainwave.Station = %d, want default %d", cfg.Rainwave.Station, DefaultStation)
	}
	if cfg.Connection.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("Connection.RequestTimeout = %v, want default %v", cfg.Connection.RequestTimeout, DefaultRequestTimeout)
	}
	if cfg.Connection.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("Connection.ReconnectDelay = %v, want default %v", cfg.Connection.ReconnectDelay, DefaultReconnectDelay)
	}
	if cfg.Connection.SentWindow != DefaultSentWindow {
		t.Errorf("Connection.SentWindow = %d, want default %d", cfg.Connection.SentWindow, DefaultSentWindow)
	}
	if cfg.Connection.CorrelationField != "message_id" {
		t.Errorf("Connection.CorrelationField = %q, want message_id", cfg.Connection.CorrelationField)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if !reflect.DeepEqual(cfg.Poller.Actions, DefaultPollActions) {
		t.Errorf("Poller.Actions = %v, want %v", cfg.Poller.Actions, DefaultPollActions)
	}
	if cfg.Health.Path != DefaultHealthPath {
		t.Errorf("Health.Path = %q, want default %q", cfg.Health.Path, DefaultHealthPath)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: x\n")

	if _, err := LoadAndValidate(path); err == nil {
		t.Fatal("expected validation error for missing credentials")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	if _, err := Parse([]byte("instance: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Instance: InstanceConfig{ID: "test"},
			Rainwave: RainwaveConfig{UserID: 2, APIKey: "key"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "bad station",
			mutate:  func(c *Config) { c.Rainwave.Station = -1 },
			wantErr: "rainwave.station must be >= 1, got -1",
		},
		{
			name:    "missing user id",
			mutate:  func(c *Config) { c.Rainwave.UserID = 0 },
			wantErr: "rainwave.user_id is required",
		},
		{
			name:    "missing key",
			mutate:  func(c *Config) { c.Rainwave.APIKey = "" },
			wantErr: "rainwave.api_key or rainwave.api_key_file is required",
		},
		{
			name: "key file only",
			mutate: func(c *Config) {
				c.Rainwave.APIKey = ""
				c.Rainwave.APIKeyFile = "/etc/rainwave/key"
			},
			wantErr: "",
		},
		{
			name:    "zero sent window",
			mutate:  func(c *Config) { c.Connection.SentWindow = 0 },
			wantErr: "connection.sent_window must be >= 1",
		},
		{
			name:    "negative request timeout",
			mutate:  func(c *Config) { c.Connection.RequestTimeout = -time.Second },
			wantErr: "connection.request_timeout must be > 0",
		},
		{
			name:    "database disabled skips checks",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "",
		},
		{
			name:    "database enabled missing host",
			mutate:  func(c *Config) { c.Database.Enabled = true },
			wantErr: "database.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database = DBConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "poller enabled zero concurrency",
			mutate: func(c *Config) {
				c.Poller.Enabled = true
				c.Poller.Concurrency = 0
			},
			wantErr: "poller.concurrency must be >= 1",
		},
		{
			name:    "health port out of range",
			mutate:  func(c *Config) { c.Health.Port = 70000 },
			wantErr: "health.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
