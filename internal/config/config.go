package config

import "time"

// Config is the root configuration for an rwsync instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Rainwave   RainwaveConfig   `yaml:"rainwave"`
	Connection ConnectionConfig `yaml:"connection"`
	Database   DBConfig         `yaml:"database"`
	Writers    WritersConfig    `yaml:"writers"`
	Poller     PollerConfig     `yaml:"poller"`
	Health     HealthConfig     `yaml:"health"`
}

// InstanceConfig identifies this process in logs and archived rows.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// RainwaveConfig holds the service address and account.
type RainwaveConfig struct {
	URL        string `yaml:"url"`          // Base socket address; the station is appended
	Station    int    `yaml:"station"`      // Station id (sid)
	UserID     int64  `yaml:"user_id"`      // Account the API key belongs to
	APIKey     string `yaml:"api_key"`      // Inline key, usually ${RAINWAVE_API_KEY}
	APIKeyFile string `yaml:"api_key_file"` // Key file; wins over api_key when set
}

// ConnectionConfig tunes the session engine.
type ConnectionConfig struct {
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	SentWindow        int           `yaml:"sent_window"`
	CorrelationField  string        `yaml:"correlation_field"`
	CorrelationNested bool          `yaml:"correlation_nested"`
}

// DBConfig holds the archive database connection.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WritersConfig holds archive writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Keys          []string      `yaml:"keys"` // Bus keys to archive; empty archives everything
}

// PollerConfig holds snapshot poller settings.
type PollerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Actions     []string      `yaml:"actions"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
