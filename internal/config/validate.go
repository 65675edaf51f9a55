package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Rainwave.URL == "" {
		return errors.New("rainwave.url is required")
	}
	if c.Rainwave.Station < 1 {
		return fmt.Errorf("rainwave.station must be >= 1, got %d", c.Rainwave.Station)
	}
	if c.Rainwave.UserID < 1 {
		return errors.New("rainwave.user_id is required")
	}
	if c.Rainwave.APIKey == "" && c.Rainwave.APIKeyFile == "" {
		return errors.New("rainwave.api_key or rainwave.api_key_file is required")
	}

	if err := c.Connection.validate("connection"); err != nil {
		return err
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Writers.BatchSize < 1 {
			return errors.New("writers.batch_size must be >= 1")
		}
		if c.Writers.BufferSize < 1 {
			return errors.New("writers.buffer_size must be >= 1")
		}
		if c.Writers.FlushInterval <= 0 {
			return errors.New("writers.flush_interval must be > 0")
		}
	}

	if c.Poller.Enabled {
		if c.Poller.Concurrency < 1 {
			return errors.New("poller.concurrency must be >= 1")
		}
		if c.Poller.Interval <= 0 {
			return errors.New("poller.interval must be > 0")
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (cc *ConnectionConfig) validate(prefix string) error {
	if cc.RequestTimeout <= 0 {
		return fmt.Errorf("%s.request_timeout must be > 0", prefix)
	}
	if cc.ReconnectDelay < 0 {
		return fmt.Errorf("%s.reconnect_delay must be >= 0", prefix)
	}
	if cc.KeepaliveInterval <= 0 {
		return fmt.Errorf("%s.keepalive_interval must be > 0", prefix)
	}
	if cc.ConnectTimeout <= 0 {
		return fmt.Errorf("%s.connect_timeout must be > 0", prefix)
	}
	if cc.SentWindow < 1 {
		return fmt.Errorf("%s.sent_window must be >= 1", prefix)
	}
	if cc.CorrelationField == "" {
		return fmt.Errorf("%s.correlation_field is required", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
