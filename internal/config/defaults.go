package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultURL               = "wss://rainwave.cc/api4/websocket/"
	DefaultStation           = 1
	DefaultRequestTimeout    = 4 * time.Second
	DefaultReconnectDelay    = 500 * time.Millisecond
	DefaultKeepaliveInterval = 45 * time.Second
	DefaultConnectTimeout    = 3 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultSentWindow        = 10
	DefaultCorrelationField  = "message_id"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 1024
	DefaultPollInterval      = 1 * time.Minute
	DefaultPollConcurrency   = 2
	DefaultHealthPort        = 8080
	DefaultHealthPath        = "/health"
)

// DefaultPollActions are the read-only actions polled when none are configured.
var DefaultPollActions = []string{"request_line", "station_song_count"}

func (c *Config) applyDefaults() {
	if c.Rainwave.URL == "" {
		c.Rainwave.URL = DefaultURL
	}
	if c.Rainwave.Station == 0 {
		c.Rainwave.Station = DefaultStation
	}

	conn := &c.Connection
	if conn.RequestTimeout == 0 {
		conn.RequestTimeout = DefaultRequestTimeout
	}
	if conn.ReconnectDelay == 0 {
		conn.ReconnectDelay = DefaultReconnectDelay
	}
	if conn.KeepaliveInterval == 0 {
		conn.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if conn.ConnectTimeout == 0 {
		conn.ConnectTimeout = DefaultConnectTimeout
	}
	if conn.WriteTimeout == 0 {
		conn.WriteTimeout = DefaultWriteTimeout
	}
	if conn.SentWindow == 0 {
		conn.SentWindow = DefaultSentWindow
	}
	if conn.CorrelationField == "" {
		conn.CorrelationField = DefaultCorrelationField
	}

	applyDBDefaults(&c.Database)

	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if len(c.Poller.Actions) == 0 {
		c.Poller.Actions = append([]string(nil), DefaultPollActions...)
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
