package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	LogConsole bool   `mapstructure:"log_console" yaml:"log_console"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// AllowAnonymous lets connections without a token in; they get a minted
	// user id for the session.
	AllowAnonymous bool `mapstructure:"allow_anonymous" yaml:"allow_anonymous"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	HeartbeatMissed   int           `mapstructure:"heartbeat_missed" yaml:"heartbeat_missed"`
	EventQueueSize    int           `mapstructure:"event_queue_size" yaml:"event_queue_size"`

	// DefaultRooms are created in the store at first start so the server is
	// usable without an external room-management surface.
	DefaultRooms []string `mapstructure:"default_rooms" yaml:"default_rooms"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogConsole:        true,
		DatabasePath:      "relaychat.db",
		JWTSecret:         "",
		JWTIssuer:         "relaychat",
		JWTAudience:       "relaychat-clients",
		AllowAnonymous:    true,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatMissed:   2,
		EventQueueSize:    32,
		DefaultRooms:      []string{"general"},
	}
}
