package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	JWT      JWTConfig      `mapstructure:"jwt" yaml:"jwt"`
	Relay    RelayConfig    `mapstructure:"relay" yaml:"relay"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "mongo".
	Driver     string `mapstructure:"driver" yaml:"driver"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI   string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDB    string `mapstructure:"mongo_db" yaml:"mongo_db"`
}

// JWTConfig holds settings for the handshake credential verifier.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// RelayConfig tunes the chat relay itself.
type RelayConfig struct {
	MaxMessageLength  int           `mapstructure:"max_message_length" yaml:"max_message_length"`
	MaxUsernameLength int           `mapstructure:"max_username_length" yaml:"max_username_length"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	StatsInterval     time.Duration `mapstructure:"stats_interval" yaml:"stats_interval"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "eventsy-chat.db",
			MongoURI:   "mongodb://localhost:27017",
			MongoDB:    "eventsy",
		},
		JWT: JWTConfig{
			Secret:   "",
			Issuer:   "eventsy",
			Audience: "eventsy-chat",
			TTL:      24 * time.Hour,
		},
		Relay: RelayConfig{
			MaxMessageLength:  1000,
			MaxUsernameLength: 20,
			HeartbeatInterval: 30 * time.Second,
			StatsInterval:     5 * time.Minute,
			AllowedOrigins:    []string{"*"},
		},
	}
}
