package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Chikka gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Chikka   ChikkaConfig   `yaml:"chikka"`
	Auth     AuthConfig     `yaml:"auth"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	Pipes    []string       `yaml:"pipes"`
	Relays   []string       `yaml:"relays"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains the inbound webhook HTTP server settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Path     string              `yaml:"path"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`

	// BodyLimit caps the webhook request body size in bytes.
	BodyLimit int64 `yaml:"body_limit"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// ChikkaConfig contains the SMS provider credentials and endpoint.
type ChikkaConfig struct {
	ShortCode string `yaml:"shortcode"`
	ClientID  string `yaml:"client_id"`
	SecretKey string `yaml:"secret_key"`
	SendURL   string `yaml:"send_url"`
	// Timeout is the outbound HTTP timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// AuthConfig controls how device authorization is resolved during admission.
type AuthConfig struct {
	// Mode selects the resolver: "local" reads the in-memory registry,
	// "bus" issues a correlated device-info request over MQTT.
	Mode string `yaml:"mode"`

	// Strict switches the webhook response on authorization failure from
	// the aggregator-friendly 200 acknowledgement to a 401 rejection.
	Strict bool `yaml:"strict"`

	// LookupTimeout is the correlated lookup deadline in seconds.
	LookupTimeout int `yaml:"lookup_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains settings for the registry snapshot store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains the optional metrics sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CHIKKA_SECTION_KEY
// For example: CHIKKA_SERVER_PORT, CHIKKA_SECRET_KEY.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Path: "/chikka",
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			BodyLimit: 64 << 10,
		},
		Chikka: ChikkaConfig{
			SendURL: "https://post.chikka.com/smsapi/request",
			Timeout: 10,
		},
		Auth: AuthConfig{
			Mode:          "local",
			LookupTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "chikka-gateway",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/chikka-gateway.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Pipes:  []string{"messages"},
		Relays: []string{"commands"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CHIKKA_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHIKKA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CHIKKA_SERVER_PATH"); v != "" {
		cfg.Server.Path = v
	}
	if v := os.Getenv("CHIKKA_SHORTCODE"); v != "" {
		cfg.Chikka.ShortCode = v
	}
	if v := os.Getenv("CHIKKA_CLIENT_ID"); v != "" {
		cfg.Chikka.ClientID = v
	}
	if v := os.Getenv("CHIKKA_SECRET_KEY"); v != "" {
		cfg.Chikka.SecretKey = v
	}
	if v := os.Getenv("CHIKKA_SEND_URL"); v != "" {
		cfg.Chikka.SendURL = v
	}
	if v := os.Getenv("CHIKKA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CHIKKA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CHIKKA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("CHIKKA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CHIKKA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		// Tolerate a bare path like "chikka".
		c.Server.Path = "/" + c.Server.Path
	}
	if c.Server.BodyLimit < 1 {
		errs = append(errs, "server.body_limit must be at least 1 byte")
	}

	if c.Chikka.ShortCode == "" {
		errs = append(errs, "chikka.shortcode is required")
	}
	if c.Chikka.ClientID == "" {
		errs = append(errs, "chikka.client_id is required")
	}
	if c.Chikka.SecretKey == "" {
		errs = append(errs, "chikka.secret_key is required (set CHIKKA_SECRET_KEY environment variable)")
	}
	if c.Chikka.SendURL == "" {
		errs = append(errs, "chikka.send_url is required")
	}

	switch c.Auth.Mode {
	case "local", "bus":
	default:
		errs = append(errs, `auth.mode must be "local" or "bus"`)
	}
	if c.Auth.LookupTimeout < 1 {
		errs = append(errs, "auth.lookup_timeout must be at least 1 second")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(c.Pipes) == 0 {
		errs = append(errs, "at least one output pipe is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// GetLookupTimeout returns the correlated lookup deadline as a Duration.
func (c *Config) GetLookupTimeout() time.Duration {
	return time.Duration(c.Auth.LookupTimeout) * time.Second
}

// GetChikkaTimeout returns the outbound provider HTTP timeout as a Duration.
func (c *Config) GetChikkaTimeout() time.Duration {
	return time.Duration(c.Chikka.Timeout) * time.Second
}
