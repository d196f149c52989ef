package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "FETCHER_"

// Config is the root configuration structure for the fetcher.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Eufy     EufyConfig     `yaml:"eufy"`
	Captcha  CaptchaConfig  `yaml:"captcha"`
	Poll     PollConfig     `yaml:"poll"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EufyConfig contains the Eufy Security cloud account settings.
type EufyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Country is the ISO 3166 alpha-2 account region, e.g. "DE".
	Country string `yaml:"country"`

	// DomainBase overrides the vendor's domain lookup host.
	DomainBase string `yaml:"domain_base"`

	// RequestTimeout bounds each HTTP request (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// SessionTTL is how long a login is reused (seconds).
	SessionTTL int `yaml:"session_ttl"`

	// Timezone is the IANA zone reported at login. Empty means the host zone.
	Timezone string `yaml:"timezone"`

	// FetchParams requests fresh per-device parameters after the listing.
	FetchParams bool `yaml:"fetch_params"`
}

// CaptchaConfig contains the CAPTCHA solver settings.
type CaptchaConfig struct {
	// Provider is "gemini" or "none".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`

	// Timeout bounds a single solve (seconds).
	Timeout int `yaml:"timeout"`
}

// PollConfig contains the polling schedule.
type PollConfig struct {
	// Interval between cycle starts (seconds).
	Interval int `yaml:"interval"`

	// CycleTimeout bounds one full cycle (seconds).
	CycleTimeout int `yaml:"cycle_timeout"`

	// RunOnStart runs a cycle immediately instead of waiting one interval.
	RunOnStart bool `yaml:"run_on_start"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the ops HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains the ops API token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
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
// Environment variables follow the pattern: FETCHER_SECTION_KEY
// For example: FETCHER_EUFY_PASSWORD, FETCHER_DATABASE_PATH
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
		Eufy: EufyConfig{
			Enabled:        true,
			Country:        "US",
			DomainBase:     "https://extend.eufylife.com",
			RequestTimeout: 30,
			SessionTTL:     3600,
			FetchParams:    true,
		},
		Captcha: CaptchaConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  120,
		},
		Poll: PollConfig{
			Interval:     300,
			CycleTimeout: 120,
			RunOnStart:   true,
		},
		Database: DatabaseConfig{
			Path:        "./data/fetcher.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fetcher",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "fetcher",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FETCHER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Eufy account
	if v := getenv("EUFY_USERNAME"); v != "" {
		cfg.Eufy.Username = v
	}
	if v := getenv("EUFY_PASSWORD"); v != "" {
		cfg.Eufy.Password = v
	}
	if v := getenv("EUFY_COUNTRY"); v != "" {
		cfg.Eufy.Country = v
	}

	// CAPTCHA backend
	if v := getenv("GEMINI_API_KEY"); v != "" {
		cfg.Captcha.APIKey = v
	}

	// Poll
	if v := getenv("POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.Interval = n
		}
	}

	// Database
	if v := getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := getenv("INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := getenv("API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Security - JWT secret (always override in production)
	if v := getenv("JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

func getenv(key string) string {
	return os.Getenv(EnvPrefix + key)
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Eufy validation
	if c.Eufy.Enabled {
		if c.Eufy.Username == "" || c.Eufy.Password == "" {
			errs = append(errs, "eufy.username and eufy.password are required (set FETCHER_EUFY_USERNAME / FETCHER_EUFY_PASSWORD)")
		}
		if len(strings.TrimSpace(c.Eufy.Country)) != 2 {
			errs = append(errs, "eufy.country must be a two-letter country code")
		}
		if c.Eufy.SessionTTL < 60 {
			errs = append(errs, "eufy.session_ttl must be at least 60 seconds")
		}
		if c.Eufy.Timezone != "" {
			if _, err := time.LoadLocation(c.Eufy.Timezone); err != nil {
				errs = append(errs, fmt.Sprintf("eufy.timezone %q is not a valid zone", c.Eufy.Timezone))
			}
		}
	}

	// CAPTCHA validation
	switch c.Captcha.Provider {
	case "", "none", "gemini":
	default:
		errs = append(errs, fmt.Sprintf("captcha.provider %q must be gemini or none", c.Captcha.Provider))
	}
	if c.Captcha.Timeout <= 0 {
		errs = append(errs, "captcha.timeout must be positive")
	}

	// Poll validation
	if c.Poll.Interval < 10 {
		errs = append(errs, "poll.interval must be at least 10 seconds")
	}
	if c.Poll.CycleTimeout <= 0 {
		errs = append(errs, "poll.cycle_timeout must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// The ops API can drop sessions and trigger polls, so it is never
		// served without a token secret.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when the api is enabled (set FETCHER_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetPollInterval returns the poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}

// GetCycleTimeout returns the per-cycle timeout as a Duration.
func (c *Config) GetCycleTimeout() time.Duration {
	return time.Duration(c.Poll.CycleTimeout) * time.Second
}

// GetSessionTTL returns the Eufy session lifetime as a Duration.
func (c *Config) GetSessionTTL() time.Duration {
	return time.Duration(c.Eufy.SessionTTL) * time.Second
}

// GetRequestTimeout returns the Eufy HTTP request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Eufy.RequestTimeout) * time.Second
}

// GetCaptchaTimeout returns the CAPTCHA solve timeout as a Duration.
func (c *Config) GetCaptchaTimeout() time.Duration {
	return time.Duration(c.Captcha.Timeout) * time.Second
}

// GetLocation returns the zone reported at login, falling back to the host zone.
func (c *Config) GetLocation() *time.Location {
	if c.Eufy.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Eufy.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
