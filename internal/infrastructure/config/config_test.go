package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// validConfig returns defaults with the required secrets filled in.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Eufy.Username = "user@example.com"
	cfg.Eufy.Password = "hunter2"
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
eufy:
  username: "user@example.com"
  password: "hunter2"
  country: "de"
  session_ttl: 1800
captcha:
  provider: "none"
poll:
  interval: 60
  cycle_timeout: 45
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
influxdb:
  enabled: true
  url: "http://influx:8086"
  org: "home"
  bucket: "telemetry"
api:
  enabled: true
  port: 9000
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Eufy.Country != "de" {
		t.Errorf("Eufy.Country = %q, want %q", cfg.Eufy.Country, "de")
	}
	if cfg.GetSessionTTL() != 30*time.Minute {
		t.Errorf("GetSessionTTL() = %v, want 30m", cfg.GetSessionTTL())
	}
	if cfg.GetPollInterval() != time.Minute {
		t.Errorf("GetPollInterval() = %v, want 1m", cfg.GetPollInterval())
	}
	if cfg.GetCycleTimeout() != 45*time.Second {
		t.Errorf("GetCycleTimeout() = %v, want 45s", cfg.GetCycleTimeout())
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.InfluxDB.Bucket != "telemetry" {
		t.Errorf("InfluxDB.Bucket = %q, want %q", cfg.InfluxDB.Bucket, "telemetry")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}

	// Unset values keep their defaults.
	if cfg.Eufy.DomainBase != "https://extend.eufylife.com" {
		t.Errorf("Eufy.DomainBase = %q, want default", cfg.Eufy.DomainBase)
	}
	if cfg.GetCaptchaTimeout() != 120*time.Second {
		t.Errorf("GetCaptchaTimeout() = %v, want 120s", cfg.GetCaptchaTimeout())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_CredentialsFromEnvironment(t *testing.T) {
	path := writeConfig(t, `
eufy:
  country: "GB"
`)
	t.Setenv("FETCHER_EUFY_USERNAME", "env@example.com")
	t.Setenv("FETCHER_EUFY_PASSWORD", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Eufy.Username != "env@example.com" || cfg.Eufy.Password != "from-env" {
		t.Errorf("credentials = (%q, %q), want environment values", cfg.Eufy.Username, cfg.Eufy.Password)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
eufy:
  enabled: true
database:
  path: "/tmp/test.db"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for missing credentials, got nil")
	}
	if !strings.Contains(err.Error(), "eufy.username") {
		t.Errorf("Load() error = %v, want mention of eufy.username", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "eufy disabled needs no credentials",
			mutate:  func(c *Config) { c.Eufy.Enabled = false; c.Eufy.Password = "" },
			wantErr: false,
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Eufy.Password = "" },
			wantErr: true,
		},
		{
			name:    "bad country",
			mutate:  func(c *Config) { c.Eufy.Country = "GER" },
			wantErr: true,
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Eufy.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "short session ttl",
			mutate:  func(c *Config) { c.Eufy.SessionTTL = 5 },
			wantErr: true,
		},
		{
			name:    "unknown captcha provider",
			mutate:  func(c *Config) { c.Captcha.Provider = "ocr" },
			wantErr: true,
		},
		{
			name:    "poll interval too small",
			mutate:  func(c *Config) { c.Poll.Interval = 1 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without org",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "api enabled with secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.Security.JWT.Secret = validJWTSecret
			},
			wantErr: false,
		},
		{
			name:    "api enabled without secret",
			mutate:  func(c *Config) { c.API.Enabled = true },
			wantErr: true,
		},
		{
			name: "api JWT secret too short",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.Security.JWT.Secret = "short"
			},
			wantErr: true,
		},
		{
			name: "api invalid port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
				c.Security.JWT.Secret = validJWTSecret
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Path = ""
	cfg.MQTT.QoS = 9

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	for _, want := range []string{"database.path", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, want mention of %s", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Eufy: EufyConfig{RequestTimeout: 15},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetRequestTimeout().Seconds(); got != 15 {
		t.Errorf("GetRequestTimeout() = %v, want 15", got)
	}
}

func TestConfig_GetLocation(t *testing.T) {
	cfg := &Config{}
	if cfg.GetLocation() != time.Local {
		t.Error("GetLocation() with no timezone should be time.Local")
	}

	cfg.Eufy.Timezone = "UTC"
	if got := cfg.GetLocation().String(); got != "UTC" {
		t.Errorf("GetLocation() = %q, want UTC", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("FETCHER_EUFY_USERNAME", "env-user")
	t.Setenv("FETCHER_EUFY_PASSWORD", "env-pass")
	t.Setenv("FETCHER_EUFY_COUNTRY", "NL")
	t.Setenv("FETCHER_GEMINI_API_KEY", "gem-key")
	t.Setenv("FETCHER_POLL_INTERVAL", "600")
	t.Setenv("FETCHER_DATABASE_PATH", "/custom/path.db")
	t.Setenv("FETCHER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("FETCHER_MQTT_USERNAME", "testuser")
	t.Setenv("FETCHER_MQTT_PASSWORD", "testpass")
	t.Setenv("FETCHER_INFLUXDB_URL", "http://tsdb:8086")
	t.Setenv("FETCHER_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("FETCHER_API_HOST", "192.168.1.1")
	t.Setenv("FETCHER_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		name, got, want string
	}{
		{"Eufy.Username", cfg.Eufy.Username, "env-user"},
		{"Eufy.Password", cfg.Eufy.Password, "env-pass"},
		{"Eufy.Country", cfg.Eufy.Country, "NL"},
		{"Captcha.APIKey", cfg.Captcha.APIKey, "gem-key"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.URL", cfg.InfluxDB.URL, "http://tsdb:8086"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.Poll.Interval != 600 {
		t.Errorf("Poll.Interval = %d, want 600", cfg.Poll.Interval)
	}
}

func TestApplyEnvOverrides_BadInterval(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("FETCHER_POLL_INTERVAL", "soon")

	applyEnvOverrides(cfg)

	if cfg.Poll.Interval != 300 {
		t.Errorf("Poll.Interval = %d, want default 300", cfg.Poll.Interval)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if !cfg.Eufy.Enabled {
		t.Error("defaultConfig should enable eufy")
	}
	if cfg.GetSessionTTL() != time.Hour {
		t.Errorf("defaultConfig session TTL = %v, want 1h", cfg.GetSessionTTL())
	}
	if cfg.GetCycleTimeout() != 120*time.Second {
		t.Errorf("defaultConfig cycle timeout = %v, want 120s", cfg.GetCycleTimeout())
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Enabled || cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave optional sinks disabled")
	}
}
