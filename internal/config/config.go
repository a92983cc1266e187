package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Player    PlayerConfig    `toml:"player"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Session   SessionConfig   `toml:"session"`
	Validator ValidatorConfig `toml:"validator"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
}

// PlayerConfig contains playback behaviour settings
type PlayerConfig struct {
	DefaultVolume    float64 `toml:"default_volume"`
	VolumeStep       float64 `toml:"volume_step"`
	NoticeSeconds    int     `toml:"notice_seconds"`
	RestartThreshold float64 `toml:"restart_threshold_seconds"`
}

// CatalogConfig points at the track list
type CatalogConfig struct {
	Path string `toml:"path"`
}

// SessionConfig contains session persistence configuration
type SessionConfig struct {
	Enabled      bool   `toml:"enabled"`
	DatabasePath string `toml:"database_path"`
	ScopeFile    string `toml:"scope_file"`
	IdleTimeout  string `toml:"idle_timeout"`
}

// TrustedSource marks direct-download URLs that skip the network probe
type TrustedSource struct {
	Host   string `toml:"host"`
	Marker string `toml:"marker"`
}

// ValidatorConfig contains audio source validation settings
type ValidatorConfig struct {
	TrustedSources      []TrustedSource `toml:"trusted_sources"`
	ProbeTimeoutSeconds int             `toml:"probe_timeout_seconds"`
	CacheTTLMinutes     int             `toml:"cache_ttl_minutes"`
	SupportedFormats    []string        `toml:"supported_formats"`
}

// ServerConfig contains the remote-control HTTP server configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			DefaultVolume:    1.0,
			VolumeStep:       0.1,
			NoticeSeconds:    3,
			RestartThreshold: 3,
		},
		Catalog: CatalogConfig{
			Path: "./catalog.toml",
		},
		Session: SessionConfig{
			Enabled:      true,
			DatabasePath: "./ostplayer.db",
			ScopeFile:    filepath.Join(os.TempDir(), "ostplayer.session"),
			IdleTimeout:  "12h",
		},
		Validator: ValidatorConfig{
			TrustedSources: []TrustedSource{
				{Host: "dropbox.com", Marker: "raw=1"},
			},
			ProbeTimeoutSeconds: 5,
			CacheTTLMinutes:     15,
			SupportedFormats:    []string{".mp3", ".flac", ".wav"},
		},
		Server: ServerConfig{
			Port:        "8080",
			Host:        "127.0.0.1",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies .env and
// OSTPLAYER_* environment overrides
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides file values with environment variables when set
func (c *Config) applyEnv() {
	if v := os.Getenv("OSTPLAYER_CATALOG"); v != "" {
		c.Catalog.Path = v
	}
	if v := os.Getenv("OSTPLAYER_SESSION_DB"); v != "" {
		c.Session.DatabasePath = v
	}
	if v := os.Getenv("OSTPLAYER_SESSION_FILE"); v != "" {
		c.Session.ScopeFile = v
	}
	if v := os.Getenv("OSTPLAYER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OSTPLAYER_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("OSTPLAYER_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("OSTPLAYER_VOLUME"); v != "" {
		if vol, err := strconv.ParseFloat(v, 64); err == nil {
			c.Player.DefaultVolume = vol
		}
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# ostplayer configuration
# Edit the values below to customize the player.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Player.DefaultVolume < 0 || c.Player.DefaultVolume > 1 {
		return fmt.Errorf("player default volume must be between 0 and 1")
	}
	if c.Player.VolumeStep <= 0 || c.Player.VolumeStep > 1 {
		return fmt.Errorf("player volume step must be in (0, 1]")
	}
	if c.Player.NoticeSeconds < 1 {
		return fmt.Errorf("player notice duration must be at least 1 second")
	}
	if c.Player.RestartThreshold < 0 {
		return fmt.Errorf("player restart threshold cannot be negative")
	}

	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path cannot be empty")
	}

	if c.Session.Enabled {
		if c.Session.DatabasePath == "" {
			return fmt.Errorf("session database path cannot be empty")
		}
		if c.Session.ScopeFile == "" {
			return fmt.Errorf("session scope file cannot be empty")
		}
		if _, err := time.ParseDuration(c.Session.IdleTimeout); err != nil {
			return fmt.Errorf("invalid session idle timeout %q: %w", c.Session.IdleTimeout, err)
		}
	}

	if c.Validator.ProbeTimeoutSeconds < 1 {
		return fmt.Errorf("validator probe timeout must be at least 1 second")
	}
	if c.Validator.CacheTTLMinutes < 0 {
		return fmt.Errorf("validator cache TTL cannot be negative")
	}
	for _, ts := range c.Validator.TrustedSources {
		if ts.Host == "" || ts.Marker == "" {
			return fmt.Errorf("trusted sources need both host and marker")
		}
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// SessionIdleTimeout returns the parsed idle timeout, zero when disabled
func (c *Config) SessionIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.IdleTimeout)
	if err != nil {
		return 0
	}
	return d
}

// ProbeTimeout returns the validator HEAD request timeout
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Validator.ProbeTimeoutSeconds) * time.Second
}

// NoticeDuration returns how long a notice stays visible
func (c *Config) NoticeDuration() time.Duration {
	return time.Duration(c.Player.NoticeSeconds) * time.Second
}
