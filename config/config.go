package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gkatanacio/bulkdl/auth"
	"github.com/gkatanacio/bulkdl/download"
)

// Config defines configuration for the bulkdl CLI.
type Config struct {
	CookieJar       string
	DestDir         string
	UserAgent       string
	ProfileURL      string
	AuthURL         string
	ValidateTimeout time.Duration
	ReadTimeout     time.Duration
	ChunkSize       int
	Progress        bool
	Username        string
	Password        string
	Targets         []TargetConfig
}

// TargetConfig is one entry of the inline target list.
type TargetConfig struct {
	URL string `yaml:"url"`
	MD5 string `yaml:"md5"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		CookieJar:       auth.DefaultJarPath(),
		DestDir:         ".",
		UserAgent:       auth.DefaultUserAgent,
		ProfileURL:      auth.DefaultProfileURL,
		AuthURL:         auth.DefaultAuthURL,
		ValidateTimeout: auth.DefaultValidateTimeout,
		ReadTimeout:     download.DefaultReadTimeout,
		ChunkSize:       download.DefaultChunkSize,
		Progress:        true,
	}
}

// yamlConfig is used for YAML unmarshaling with string durations and sizes.
type yamlConfig struct {
	CookieJar       string         `yaml:"cookie_jar"`
	DestDir         string         `yaml:"dest_dir"`
	UserAgent       string         `yaml:"user_agent"`
	ProfileURL      string         `yaml:"profile_url"`
	AuthURL         string         `yaml:"auth_url"`
	ValidateTimeout string         `yaml:"validate_timeout"`
	ReadTimeout     string         `yaml:"read_timeout"`
	ChunkSize       string         `yaml:"chunk_size"`
	Progress        *bool          `yaml:"progress"`
	Username        string         `yaml:"username"`
	Password        string         `yaml:"password"`
	Targets         []TargetConfig `yaml:"targets"`
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.CookieJar != "" {
		cfg.CookieJar = expandHome(yc.CookieJar)
	}
	if yc.DestDir != "" {
		cfg.DestDir = expandHome(yc.DestDir)
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if yc.ProfileURL != "" {
		cfg.ProfileURL = yc.ProfileURL
	}
	if yc.AuthURL != "" {
		cfg.AuthURL = yc.AuthURL
	}
	if yc.ValidateTimeout != "" {
		d, err := time.ParseDuration(yc.ValidateTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse validate_timeout: %w", err)
		}
		cfg.ValidateTimeout = d
	}
	if yc.ReadTimeout != "" {
		d, err := time.ParseDuration(yc.ReadTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if yc.ChunkSize != "" {
		size, err := ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	if yc.Progress != nil {
		cfg.Progress = *yc.Progress
	}
	cfg.Username = yc.Username
	cfg.Password = yc.Password
	cfg.Targets = yc.Targets

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the BULKDL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("BULKDL_COOKIE_JAR"); v != "" {
		c.CookieJar = expandHome(v)
	}
	if v := os.Getenv("BULKDL_DEST_DIR"); v != "" {
		c.DestDir = expandHome(v)
	}
	if v := os.Getenv("BULKDL_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("BULKDL_PROFILE_URL"); v != "" {
		c.ProfileURL = v
	}
	if v := os.Getenv("BULKDL_AUTH_URL"); v != "" {
		c.AuthURL = v
	}
	if v := os.Getenv("BULKDL_VALIDATE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse BULKDL_VALIDATE_TIMEOUT: %w", err)
		}
		c.ValidateTimeout = d
	}
	if v := os.Getenv("BULKDL_READ_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse BULKDL_READ_TIMEOUT: %w", err)
		}
		c.ReadTimeout = d
	}
	if v := os.Getenv("BULKDL_CHUNK_SIZE"); v != "" {
		size, err := ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse BULKDL_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("BULKDL_PROGRESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse BULKDL_PROGRESS: %w", err)
		}
		c.Progress = b
	}
	if v := os.Getenv("BULKDL_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("BULKDL_PASSWORD"); v != "" {
		c.Password = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.CookieJar == "" {
		return errors.New("config: cookie_jar is required")
	}
	if c.DestDir == "" {
		return errors.New("config: dest_dir is required")
	}
	for name, raw := range map[string]string{"profile_url": c.ProfileURL, "auth_url": c.AuthURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: %s must be an absolute http(s) URL, got %q", name, raw)
		}
	}
	if c.ValidateTimeout <= 0 {
		return errors.New("config: validate_timeout must be positive")
	}
	if c.ReadTimeout <= 0 {
		return errors.New("config: read_timeout must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.Password != "" && c.Username == "" {
		return errors.New("config: password given without username")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored, except Targets which are appended.
func (c Config) Merge(override Config) Config {
	if override.CookieJar != "" {
		c.CookieJar = override.CookieJar
	}
	if override.DestDir != "" {
		c.DestDir = override.DestDir
	}
	if override.UserAgent != "" {
		c.UserAgent = override.UserAgent
	}
	if override.ProfileURL != "" {
		c.ProfileURL = override.ProfileURL
	}
	if override.AuthURL != "" {
		c.AuthURL = override.AuthURL
	}
	if override.ValidateTimeout != 0 {
		c.ValidateTimeout = override.ValidateTimeout
	}
	if override.ReadTimeout != 0 {
		c.ReadTimeout = override.ReadTimeout
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Username != "" {
		c.Username = override.Username
	}
	if override.Password != "" {
		c.Password = override.Password
	}
	if len(override.Targets) > 0 {
		c.Targets = append(append([]TargetConfig(nil), c.Targets...), override.Targets...)
	}
	return c
}

// ParseBytes parses a human-readable byte string (e.g., "8KB", "1MB").
// Units are binary multiples.
func ParseBytes(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	multiplier := 1
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}

	return int(value * float64(multiplier)), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + strings.TrimPrefix(path, "~")
}
