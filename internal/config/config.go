package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Backend describes how the CLI reaches the fieldcap daemon. The daemon
// enforces the same Token on its API routes when one is set. BaseURL and
// Token may also arrive through environment variables; see normalize for
// the documented precedence.
type Backend struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// S3 holds settings for the s3 blob driver (AWS S3 or MinIO).
type S3 struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PathStyle       bool   `toml:"path_style"`
}

// Blob selects and configures video blob storage.
type Blob struct {
	// Driver is one of "fs", "memory", or "s3".
	Driver string `toml:"driver"`
	// Dir is the filesystem root for the fs driver.
	Dir string `toml:"dir"`
	// SigningSecret signs download URLs minted by the fs and memory
	// drivers.
	SigningSecret string `toml:"signing_secret"`
	// SignedURLDays is the lifetime of minted download links.
	SignedURLDays int `toml:"signed_url_days"`
	S3            S3  `toml:"s3"`
}

// Geo configures the location acquisition chain.
type Geo struct {
	// GPSDAddress is the gpsd TCP endpoint, normally localhost:2947.
	// Empty disables the GPS step entirely.
	GPSDAddress string `toml:"gpsd_address"`
	// GPSTimeoutSeconds caps the wait for a live fix. Cached fixes are
	// never accepted.
	GPSTimeoutSeconds int `toml:"gps_timeout_seconds"`
	// GeocodeURL is the reverse-geocoding endpoint (Nominatim-style).
	GeocodeURL            string `toml:"geocode_url"`
	GeocodeTimeoutSeconds int    `toml:"geocode_timeout_seconds"`
	// Providers orders the direct IP-geolocation fallbacks. Known names:
	// "ip-api", "ipapi.co", "ipinfo".
	Providers              []string `toml:"providers"`
	ProviderTimeoutSeconds int      `toml:"provider_timeout_seconds"`
	IPInfoToken            string   `toml:"ipinfo_token"`
	DisableDirectProviders bool     `toml:"disable_direct_providers"`
}

// Tester is one entry in the identity allow-list shown on the user-info
// screen. Testers are configured, never self-registered.
type Tester struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for fieldcap.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the daemon bind address
//   - Backend: how the CLI reaches the daemon
//   - Blob: video blob storage driver and signing
//   - Geo: GPS, reverse geocoding, and IP-geolocation fallbacks
//   - Testers: the identity allow-list
//   - Logging: log format and level
type Config struct {
	Paths   Paths    `toml:"paths"`
	Backend Backend  `toml:"backend"`
	Blob    Blob     `toml:"blob"`
	Geo     Geo      `toml:"geo"`
	Testers []Tester `toml:"testers"`
	Logging Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fieldcap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fieldcap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Blob.Driver == "fs" && strings.TrimSpace(c.Blob.Dir) != "" {
		if err := os.MkdirAll(c.Blob.Dir, 0o755); err != nil {
			return fmt.Errorf("create blob directory %q: %w", c.Blob.Dir, err)
		}
	}
	return nil
}

// BackendConfigured reports whether the CLI knows how to reach a daemon.
// Absence is a warning, not a hard failure: the app still renders, every
// network call will surface its own error.
func (c *Config) BackendConfigured() bool {
	return strings.TrimSpace(c.Backend.BaseURL) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
