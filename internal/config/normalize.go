package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment override precedence, first match wins. Documented in the
// sample config.
var (
	backendURLEnvVars   = []string{"FIELDCAP_API_URL", "FIELDCAP_BACKEND_URL"}
	backendTokenEnvVars = []string{"FIELDCAP_API_TOKEN", "FIELDCAP_ACCESS_TOKEN"}
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	if err := c.normalizeBlob(); err != nil {
		return err
	}
	c.normalizeGeo()
	c.normalizeTesters()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = strings.TrimRight(firstEnv(backendURLEnvVars), "/")
	}
	if strings.TrimSpace(c.Backend.Token) == "" {
		c.Backend.Token = firstEnv(backendTokenEnvVars)
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultBackendTimeoutSeconds
	}
}

func (c *Config) normalizeBlob() error {
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	if c.Blob.Driver == "" {
		c.Blob.Driver = defaultBlobDriver
	}
	if strings.TrimSpace(c.Blob.Dir) == "" {
		c.Blob.Dir = defaultBlobDir
	}
	var err error
	if c.Blob.Dir, err = expandPath(c.Blob.Dir); err != nil {
		return fmt.Errorf("blob.dir: %w", err)
	}
	if c.Blob.SignedURLDays <= 0 {
		c.Blob.SignedURLDays = defaultSignedURLDays
	}
	return nil
}

func (c *Config) normalizeGeo() {
	c.Geo.GPSDAddress = strings.TrimSpace(c.Geo.GPSDAddress)
	if c.Geo.GPSTimeoutSeconds <= 0 {
		c.Geo.GPSTimeoutSeconds = defaultGPSTimeoutSeconds
	}
	c.Geo.GeocodeURL = strings.TrimSpace(c.Geo.GeocodeURL)
	if c.Geo.GeocodeURL == "" {
		c.Geo.GeocodeURL = defaultGeocodeURL
	}
	if c.Geo.GeocodeTimeoutSeconds <= 0 {
		c.Geo.GeocodeTimeoutSeconds = defaultGeocodeTimeoutSeconds
	}
	if c.Geo.ProviderTimeoutSeconds <= 0 {
		c.Geo.ProviderTimeoutSeconds = defaultProviderTimeoutSeconds
	}
	cleaned := c.Geo.Providers[:0]
	for _, name := range c.Geo.Providers {
		if trimmed := strings.ToLower(strings.TrimSpace(name)); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	c.Geo.Providers = cleaned
	if len(c.Geo.Providers) == 0 {
		c.Geo.Providers = append([]string(nil), defaultProviders...)
	}
}

func (c *Config) normalizeTesters() {
	cleaned := c.Testers[:0]
	for _, tester := range c.Testers {
		tester.Name = strings.TrimSpace(tester.Name)
		tester.Email = strings.TrimSpace(tester.Email)
		if tester.Name == "" && tester.Email == "" {
			continue
		}
		cleaned = append(cleaned, tester)
	}
	c.Testers = cleaned
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func firstEnv(names []string) string {
	for _, name := range names {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return ""
}
