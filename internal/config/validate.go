package config

import (
	"fmt"
	"strings"
)

var knownBlobDrivers = map[string]struct{}{
	"fs":     {},
	"memory": {},
	"s3":     {},
}

var knownProviders = map[string]struct{}{
	"ip-api":   {},
	"ipapi.co": {},
	"ipinfo":   {},
}

// Validate rejects configurations the daemon cannot run with. A missing
// backend URL is deliberately not an error here; the CLI warns instead.
func (c *Config) Validate() error {
	if _, ok := knownBlobDrivers[c.Blob.Driver]; !ok {
		return fmt.Errorf("blob.driver: unsupported value %q (use fs, memory, or s3)", c.Blob.Driver)
	}
	if c.Blob.Driver == "s3" && strings.TrimSpace(c.Blob.S3.Bucket) == "" {
		return fmt.Errorf("blob.s3.bucket: required when blob.driver is s3")
	}
	for _, name := range c.Geo.Providers {
		if _, ok := knownProviders[name]; !ok {
			return fmt.Errorf("geo.providers: unknown provider %q", name)
		}
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	seen := make(map[string]struct{}, len(c.Testers))
	for _, tester := range c.Testers {
		if tester.Name == "" || tester.Email == "" {
			return fmt.Errorf("testers: entries need both name and email (got %q / %q)", tester.Name, tester.Email)
		}
		key := strings.ToLower(tester.Email)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("testers: duplicate email %q", tester.Email)
		}
		seen[key] = struct{}{}
	}
	return nil
}
