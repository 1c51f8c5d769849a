package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fieldcap/internal/client"
	"fieldcap/internal/config"
	"fieldcap/internal/session"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiClient builds a daemon client; the backend URL must be configured.
func (c *commandContext) apiClient() (*client.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.BackendConfigured() {
		return nil, fmt.Errorf("no backend configured: set backend.base_url in the config file or export FIELDCAP_API_URL")
	}
	return client.New(cfg.Backend), nil
}

func (c *commandContext) sessionManager() (*session.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return session.NewManager(cfg.Paths.DataDir), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
