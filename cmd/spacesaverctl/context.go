package main

import (
	"fmt"
	"strings"
	"sync"

	"spacesaver/internal/config"
)

type commandContext struct {
	bindFlag   *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(bindFlag, configFlag *string) *commandContext {
	return &commandContext{bindFlag: bindFlag, configFlag: configFlag}
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
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) bind() (string, error) {
	if c.bindFlag != nil {
		if trimmed := strings.TrimSpace(*c.bindFlag); trimmed != "" {
			return trimmed, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", fmt.Errorf("load config for api bind address: %w", err)
	}
	if strings.TrimSpace(cfg.API.Bind) == "" {
		return "", fmt.Errorf("no api bind address configured")
	}
	return cfg.API.Bind, nil
}

func (c *commandContext) newClient() (*apiClient, error) {
	bind, err := c.bind()
	if err != nil {
		return nil, err
	}
	return newAPIClient(bind), nil
}
