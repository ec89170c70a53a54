package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"filescleaner/internal/config"
)

type commandContext struct {
	configFlag      *string
	logLevelFlag    *string
	interactiveFlag *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, interactiveFlag *bool) *commandContext {
	return &commandContext{
		configFlag:      configFlag,
		logLevelFlag:    logLevelFlag,
		interactiveFlag: interactiveFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// saveConfig validates cfg and writes it back to the file it was loaded from.
func (c *commandContext) saveConfig(cfg *config.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := cfg.Save(c.configPath); err != nil {
		return "", err
	}
	return c.configPath, nil
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

func (c *commandContext) interactive() bool {
	return c.interactiveFlag != nil && *c.interactiveFlag
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
