package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/riskguard/internal/alerts"
	"github.com/Rajchodisetti/riskguard/internal/risk"
)

// Root is the on-disk configuration file layout.
type Root struct {
	Engine  risk.Config   `yaml:"engine"`
	Webhook alerts.Config `yaml:"webhook"`
}

// Default returns a Root populated with the engine defaults so a partial
// YAML file only overrides what it names.
func Default() Root {
	return Root{
		Engine: risk.Config{
			Limits:      risk.DefaultLimits(),
			CapitalBase: 1000000,
		},
	}
}

// Load reads and validates a configuration file. Limit validation is
// fail-fast: a config that can never admit a trade is a startup error, not a
// runtime condition.
func Load(path string) (Root, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Engine.Limits.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
