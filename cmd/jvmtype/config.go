package main

import (
	"fmt"
	"os"
	"path"

	"github.com/pelletier/go-toml/v2"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
)

// Config is the optional TOML configuration file. Command line flags that
// are set explicitly take precedence.
type Config struct {
	Workers  int  `toml:"workers"`
	FailFast bool `toml:"fail_fast"`
	Verbose  bool `toml:"verbose"`

	// Methods restricts the analysis to methods matching one of the
	// patterns. Patterns use path.Match syntax against "owner.name",
	// e.g. "java/util/*.get*".
	Methods []string `toml:"methods"`

	// Format is "short" (references print as R) or "descriptors".
	Format string `toml:"format"`
}

func LoadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Format {
	case "", "short", "descriptors":
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	for _, p := range c.Methods {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("bad method pattern %q: %w", p, err)
		}
	}
	return nil
}

// filter returns the method filter for the configured patterns, or nil if
// all methods are selected.
func (c *Config) filter() func(owner string, m *bytecode.Method) bool {
	if len(c.Methods) == 0 {
		return nil
	}
	return func(owner string, m *bytecode.Method) bool {
		name := owner + "." + m.Name
		for _, p := range c.Methods {
			if ok, _ := path.Match(p, name); ok {
				return true
			}
		}
		return false
	}
}
