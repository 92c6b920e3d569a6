package magctl

import (
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/nordix/magtable/internal/config"
)

type Option func(*Config) error

func LoadConfig(v *viper.Viper) Option {
	return func(c *Config) error {
		return config.Unmarshal(v, c)
	}
}

func WithConfig(cfg *Config) Option {
	return func(c *Config) error {
		*c = *cfg
		return nil
	}
}

func WithTableSizeBound(m0 uint32) Option {
	return func(c *Config) error {
		c.M0 = m0
		return nil
	}
}

func WithMaxTargets(n uint32) Option {
	return func(c *Config) error {
		c.N = n
		return nil
	}
}

func WithLogLevel(level zerolog.Level) Option {
	return func(c *Config) error {
		c.logger = c.logger.Level(level)
		return nil
	}
}
