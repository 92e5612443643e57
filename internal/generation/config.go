// internal/generation/config.go
package generation

import (
	"time"

	"loan-checker/internal/common/config"
)

type Config struct {
	Model          string
	MaxDuration    time.Duration
	Buffer         int
	EnforceRequest bool
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Model:          cfg.Model.Name,
		MaxDuration:    config.GetDuration(cfg.Generation.MaxDuration),
		Buffer:         cfg.Generation.Buffer,
		EnforceRequest: cfg.Validation.EnforceRequest,
	}
}

func (c *Config) maxDuration() time.Duration {
	if c.MaxDuration <= 0 {
		return 30 * time.Second
	}
	return c.MaxDuration
}
