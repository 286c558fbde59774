// internal/workers/placement/run-matching-now/config.go
package runmatchingnow

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
