package retry

import (
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Config is the single retry knob for the upload transport: the
// attempt ceiling plus the exponential backoff base (1s, 2s, 4s, ...).
type Config struct {
	Attempts  uint          `env:"ATTEMPTS" envDefault:"3"`
	BaseDelay time.Duration `env:"BASE_DELAY" envDefault:"1s"`
	MaxDelay  time.Duration `env:"MAX_DELAY" envDefault:"30s"`
}

// ToRetryOptions maps the config onto retry-go options. BackOffDelay
// doubles the delay on every retry, giving 2^(attempt-1) * BaseDelay.
func (c *Config) ToRetryOptions() []retry.Option {
	return []retry.Option{
		retry.Attempts(c.Attempts),
		retry.Delay(c.BaseDelay),
		retry.MaxDelay(c.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
}

func DefaultConfig() *Config {
	return &Config{
		Attempts:  defaultAttempts,
		BaseDelay: defaultBaseDelay,
		MaxDelay:  defaultMaxDelay,
	}
}
