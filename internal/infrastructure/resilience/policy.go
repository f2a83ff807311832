package resilience

import "time"

type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

type BreakerConfig struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryConfig
	Breaker BreakerConfig
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			MinRequests:      8,
			FailureRatio:     0.5,
			OpenTimeout:      20 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

func (c Config) withDefaults() Config {
	out := c
	def := DefaultConfig()

	if out.Retry.MaxAttempts <= 0 {
		out.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if out.Retry.InitialBackoff <= 0 {
		out.Retry.InitialBackoff = def.Retry.InitialBackoff
	}
	if out.Retry.MaxBackoff <= 0 {
		out.Retry.MaxBackoff = def.Retry.MaxBackoff
	}
	if out.Retry.MaxBackoff < out.Retry.InitialBackoff {
		out.Retry.MaxBackoff = out.Retry.InitialBackoff
	}
	if out.Retry.Multiplier < 1.0 {
		out.Retry.Multiplier = def.Retry.Multiplier
	}

	if out.Breaker.MinRequests == 0 {
		out.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if out.Breaker.OpenTimeout <= 0 {
		out.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if out.Breaker.HalfOpenMaxCalls == 0 {
		out.Breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}

	return out
}
