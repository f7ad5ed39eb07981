package storage

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"videoIngest/core"
)

// ResilienceConfig tunes ResilientEmbedder.
type ResilienceConfig struct {
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	Retry             core.RetryPolicy
	BreakerTimeout    time.Duration
	FailureRatio      float64
}

// ResilientEmbedder wraps an Embedder with rate limiting, a circuit breaker and retries.
type ResilientEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   core.RetryPolicy
	logger  *log.Logger
}

func NewResilientEmbedder(inner Embedder, cfg ResilienceConfig) *ResilientEmbedder {
	logger := log.New(os.Stdout, "[EMBED] ", log.LstdFlags)

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 60 * time.Second
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = core.DefaultRetryPolicy()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Printf("Circuit breaker %s state change: %s -> %s", name, from, to)
		},
	})

	return &ResilientEmbedder{
		inner:   inner,
		limiter: limiter,
		breaker: breaker,
		retry:   cfg.Retry,
		logger:  logger,
	}
}

func (r *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := core.Retry(ctx, r.retry, "embed", r.logger, func(ctx context.Context) error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return core.Permanent(err)
			}
		}
		out, err := r.breaker.Execute(func() (interface{}, error) {
			return r.inner.Embed(ctx, texts)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return core.Permanent(err)
		}
		if err != nil {
			return err
		}
		vectors, _ = out.([][]float32)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// BreakerState exposes the circuit breaker state for logging.
func (r *ResilientEmbedder) BreakerState() gobreaker.State {
	return r.breaker.State()
}
