package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pandson7/product-image-ocr-112820251703/internal/api/dto"
)

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxAttempts = 30
)

// ErrTimeout is returned when the attempt budget runs out before the job is terminal.
// It is distinct from a FAILED job, which Poll returns as a normal result.
var ErrTimeout = errors.New("polling timed out before the job finished")

// ResultGetter reads a job result
type ResultGetter interface {
	GetResult(ctx context.Context, jobID string) (*dto.ResultResponse, error)
}

// Poller queries a job until it is terminal or the attempt budget is spent
type Poller struct {
	Interval          time.Duration
	MaxAttempts       int
	BackoffMultiplier float64
	MaxInterval       time.Duration

	getter ResultGetter
	logger *slog.Logger
	// wait blocks for d or until ctx is done
	wait func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller with the default fixed cadence: 10s between 30 attempts
func NewPoller(getter ResultGetter, logger *slog.Logger) *Poller {
	return &Poller{
		Interval:          DefaultPollInterval,
		MaxAttempts:       DefaultPollMaxAttempts,
		BackoffMultiplier: 1,
		getter:            getter,
		logger:            logger,
		wait:              sleepContext,
	}
}

// Poll queries jobID until it is COMPLETED or FAILED. It returns the terminal result
// and the number of queries issued. Query errors count as attempts and are retried.
// After MaxAttempts non-terminal observations it returns ErrTimeout.
func (p *Poller) Poll(ctx context.Context, jobID string) (*dto.ResultResponse, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	delay := p.Interval
	if delay <= 0 {
		delay = DefaultPollInterval
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}

		result, err := p.getter.GetResult(ctx, jobID)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, attempt, ctxErr
			}
			lastErr = err
			p.logger.Warn("Result query failed",
				slog.String("job_id", jobID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		case IsTerminal(result):
			p.logger.Info("Job finished",
				slog.String("job_id", jobID),
				slog.String("status", result.Status),
				slog.Int("attempt", attempt),
			)
			return result, attempt, nil
		default:
			lastErr = nil
			p.logger.Debug("Job not finished yet",
				slog.String("job_id", jobID),
				slog.String("status", result.Status),
				slog.Int("attempt", attempt),
			)
		}

		if attempt == maxAttempts {
			break
		}
		if err := p.wait(ctx, delay); err != nil {
			return nil, attempt, err
		}
		delay = p.next(delay)
	}

	if lastErr != nil {
		return nil, maxAttempts, fmt.Errorf("%w after %d attempts: last error: %v", ErrTimeout, maxAttempts, lastErr)
	}
	return nil, maxAttempts, fmt.Errorf("%w after %d attempts", ErrTimeout, maxAttempts)
}

func (p *Poller) next(delay time.Duration) time.Duration {
	if p.BackoffMultiplier <= 1 {
		return delay
	}
	next := time.Duration(float64(delay) * p.BackoffMultiplier)
	if p.MaxInterval > 0 && next > p.MaxInterval {
		next = p.MaxInterval
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
