package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandson7/product-image-ocr-112820251703/internal/api/dto"
)

type step struct {
	status string
	err    error
}

type scriptedGetter struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (g *scriptedGetter) GetResult(_ context.Context, jobID string) (*dto.ResultResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.steps[len(g.steps)-1]
	if g.calls < len(g.steps) {
		s = g.steps[g.calls]
	}
	g.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ResultResponse{ImageID: jobID, Status: s.status, ProcessingStatus: s.status}, nil
}

type recordedWaits struct {
	waits []time.Duration
}

func (r *recordedWaits) wait(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestPoller(getter ResultGetter) (*Poller, *recordedWaits) {
	p := NewPoller(getter, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &recordedWaits{}
	p.wait = rec.wait
	return p, rec
}

func repeat(d time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func TestPoller_Poll(t *testing.T) {
	t.Run("completes on third query", func(t *testing.T) {
		getter := &scriptedGetter{steps: []step{{status: "PENDING"}, {status: "PROCESSING"}, {status: "COMPLETED"}}}
		p, rec := newTestPoller(getter)

		result, attempts, err := p.Poll(context.Background(), "J1")
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", result.Status)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, getter.calls)
		assert.Equal(t, repeat(10*time.Second, 2), rec.waits)
	})

	t.Run("failed job is a result, not an error", func(t *testing.T) {
		getter := &scriptedGetter{steps: []step{{status: "PROCESSING"}, {status: "FAILED"}}}
		p, _ := newTestPoller(getter)

		result, attempts, err := p.Poll(context.Background(), "J1")
		require.NoError(t, err)
		assert.Equal(t, "FAILED", result.Status)
		assert.Equal(t, 2, attempts)
	})

	t.Run("never terminal times out after exactly 30 queries", func(t *testing.T) {
		getter := &scriptedGetter{steps: []step{{status: "PROCESSING"}}}
		p, rec := newTestPoller(getter)

		result, attempts, err := p.Poll(context.Background(), "J1")
		require.ErrorIs(t, err, ErrTimeout)
		assert.Nil(t, result)
		assert.Equal(t, 30, attempts)
		assert.Equal(t, 30, getter.calls)
		assert.Equal(t, repeat(10*time.Second, 29), rec.waits)
	})

	t.Run("query errors count as attempts and are retried", func(t *testing.T) {
		boom := errors.New("connection refused")
		getter := &scriptedGetter{steps: []step{{err: boom}, {err: boom}, {status: "COMPLETED"}}}
		p, _ := newTestPoller(getter)

		result, attempts, err := p.Poll(context.Background(), "J1")
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", result.Status)
		assert.Equal(t, 3, attempts)
	})

	t.Run("persistent errors exhaust the budget as a timeout", func(t *testing.T) {
		getter := &scriptedGetter{steps: []step{{err: errors.New("502 bad gateway")}}}
		p, _ := newTestPoller(getter)
		p.MaxAttempts = 5

		_, attempts, err := p.Poll(context.Background(), "J1")
		require.ErrorIs(t, err, ErrTimeout)
		assert.Contains(t, err.Error(), "502 bad gateway")
		assert.Equal(t, 5, attempts)
		assert.Equal(t, 5, getter.calls)
	})

	t.Run("backoff grows up to the cap", func(t *testing.T) {
		getter := &scriptedGetter{steps: []step{{status: "PROCESSING"}}}
		p, rec := newTestPoller(getter)
		p.Interval = time.Second
		p.MaxAttempts = 6
		p.BackoffMultiplier = 2
		p.MaxInterval = 5 * time.Second

		_, _, err := p.Poll(context.Background(), "J1")
		require.ErrorIs(t, err, ErrTimeout)
		assert.Equal(t, []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
		}, rec.waits)
	})

	t.Run("cancellation stops polling", func(t *testing.T) {
		getter := &scriptedGetter{steps: []step{{status: "PROCESSING"}}}
		p, _ := newTestPoller(getter)

		ctx, cancel := context.WithCancel(context.Background())
		p.wait = func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}

		_, attempts, err := p.Poll(ctx, "J1")
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrTimeout)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, getter.calls)
	})

	t.Run("already canceled context issues no query", func(t *testing.T) {
		getter := &scriptedGetter{steps: []step{{status: "PROCESSING"}}}
		p, _ := newTestPoller(getter)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, attempts, err := p.Poll(ctx, "J1")
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, attempts)
		assert.Equal(t, 0, getter.calls)
	})
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
