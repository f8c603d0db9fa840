package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestDoVal_AttemptsBounded(t *testing.T) {
	calls := 0
	cfg := WithRetries(3)
	cfg.Sleep = noSleep

	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("boom"), 503)
	})
	require.Error(t, err)
	// retries + 1 total attempts.
	assert.Equal(t, 4, calls)
}

func TestDoVal_StopsOnSuccess(t *testing.T) {
	calls := 0
	cfg := WithRetries(3)
	cfg.Sleep = noSleep

	v, err := DoVal(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(eris.New("flaky"), 500)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoVal_NoRetryOnHardError(t *testing.T) {
	calls := 0
	cfg := WithRetries(3)
	cfg.Sleep = noSleep

	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := WithRetries(5)
	cfg.Sleep = noSleep

	_, err := DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("boom"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_NonDecreasing(t *testing.T) {
	cfg := applyDefaults(DefaultRetryConfig())
	prev := time.Duration(0)
	for attempt := 0; attempt < 6; attempt++ {
		// Jitter is additive in [0, 1s); with a 2x multiplier the minimum of
		// attempt i+1 can never undercut the maximum of attempt i.
		minNext := time.Duration(float64(cfg.InitialBackoff) * pow2(attempt))
		assert.GreaterOrEqual(t, minNext, prev)

		d := Backoff(attempt, cfg)
		assert.GreaterOrEqual(t, d, minNext)
		assert.Less(t, d, minNext+cfg.Jitter+time.Millisecond)
		prev = minNext + cfg.Jitter
		if minNext >= cfg.MaxBackoff {
			break
		}
	}
}

func pow2(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(NewTransientError(eris.New("x"), 429)))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
