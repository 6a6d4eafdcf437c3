package policy

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func minuteTier(perMinute int) Tier {
	return Tier{ID: "test", PhotosPerMinute: intPtr(perMinute)}
}

func TestRateLimiterMinuteWindow(t *testing.T) {
	limiter := NewPhotoRateLimiter()
	tier := minuteTier(5)
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		limiter.Record("wk-abc123", base.Add(time.Duration(i)*time.Second))
	}

	err := limiter.Check("wk-abc123", tier, base.Add(6*time.Second))
	require.Error(t, err)
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "minute", rateErr.Window)
	assert.Equal(t, 5, rateErr.Ceiling)

	// Once the window slides past the recorded events the check passes again.
	assert.NoError(t, limiter.Check("wk-abc123", tier, base.Add(62*time.Second)))
}

func TestRateLimiterAttemptIsAtomic(t *testing.T) {
	limiter := NewPhotoRateLimiter()
	tier := minuteTier(3)
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	// Attempt both checks and records; no separate Record call needed.
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Attempt("wk-abc123", tier, base.Add(time.Duration(i)*time.Second)))
	}
	err := limiter.Attempt("wk-abc123", tier, base.Add(4*time.Second))
	require.Error(t, err)

	// The denied attempt must not have been recorded.
	assert.NoError(t, limiter.Attempt("wk-abc123", tier, base.Add(61*time.Second)))
}

func TestRateLimiterCoarsestWindowWins(t *testing.T) {
	limiter := NewPhotoRateLimiter()
	tier := Tier{ID: "test", PhotosPerMinute: intPtr(2), PhotosPerDay: intPtr(3)}
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	// Spread events so the day window is exhausted but each minute is not.
	for i := 0; i < 3; i++ {
		limiter.Record("wk-abc123", base.Add(time.Duration(i)*10*time.Minute))
	}

	err := limiter.Check("wk-abc123", tier, base.Add(40*time.Minute))
	require.Error(t, err)
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "day", rateErr.Window)
}

func TestRateLimiterNilCeilingsNeverBlock(t *testing.T) {
	limiter := NewPhotoRateLimiter()
	tier := Tier{ID: "unlimited"}
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		require.NoError(t, limiter.Attempt("wk-abc123", tier, base.Add(time.Duration(i)*time.Millisecond)))
	}
}

func TestRateLimiterPrunesOldEvents(t *testing.T) {
	limiter := NewPhotoRateLimiter()
	tier := Tier{ID: "test", PhotosPerDay: intPtr(3)}
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		limiter.Record("wk-abc123", base.Add(time.Duration(i)*time.Minute))
	}
	require.Error(t, limiter.Check("wk-abc123", tier, base.Add(5*time.Minute)))

	// A day later the old events age out of the retention window lazily.
	assert.NoError(t, limiter.Check("wk-abc123", tier, base.Add(25*time.Hour)))
}

func TestRateLimiterIsolatesUsers(t *testing.T) {
	limiter := NewPhotoRateLimiter()
	tier := minuteTier(1)
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, limiter.Attempt("wk-aaa111", tier, base))
	require.Error(t, limiter.Attempt("wk-aaa111", tier, base.Add(time.Second)))
	assert.NoError(t, limiter.Attempt("wk-bbb222", tier, base.Add(time.Second)))
}

func TestEngineAttemptPhoto(t *testing.T) {
	catalog := NewStaticCatalog(Tier{
		ID:              "free",
		PhotosPerJob:    intPtr(10),
		PhotosPerMinute: intPtr(2),
	})
	engine := NewEngine(catalog, NewPhotoRateLimiter(), nil)
	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		decision := engine.AttemptPhoto("wk-abc123", "free", UsageContext{PhotosInJob: i}, base.Add(time.Duration(i)*time.Second))
		require.True(t, decision.Allowed, "attempt %d", i)
	}

	decision := engine.AttemptPhoto("wk-abc123", "free", UsageContext{PhotosInJob: 2}, base.Add(3*time.Second))
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "minute")

	// Per-job ceiling is checked before the rate ledger.
	decision = engine.AttemptPhoto("wk-other9", "free", UsageContext{PhotosInJob: 10}, base)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "photo limit")
}
