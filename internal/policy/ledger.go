package policy

import (
	"fmt"
	"sync"
	"time"
)

const (
	ledgerRetention = 24 * time.Hour
	cleanupEveryN   = 64
)

// RateLimitError reports which sliding window rejected the attempt.
type RateLimitError struct {
	Window  string
	Ceiling int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("photo rate limit reached: %d per %s", e.Ceiling, e.Window)
}

type rateWindow struct {
	name    string
	span    time.Duration
	ceiling *int
}

// PhotoRateLimiter keeps a per-user ledger of photo-attach timestamps and
// enforces nested sliding windows (day, hour, minute, checked coarsest
// first). The ledger is in-process and ephemeral: it is a UX-level speed
// bump against burst abuse, not a security boundary.
type PhotoRateLimiter struct {
	mu      sync.Mutex
	events  map[string][]time.Time
	opCount int
}

func NewPhotoRateLimiter() *PhotoRateLimiter {
	return &PhotoRateLimiter{events: make(map[string][]time.Time)}
}

// Attempt atomically checks all windows and, when allowed, records the
// event under the same lock. Callers should prefer this over separate
// Check/Record calls, which can silently defeat the limiter when a caller
// checks but forgets to record.
func (l *PhotoRateLimiter) Attempt(userID string, tier Tier, now time.Time) error {
	if l == nil || userID == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.pruneLocked(userID, now)
	if err := checkWindows(events, tier, now); err != nil {
		return err
	}
	l.events[userID] = append(events, now)
	l.maybeCleanupLocked(now)
	return nil
}

// Check evaluates the windows without recording.
func (l *PhotoRateLimiter) Check(userID string, tier Tier, now time.Time) error {
	if l == nil || userID == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return checkWindows(l.pruneLocked(userID, now), tier, now)
}

// WindowCounts reports how many recorded events fall inside each sliding
// window right now. Used for usage reporting, never for enforcement.
func (l *PhotoRateLimiter) WindowCounts(userID string, now time.Time) (minute, hour, day int) {
	if l == nil || userID == "" {
		return 0, 0, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, at := range l.pruneLocked(userID, now) {
		if at.After(now.Add(-time.Minute)) {
			minute++
		}
		if at.After(now.Add(-time.Hour)) {
			hour++
		}
		if at.After(now.Add(-24 * time.Hour)) {
			day++
		}
	}
	return minute, hour, day
}

// Record appends an event without checking.
func (l *PhotoRateLimiter) Record(userID string, now time.Time) {
	if l == nil || userID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[userID] = append(l.pruneLocked(userID, now), now)
	l.maybeCleanupLocked(now)
}

func checkWindows(events []time.Time, tier Tier, now time.Time) error {
	windows := []rateWindow{
		{name: "day", span: 24 * time.Hour, ceiling: tier.PhotosPerDay},
		{name: "hour", span: time.Hour, ceiling: tier.PhotosPerHour},
		{name: "minute", span: time.Minute, ceiling: tier.PhotosPerMinute},
	}

	for _, window := range windows {
		if window.ceiling == nil {
			continue
		}
		cutoff := now.Add(-window.span)
		count := 0
		for _, at := range events {
			if at.After(cutoff) {
				count++
			}
		}
		if count >= *window.ceiling {
			return &RateLimitError{Window: window.name, Ceiling: *window.ceiling}
		}
	}
	return nil
}

// pruneLocked drops events older than the retention window and returns the
// surviving slice. Pruning happens lazily on access, never in a background
// job.
func (l *PhotoRateLimiter) pruneLocked(userID string, now time.Time) []time.Time {
	events := l.events[userID]
	cutoff := now.Add(-ledgerRetention)

	kept := events[:0]
	for _, at := range events {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(l.events, userID)
		return nil
	}
	l.events[userID] = kept
	return kept
}

func (l *PhotoRateLimiter) maybeCleanupLocked(now time.Time) {
	l.opCount++
	if l.opCount%cleanupEveryN != 0 {
		return
	}
	cutoff := now.Add(-ledgerRetention)
	for userID, events := range l.events {
		live := false
		for _, at := range events {
			if at.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.events, userID)
		}
	}
}
