package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Action identifies a gated operation.
type Action string

const (
	ActionCreateJob Action = "create_job"
	ActionAddPhoto  Action = "add_photo"
)

// Urgency grades an upgrade advisory.
type Urgency string

const (
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Advisory suggests a subscription upgrade when a finite limit is close.
type Advisory struct {
	Urgency       Urgency `json:"urgency"`
	Message       string  `json:"message"`
	SuggestedTier string  `json:"suggested_tier,omitempty"`
}

// Decision is the outcome of a policy check. RateLimited distinguishes a
// sliding-window rejection from a tier-quota denial.
type Decision struct {
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason,omitempty"`
	RateLimited bool      `json:"rate_limited,omitempty"`
	Advisory    *Advisory `json:"advisory,omitempty"`
}

// UsageContext carries the caller's current counts for limit checks.
type UsageContext struct {
	JobCount    int
	PhotosInJob int
}

const advisoryThreshold = 0.8

// Engine combines the tier catalog with usage counts to approve or deny
// actions. Lookup failures fail open: a paying-adjacent workflow is never
// blocked because the policy source is unreachable.
type Engine struct {
	catalog Catalog
	limiter *PhotoRateLimiter
	logger  *slog.Logger
}

func NewEngine(catalog Catalog, limiter *PhotoRateLimiter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{catalog: catalog, limiter: limiter, logger: logger}
}

// CanPerform evaluates an action against the caller's tier and usage.
// Unknown actions are treated as feature gates.
func (e *Engine) CanPerform(tierID string, action Action, usage UsageContext) Decision {
	tier, err := e.catalog.Tier(tierID)
	if err != nil {
		e.logger.Warn("tier lookup failed; failing open", "tier", tierID, "action", action, "error", err)
		return Decision{Allowed: true}
	}

	switch action {
	case ActionCreateJob:
		return limitDecision(usage.JobCount, tier.MaxJobs, "job", tier.NextTier)
	case ActionAddPhoto:
		return limitDecision(usage.PhotosInJob, tier.PhotosPerJob, "photo", tier.NextTier)
	default:
		if tier.HasFeature(Feature(action)) {
			return Decision{Allowed: true}
		}
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("feature %s is not included in the %s tier", action, tier.ID),
			Advisory: &Advisory{
				Urgency:       UrgencyHigh,
				Message:       fmt.Sprintf("Upgrade to unlock %s.", action),
				SuggestedTier: tier.NextTier,
			},
		}
	}
}

// AttemptPhoto runs the per-job photo gate and, when it passes, the
// sliding-window rate limiter as one atomic check-and-record step.
func (e *Engine) AttemptPhoto(userID, tierID string, usage UsageContext, now time.Time) Decision {
	decision := e.CanPerform(tierID, ActionAddPhoto, usage)
	if !decision.Allowed {
		return decision
	}

	tier, err := e.catalog.Tier(tierID)
	if err != nil {
		// Same fail-open stance as CanPerform.
		return decision
	}

	if err := e.limiter.Attempt(userID, tier, now); err != nil {
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			return Decision{Allowed: false, Reason: rateErr.Error(), RateLimited: true}
		}
		return Decision{Allowed: false, Reason: err.Error(), RateLimited: true}
	}
	return decision
}

// limitDecision grades a count against a nullable ceiling: at or past the
// ceiling the action is denied with a high-urgency advisory, at 80% it is
// allowed with a medium one. Unlimited ceilings never produce advisories.
func limitDecision(count int, limit *int, what, nextTier string) Decision {
	if limit == nil {
		return Decision{Allowed: true}
	}

	if count >= *limit {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("%s limit of %d reached", what, *limit),
			Advisory: &Advisory{
				Urgency:       UrgencyHigh,
				Message:       fmt.Sprintf("You have used all %d %ss on your plan. Upgrade to add more.", *limit, what),
				SuggestedTier: nextTier,
			},
		}
	}

	if float64(count) >= float64(*limit)*advisoryThreshold {
		return Decision{
			Allowed: true,
			Advisory: &Advisory{
				Urgency:       UrgencyMedium,
				Message:       fmt.Sprintf("You have used %d of %d %ss on your plan.", count, *limit, what),
				SuggestedTier: nextTier,
			},
		}
	}

	return Decision{Allowed: true}
}
