// Package sharing implements the SharingValidator (C5): it decides whether
// a whale's empty polling responses mean "no open positions right now" or
// "this trader disabled position sharing", so PollingScheduler stops
// burning quota on whales that will never yield a signal.
//
// Expressed as a transition table (ValidTransitions/CanTransition) plus
// small pure functions rather than one large procedural method.
package sharing

import (
	"time"

	"copytrader/internal/models"
)

// EmptyChecksThreshold is the number of consecutive empty poll responses
// before a whale is presumed SHARING_DISABLED. Kept as a count rather than
// a duration (see DESIGN.md Open Question 2), since polling_interval_seconds
// varies per whale. The wall-clock window is computed into
// CheckResult.EmptyWindowDuration when the threshold is crossed; nothing
// logs or persists it.
const EmptyChecksThreshold = 1000

// RecheckInterval is how long a SHARING_DISABLED whale waits before the
// next automatic re-validation attempt.
const RecheckInterval = 24 * time.Hour

// RateLimitRecheckCooldown is how long a RATE_LIMITED whale sits out of
// PollingScheduler selection before it is eligible again. Distinct from
// RateLimitGovernor's per-exchange call backoff: this is the whale-level
// deadline DueForPolling checks against sharing_recheck_at.
const RateLimitRecheckCooldown = 60 * time.Second

// ValidTransitions is the whale data-status graph: map of from -> allowed-to.
var ValidTransitions = map[string][]string{
	models.WhaleStatusActive:          {models.WhaleStatusActive, models.WhaleStatusRateLimited, models.WhaleStatusSharingDisabled},
	models.WhaleStatusRateLimited:     {models.WhaleStatusActive, models.WhaleStatusRateLimited},
	models.WhaleStatusSharingDisabled: {models.WhaleStatusActive, models.WhaleStatusSharingDisabled},
	models.WhaleStatusInactive:        {},
}

// CanTransition reports whether from -> to is a legal whale data-status move.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckResult is what Validator.Evaluate returns: the new status plus the
// field mutations the caller (PollingScheduler) should persist on the whale.
type CheckResult struct {
	Status               string
	ConsecutiveEmpty      int
	SharingDisabledAt     *time.Time
	SharingRecheckAt      *time.Time
	LastPositionFound     *time.Time
	EmptyWindowDuration    time.Duration // derived only, not logged or persisted — see DESIGN.md Open Question 2
}

// FetchOutcome describes the result of one poll attempt against a whale.
type FetchOutcome struct {
	PositionCount  int
	RateLimited    bool
	SharingDenied  bool // explicit "sharing disabled" response from the exchange
}

// Validator evaluates poll outcomes against EMPTY_CHECKS_THRESHOLD and
// exchange-specific always-public rules.
type Validator struct {
	now func() time.Time
}

// New builds a Validator using time.Now for all timestamps.
func New() *Validator {
	return &Validator{now: time.Now}
}

// Evaluate applies one poll outcome to whale's current sharing state and
// returns the status transition plus fields to persist. It never mutates
// whale directly — callers own the write.
func (v *Validator) Evaluate(whale models.Whale, outcome FetchOutcome) CheckResult {
	now := v.now()

	if outcome.SharingDenied {
		recheckAt := now.Add(RecheckInterval)
		return CheckResult{
			Status:            models.WhaleStatusSharingDisabled,
			ConsecutiveEmpty:  0,
			SharingDisabledAt: &now,
			SharingRecheckAt:  &recheckAt,
		}
	}

	if outcome.RateLimited {
		recheckAt := now.Add(RateLimitRecheckCooldown)
		return CheckResult{
			Status:           models.WhaleStatusRateLimited,
			ConsecutiveEmpty: whale.ConsecutiveEmptyChecks,
			SharingRecheckAt: &recheckAt,
		}
	}

	if whale.IsAlwaysPublic() {
		res := CheckResult{Status: models.WhaleStatusActive, ConsecutiveEmpty: 0}
		if outcome.PositionCount > 0 {
			res.LastPositionFound = &now
		}
		return res
	}

	if outcome.PositionCount > 0 {
		return CheckResult{
			Status:            models.WhaleStatusActive,
			ConsecutiveEmpty:  0,
			LastPositionFound: &now,
		}
	}

	empty := whale.ConsecutiveEmptyChecks + 1
	if empty >= EmptyChecksThreshold {
		recheckAt := now.Add(RecheckInterval)
		res := CheckResult{
			Status:           models.WhaleStatusSharingDisabled,
			ConsecutiveEmpty: empty,
			SharingRecheckAt: &recheckAt,
		}
		if whale.SharingDisabledAt == nil {
			res.SharingDisabledAt = &now
		} else {
			res.SharingDisabledAt = whale.SharingDisabledAt
		}
		res.EmptyWindowDuration = time.Duration(empty) * time.Duration(pollIntervalSeconds(whale)) * time.Second
		return res
	}

	return CheckResult{Status: models.WhaleStatusActive, ConsecutiveEmpty: empty}
}

func pollIntervalSeconds(whale models.Whale) int {
	if whale.PollingIntervalSeconds <= 0 {
		return 1
	}
	return whale.PollingIntervalSeconds
}

// DueForRevalidation reports whether a SHARING_DISABLED whale's recheck
// deadline has passed.
func DueForRevalidation(whale models.Whale, now time.Time) bool {
	return whale.DataStatus == models.WhaleStatusSharingDisabled &&
		whale.SharingRecheckAt != nil && !now.Before(*whale.SharingRecheckAt)
}

// ResetForRevalidation clears the empty-checks counter and pushes the next
// recheck further out, giving a re-tested whale a fresh start.
func ResetForRevalidation(whale *models.Whale, now time.Time) {
	whale.ConsecutiveEmptyChecks = 0
	whale.DataStatus = models.WhaleStatusActive
	recheckAt := now.Add(2 * RecheckInterval)
	whale.SharingRecheckAt = &recheckAt
}
