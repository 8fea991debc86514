// Package quota gates AI analysis usage per account. Free plans carry a
// monthly allowance; pro and lifetime plans are unlimited.
package quota

import (
	"github.com/promptvaultdev/promptvault/internal/store"
)

// Unlimited is the remaining-count sentinel for privileged plans.
const Unlimited = -1

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Remaining int64  `json:"remaining"`
	Plan      string `json:"plan"`
}

// Gate enforces the per-account analysis allowance.
type Gate struct {
	store     *store.Store
	freeLimit int64
}

// NewGate creates a Gate with the given free-plan monthly limit.
func NewGate(st *store.Store, freeLimit int) *Gate {
	return &Gate{store: st, freeLimit: int64(freeLimit)}
}

func privileged(planType string) bool {
	return planType == "pro" || planType == "lifetime"
}

// CheckAndConsume consumes one analysis unit if the account has
// allowance left. Accounts at their limit are denied without any
// counter mutation. The conditional store update keeps concurrent
// callers from overshooting the limit.
func (g *Gate) CheckAndConsume(accountID string) (*Decision, error) {
	sub, err := g.store.EnsureSubscription(accountID, g.freeLimit)
	if err != nil {
		return nil, err
	}

	if privileged(sub.PlanType) {
		return &Decision{Allowed: true, Remaining: Unlimited, Plan: sub.PlanType}, nil
	}

	consumed, err := g.store.TryConsumeAnalysis(accountID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return &Decision{Allowed: false, Remaining: 0, Plan: sub.PlanType}, nil
	}

	// Re-read for the post-consume counter.
	sub, err = g.store.GetSubscription(accountID)
	if err != nil {
		return nil, err
	}
	remaining := sub.AIAnalysesLimit - sub.AIAnalysesUsed
	if remaining < 0 {
		remaining = 0
	}
	return &Decision{Allowed: true, Remaining: remaining, Plan: sub.PlanType}, nil
}

// Status reports the current allowance without consuming a unit.
func (g *Gate) Status(accountID string) (*Decision, error) {
	sub, err := g.store.EnsureSubscription(accountID, g.freeLimit)
	if err != nil {
		return nil, err
	}

	if privileged(sub.PlanType) {
		return &Decision{Allowed: true, Remaining: Unlimited, Plan: sub.PlanType}, nil
	}

	remaining := sub.AIAnalysesLimit - sub.AIAnalysesUsed
	if remaining < 0 {
		remaining = 0
	}
	return &Decision{
		Allowed:   remaining > 0,
		Remaining: remaining,
		Plan:      sub.PlanType,
	}, nil
}
