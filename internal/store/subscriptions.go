package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Subscription represents an account's billing state and AI usage
// counters. ai_analyses_limit of -1 means unlimited.
type Subscription struct {
	ID                      string
	AccountID               string
	PlanType                string
	Status                  string
	Processor               string
	ProcessorCustomerID     string
	ProcessorSubscriptionID string
	CurrentPeriodStart      sql.NullString
	CurrentPeriodEnd        sql.NullString
	CancelAtPeriodEnd       bool
	AIAnalysesUsed          int64
	AIAnalysesLimit         int64
	CreatedAt               string
	UpdatedAt               string
}

const subscriptionColumns = `id, account_id, plan_type, status, processor,
       processor_customer_id, processor_subscription_id,
       current_period_start, current_period_end, cancel_at_period_end,
       ai_analyses_used, ai_analyses_limit, created_at, updated_at`

func scanSubscription(row *sql.Row) (*Subscription, error) {
	sub := &Subscription{}
	var cancelInt int
	err := row.Scan(
		&sub.ID, &sub.AccountID, &sub.PlanType, &sub.Status, &sub.Processor,
		&sub.ProcessorCustomerID, &sub.ProcessorSubscriptionID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &cancelInt,
		&sub.AIAnalysesUsed, &sub.AIAnalysesLimit, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.CancelAtPeriodEnd = cancelInt != 0
	return sub, nil
}

// GetSubscription retrieves the subscription for an account.
func (s *Store) GetSubscription(accountID string) (*Subscription, error) {
	sub, err := scanSubscription(s.reader.QueryRow(
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE account_id = ?", accountID,
	))
	if err != nil {
		return nil, fmt.Errorf("store: get subscription for %s: %w", accountID, err)
	}
	return sub, nil
}

// GetSubscriptionByCustomer retrieves a subscription by its payment
// processor customer ID.
func (s *Store) GetSubscriptionByCustomer(customerID string) (*Subscription, error) {
	sub, err := scanSubscription(s.reader.QueryRow(
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE processor_customer_id = ?", customerID,
	))
	if err != nil {
		return nil, fmt.Errorf("store: get subscription by customer %s: %w", customerID, err)
	}
	return sub, nil
}

// EnsureSubscription returns the account's subscription, lazily creating
// a free/active row with the given analysis limit when none exists.
func (s *Store) EnsureSubscription(accountID string, freeLimit int64) (*Subscription, error) {
	sub, err := s.GetSubscription(accountID)
	if err == nil {
		return sub, nil
	}

	ts := now()
	_, err = s.writer.Exec(`
		INSERT INTO subscriptions (
			id, account_id, plan_type, status, ai_analyses_used,
			ai_analyses_limit, created_at, updated_at
		) VALUES (?, ?, 'free', 'active', 0, ?, ?, ?)`,
		uuid.NewString(), accountID, freeLimit, ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return s.GetSubscription(accountID)
		}
		return nil, fmt.Errorf("store: insert subscription: %w", err)
	}
	return s.GetSubscription(accountID)
}

// SaveSubscription writes every mutable subscription column back.
func (s *Store) SaveSubscription(sub *Subscription) error {
	sub.UpdatedAt = now()
	cancelInt := 0
	if sub.CancelAtPeriodEnd {
		cancelInt = 1
	}

	result, err := s.writer.Exec(`
		UPDATE subscriptions
		SET plan_type = ?, status = ?, processor = ?,
		    processor_customer_id = ?, processor_subscription_id = ?,
		    current_period_start = ?, current_period_end = ?,
		    cancel_at_period_end = ?, ai_analyses_used = ?,
		    ai_analyses_limit = ?, updated_at = ?
		WHERE id = ?`,
		sub.PlanType, sub.Status, sub.Processor,
		sub.ProcessorCustomerID, sub.ProcessorSubscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		cancelInt, sub.AIAnalysesUsed, sub.AIAnalysesLimit, sub.UpdatedAt,
		sub.ID,
	)
	if err != nil {
		return fmt.Errorf("store: save subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: save subscription rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: save subscription %s: %w", sub.ID, sql.ErrNoRows)
	}
	return nil
}

// TryConsumeAnalysis attempts to consume one unit of AI analysis
// allowance. The conditional UPDATE succeeds only while usage is below
// the limit, so concurrent callers cannot overshoot: exactly one loses
// when a single unit remains. Returns true when a unit was consumed.
func (s *Store) TryConsumeAnalysis(accountID string) (bool, error) {
	result, err := s.writer.Exec(`
		UPDATE subscriptions
		SET ai_analyses_used = ai_analyses_used + 1, updated_at = ?
		WHERE account_id = ? AND ai_analyses_used < ai_analyses_limit`,
		now(), accountID,
	)
	if err != nil {
		return false, fmt.Errorf("store: consume analysis: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: consume analysis rows affected: %w", err)
	}
	return n > 0, nil
}

// ResetAnalysisUsage zeroes the usage counter, typically on a successful
// renewal payment.
func (s *Store) ResetAnalysisUsage(accountID string) error {
	_, err := s.writer.Exec(
		"UPDATE subscriptions SET ai_analyses_used = 0, updated_at = ? WHERE account_id = ?",
		now(), accountID,
	)
	if err != nil {
		return fmt.Errorf("store: reset analysis usage: %w", err)
	}
	return nil
}
