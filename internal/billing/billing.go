// Package billing connects subscription state to the payment
// processors. Exactly one processor is active at a time, selected by
// configuration; webhook events from either map onto the same
// subscription rows.
package billing

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/store"
	"github.com/promptvaultdev/promptvault/internal/vault"
)

const httpTimeout = 15 * time.Second

var (
	// ErrBadSignature marks webhook payloads that fail verification.
	// Handlers must map it to 401 and mutate nothing.
	ErrBadSignature = errors.New("billing: invalid webhook signature")

	// ErrNotConfigured is returned when a checkout or portal call hits
	// a processor without credentials.
	ErrNotConfigured = errors.New("billing: processor not configured")
)

// Service drives checkout creation and webhook processing.
type Service struct {
	store     *store.Store
	cfg       *config.Config
	freeLimit int64

	stripe              *client.API
	stripeWebhookSecret string

	lemonKey           string
	lemonWebhookSecret string
	lemonAPIBase       string
	httpClient         *http.Client
}

// NewService resolves processor credentials from the vault and returns
// a Service. Missing credentials leave the processor disabled rather
// than failing startup.
func NewService(st *store.Store, v *vault.Vault, cfg *config.Config) *Service {
	s := &Service{
		store:        st,
		cfg:          cfg,
		freeLimit:    int64(cfg.Analysis.FreeMonthlyLimit),
		lemonAPIBase: "https://api.lemonsqueezy.com",
		httpClient:   &http.Client{Timeout: httpTimeout},
	}

	switch cfg.Billing.Processor {
	case "stripe":
		key, err := v.ResolveKeyRef(cfg.Billing.StripeKeyRef)
		if err != nil || key == "" {
			log.Warn().Msg("billing: stripe selected but no API key resolved")
		} else {
			s.stripe = &client.API{}
			s.stripe.Init(key, nil)
		}
		if secret, err := v.ResolveKeyRef(cfg.Billing.StripeWebhookRef); err == nil {
			s.stripeWebhookSecret = secret
		} else {
			log.Warn().Msg("billing: no stripe webhook secret resolved")
		}
	case "lemonsqueezy":
		key, err := v.ResolveKeyRef(cfg.Billing.LemonKeyRef)
		if err != nil || key == "" {
			log.Warn().Msg("billing: lemonsqueezy selected but no API key resolved")
		} else {
			s.lemonKey = key
		}
		if secret, err := v.ResolveKeyRef(cfg.Billing.LemonWebhookRef); err == nil {
			s.lemonWebhookSecret = secret
		} else {
			log.Warn().Msg("billing: no lemonsqueezy webhook secret resolved")
		}
	}

	return s
}

// Processor returns the configured payment processor name.
func (s *Service) Processor() string {
	return s.cfg.Billing.Processor
}

// upgradeToPro flips an account's subscription to the pro plan with
// unlimited analyses.
func (s *Service) upgradeToPro(accountID, processor, customerID, subscriptionID, status, periodStart, periodEnd string, cancelAtPeriodEnd bool) error {
	sub, err := s.store.EnsureSubscription(accountID, s.freeLimit)
	if err != nil {
		return err
	}

	sub.PlanType = "pro"
	sub.Status = status
	sub.Processor = processor
	sub.ProcessorCustomerID = customerID
	sub.ProcessorSubscriptionID = subscriptionID
	sub.CurrentPeriodStart = nullableTime(periodStart)
	sub.CurrentPeriodEnd = nullableTime(periodEnd)
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd
	sub.AIAnalysesLimit = -1
	return s.store.SaveSubscription(sub)
}

// downgradeToFree restores the free plan after cancellation or expiry.
func (s *Service) downgradeToFree(sub *store.Subscription) error {
	sub.PlanType = "free"
	sub.Status = "canceled"
	sub.ProcessorSubscriptionID = ""
	sub.AIAnalysesLimit = s.freeLimit
	sub.CancelAtPeriodEnd = false
	return s.store.SaveSubscription(sub)
}

// renewalSucceeded resets the usage counter at the start of a new
// billing period.
func (s *Service) renewalSucceeded(sub *store.Subscription) error {
	sub.Status = "active"
	if err := s.store.SaveSubscription(sub); err != nil {
		return err
	}
	return s.store.ResetAnalysisUsage(sub.AccountID)
}

// paymentFailed marks the subscription past due without touching the
// plan or counters.
func (s *Service) paymentFailed(sub *store.Subscription) error {
	sub.Status = "past_due"
	return s.store.SaveSubscription(sub)
}

func nullableTime(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
