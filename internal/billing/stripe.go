package billing

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/promptvaultdev/promptvault/internal/store"
)

// CreateStripeCheckout starts a subscription checkout for the account
// and returns the hosted checkout URL. The Stripe customer is created
// lazily and remembered on the subscription row.
func (s *Service) CreateStripeCheckout(accountID, email string) (string, error) {
	if s.stripe == nil {
		return "", ErrNotConfigured
	}

	sub, err := s.store.EnsureSubscription(accountID, s.freeLimit)
	if err != nil {
		return "", err
	}

	customerID := sub.ProcessorCustomerID
	if customerID == "" || sub.Processor != "stripe" {
		cust, err := s.stripe.Customers.New(&stripe.CustomerParams{
			Email: stripe.String(email),
			Params: stripe.Params{
				Metadata: map[string]string{"account_id": accountID},
			},
		})
		if err != nil {
			return "", fmt.Errorf("billing: create stripe customer: %w", err)
		}
		customerID = cust.ID

		sub.Processor = "stripe"
		sub.ProcessorCustomerID = customerID
		if err := s.store.SaveSubscription(sub); err != nil {
			return "", err
		}
	}

	base := s.cfg.Server.PublicURL()
	session, err := s.stripe.CheckoutSessions.New(&stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.Billing.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(base + s.cfg.Billing.SuccessPath),
		CancelURL:  stripe.String(base + s.cfg.Billing.CancelPath),
		Params: stripe.Params{
			Metadata: map[string]string{"account_id": accountID},
		},
	})
	if err != nil {
		return "", fmt.Errorf("billing: create checkout session: %w", err)
	}
	return session.URL, nil
}

// CreateStripePortal returns a billing-portal URL for the account's
// Stripe customer.
func (s *Service) CreateStripePortal(accountID string) (string, error) {
	if s.stripe == nil {
		return "", ErrNotConfigured
	}

	sub, err := s.store.GetSubscription(accountID)
	if err != nil {
		return "", err
	}
	if sub.ProcessorCustomerID == "" {
		return "", fmt.Errorf("billing: account %s has no stripe customer", accountID)
	}

	session, err := s.stripe.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.ProcessorCustomerID),
		ReturnURL: stripe.String(s.cfg.Server.PublicURL() + s.cfg.Billing.SuccessPath),
	})
	if err != nil {
		return "", fmt.Errorf("billing: create portal session: %w", err)
	}
	return session.URL, nil
}

// HandleStripeWebhook verifies and applies one Stripe event. Unverified
// payloads return ErrBadSignature and mutate nothing; unrecognised
// event types are acknowledged and ignored.
func (s *Service) HandleStripeWebhook(payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.stripeWebhookSecret)
	if err != nil {
		return ErrBadSignature
	}

	log.Debug().Str("type", string(event.Type)).Msg("billing: stripe event")

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("billing: parse checkout session: %w", err)
		}
		return s.stripeCheckoutCompleted(&session)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("billing: parse subscription: %w", err)
		}
		return s.stripeSubscriptionUpdated(&sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("billing: parse subscription: %w", err)
		}
		return s.stripeSubscriptionDeleted(&sub)

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("billing: parse invoice: %w", err)
		}
		return s.stripeInvoiceEvent(&inv, true)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("billing: parse invoice: %w", err)
		}
		return s.stripeInvoiceEvent(&inv, false)
	}

	return nil
}

func (s *Service) stripeCheckoutCompleted(session *stripe.CheckoutSession) error {
	accountID := session.Metadata["account_id"]
	if accountID == "" {
		log.Warn().Msg("billing: checkout session without account_id metadata")
		return nil
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	// Period boundaries arrive with the first subscription.updated event.
	return s.upgradeToPro(accountID, "stripe", customerID, subscriptionID, "active", "", "", false)
}

func (s *Service) stripeSubscriptionUpdated(stripeSub *stripe.Subscription) error {
	sub, err := s.subscriptionByStripeCustomer(stripeSub)
	if err != nil || sub == nil {
		return err
	}

	sub.Status = string(stripeSub.Status)
	sub.CurrentPeriodStart = nullableTime(epochToRFC3339(stripeSub.CurrentPeriodStart))
	sub.CurrentPeriodEnd = nullableTime(epochToRFC3339(stripeSub.CurrentPeriodEnd))
	sub.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	return s.store.SaveSubscription(sub)
}

func (s *Service) stripeSubscriptionDeleted(stripeSub *stripe.Subscription) error {
	sub, err := s.subscriptionByStripeCustomer(stripeSub)
	if err != nil || sub == nil {
		return err
	}
	return s.downgradeToFree(sub)
}

func (s *Service) stripeInvoiceEvent(inv *stripe.Invoice, succeeded bool) error {
	if inv.Customer == nil {
		return nil
	}
	sub, err := s.store.GetSubscriptionByCustomer(inv.Customer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("customer", inv.Customer.ID).Msg("billing: invoice for unknown customer")
			return nil
		}
		return err
	}
	if succeeded {
		return s.renewalSucceeded(sub)
	}
	return s.paymentFailed(sub)
}

func (s *Service) subscriptionByStripeCustomer(stripeSub *stripe.Subscription) (*store.Subscription, error) {
	if stripeSub.Customer == nil {
		return nil, nil
	}
	sub, err := s.store.GetSubscriptionByCustomer(stripeSub.Customer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("customer", stripeSub.Customer.ID).Msg("billing: event for unknown customer")
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func epochToRFC3339(epoch int64) string {
	if epoch == 0 {
		return ""
	}
	return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
}
