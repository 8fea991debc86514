package billing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/store"
)

// lemonEvent is the relevant subset of a LemonSqueezy webhook payload.
type lemonEvent struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			AccountID string `json:"account_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status     string      `json:"status"`
			CustomerID json.Number `json:"customer_id"`
			RenewsAt   string      `json:"renews_at"`
			CreatedAt  string      `json:"created_at"`
			Cancelled  bool        `json:"cancelled"`
		} `json:"attributes"`
	} `json:"data"`
}

// lemonStatusMap translates LemonSqueezy subscription statuses onto the
// canonical set stored in subscriptions.status.
var lemonStatusMap = map[string]string{
	"active":    "active",
	"on_trial":  "trialing",
	"paused":    "paused",
	"past_due":  "past_due",
	"unpaid":    "past_due",
	"cancelled": "canceled",
	"expired":   "canceled",
}

func mapLemonStatus(status string) string {
	if mapped, ok := lemonStatusMap[status]; ok {
		return mapped
	}
	return "active"
}

// verifyLemonSignature checks the X-Signature header: hex-encoded
// HMAC-SHA256 of the raw body, compared in constant time.
func verifyLemonSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// HandleLemonWebhook verifies and applies one LemonSqueezy event.
// Unverified payloads return ErrBadSignature and mutate nothing.
func (s *Service) HandleLemonWebhook(payload []byte, signature string) error {
	if !verifyLemonSignature(payload, signature, s.lemonWebhookSecret) {
		return ErrBadSignature
	}

	var event lemonEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("billing: parse lemonsqueezy event: %w", err)
	}

	accountID := event.Meta.CustomData.AccountID
	log.Debug().Str("event", event.Meta.EventName).Msg("billing: lemonsqueezy event")

	switch event.Meta.EventName {
	case "subscription_created", "subscription_updated":
		if accountID == "" {
			log.Warn().Msg("billing: lemonsqueezy event without account_id custom data")
			return nil
		}
		return s.upgradeToPro(
			accountID, "lemonsqueezy",
			event.Data.Attributes.CustomerID.String(), event.Data.ID,
			mapLemonStatus(event.Data.Attributes.Status),
			event.Data.Attributes.CreatedAt, event.Data.Attributes.RenewsAt,
			event.Data.Attributes.Cancelled,
		)

	case "subscription_cancelled", "subscription_expired":
		sub, err := s.lemonSubscription(accountID)
		if err != nil || sub == nil {
			return err
		}
		return s.downgradeToFree(sub)

	case "subscription_resumed":
		if accountID == "" {
			return nil
		}
		return s.upgradeToPro(
			accountID, "lemonsqueezy",
			event.Data.Attributes.CustomerID.String(), event.Data.ID,
			"active",
			event.Data.Attributes.CreatedAt, event.Data.Attributes.RenewsAt,
			false,
		)

	case "subscription_payment_success":
		sub, err := s.lemonSubscription(accountID)
		if err != nil || sub == nil {
			return err
		}
		return s.renewalSucceeded(sub)

	case "subscription_payment_failed":
		sub, err := s.lemonSubscription(accountID)
		if err != nil || sub == nil {
			return err
		}
		return s.paymentFailed(sub)

	case "order_created":
		// First payment; the subscription_created event carries the rest.
		log.Debug().Str("account", accountID).Msg("billing: lemonsqueezy order created")
	}

	return nil
}

func (s *Service) lemonSubscription(accountID string) (*store.Subscription, error) {
	if accountID == "" {
		return nil, nil
	}
	sub, err := s.store.GetSubscription(accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("account", accountID).Msg("billing: event for unknown account")
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// lemonCheckoutRequest is the JSON:API body for creating a checkout.
type lemonCheckoutRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			CheckoutData struct {
				Email  string            `json:"email,omitempty"`
				Custom map[string]string `json:"custom"`
			} `json:"checkout_data"`
		} `json:"attributes"`
		Relationships struct {
			Store   lemonRelationship `json:"store"`
			Variant lemonRelationship `json:"variant"`
		} `json:"relationships"`
	} `json:"data"`
}

type lemonRelationship struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

// CreateLemonCheckout creates a hosted checkout and returns its URL.
// The account id travels in checkout custom data and comes back on
// webhook events.
func (s *Service) CreateLemonCheckout(accountID, email string) (string, error) {
	if s.lemonKey == "" {
		return "", ErrNotConfigured
	}

	var reqBody lemonCheckoutRequest
	reqBody.Data.Type = "checkouts"
	reqBody.Data.Attributes.CheckoutData.Email = email
	reqBody.Data.Attributes.CheckoutData.Custom = map[string]string{"account_id": accountID}
	reqBody.Data.Relationships.Store.Data.Type = "stores"
	reqBody.Data.Relationships.Store.Data.ID = s.cfg.Billing.LemonStoreID
	reqBody.Data.Relationships.Variant.Data.Type = "variants"
	reqBody.Data.Relationships.Variant.Data.ID = s.cfg.Billing.LemonVariantID

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("billing: encode checkout request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.lemonAPIBase+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("billing: build checkout request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Authorization", "Bearer "+s.lemonKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("billing: checkout request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("billing: checkout request failed with status %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			Attributes struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("billing: decode checkout response: %w", err)
	}
	if out.Data.Attributes.URL == "" {
		return "", fmt.Errorf("billing: checkout response missing url")
	}
	return out.Data.Attributes.URL, nil
}
