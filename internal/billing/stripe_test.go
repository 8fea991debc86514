package billing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/store"
	"github.com/promptvaultdev/promptvault/internal/testutil"
)

const testStripeSecret = "whsec_test_secret"

func newTestService(t *testing.T) (*Service, *store.Store, *store.Account) {
	t.Helper()
	st := testutil.NewTestStore(t)
	acct := testutil.NewTestAccount(t, st)

	s := &Service{
		store:               st,
		cfg:                 config.DefaultConfig(),
		freeLimit:           10,
		stripeWebhookSecret: testStripeSecret,
		lemonWebhookSecret:  testLemonSecret,
		httpClient:          http.DefaultClient,
	}
	return s, st, acct
}

// signStripe builds a valid Stripe-Signature header for the payload.
func signStripe(payload []byte) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testStripeSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func stripeEvent(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`, stripe.APIVersion, eventType, object))
}

func checkoutCompletedEvent(accountID string) []byte {
	object := fmt.Sprintf(
		`{"id":"cs_1","object":"checkout.session","customer":"cus_1","subscription":"sub_1","metadata":{"account_id":%q}}`,
		accountID,
	)
	return stripeEvent("checkout.session.completed", object)
}

func TestHandleStripeWebhook_BadSignature(t *testing.T) {
	s, st, acct := newTestService(t)

	payload := checkoutCompletedEvent(acct.ID)
	err := s.HandleStripeWebhook(payload, "t=123,v1=deadbeef")
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("got %v, want ErrBadSignature", err)
	}

	// No subscription row may exist after a rejected payload.
	if _, err := st.GetSubscription(acct.ID); err == nil {
		t.Error("rejected webhook mutated state")
	}
}

func TestStripe_CheckoutCompleted_UpgradesToPro(t *testing.T) {
	s, st, acct := newTestService(t)

	payload := checkoutCompletedEvent(acct.ID)
	if err := s.HandleStripeWebhook(payload, signStripe(payload)); err != nil {
		t.Fatalf("HandleStripeWebhook: %v", err)
	}

	sub, err := st.GetSubscription(acct.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.PlanType != "pro" || sub.Status != "active" {
		t.Errorf("plan/status: got %s/%s", sub.PlanType, sub.Status)
	}
	if sub.ProcessorCustomerID != "cus_1" || sub.ProcessorSubscriptionID != "sub_1" {
		t.Errorf("processor ids: got %s/%s", sub.ProcessorCustomerID, sub.ProcessorSubscriptionID)
	}
	if sub.AIAnalysesLimit != -1 {
		t.Errorf("limit: got %d, want -1", sub.AIAnalysesLimit)
	}
}

func TestStripe_SubscriptionUpdated(t *testing.T) {
	s, st, acct := newTestService(t)

	payload := checkoutCompletedEvent(acct.ID)
	if err := s.HandleStripeWebhook(payload, signStripe(payload)); err != nil {
		t.Fatalf("checkout event: %v", err)
	}

	update := stripeEvent("customer.subscription.updated",
		`{"id":"sub_1","object":"subscription","customer":"cus_1","status":"past_due",`+
			`"current_period_start":1756684800,"current_period_end":1759276800,"cancel_at_period_end":true}`)
	if err := s.HandleStripeWebhook(update, signStripe(update)); err != nil {
		t.Fatalf("update event: %v", err)
	}

	sub, _ := st.GetSubscription(acct.ID)
	if sub.Status != "past_due" {
		t.Errorf("status: got %q", sub.Status)
	}
	if !sub.CancelAtPeriodEnd {
		t.Error("cancel_at_period_end not applied")
	}
	if !sub.CurrentPeriodEnd.Valid {
		t.Error("period end not stored")
	}
}

func TestStripe_SubscriptionDeleted_DowngradesToFree(t *testing.T) {
	s, st, acct := newTestService(t)

	payload := checkoutCompletedEvent(acct.ID)
	if err := s.HandleStripeWebhook(payload, signStripe(payload)); err != nil {
		t.Fatalf("checkout event: %v", err)
	}

	deleted := stripeEvent("customer.subscription.deleted",
		`{"id":"sub_1","object":"subscription","customer":"cus_1","status":"canceled"}`)
	if err := s.HandleStripeWebhook(deleted, signStripe(deleted)); err != nil {
		t.Fatalf("deleted event: %v", err)
	}

	sub, _ := st.GetSubscription(acct.ID)
	if sub.PlanType != "free" || sub.Status != "canceled" {
		t.Errorf("plan/status: got %s/%s", sub.PlanType, sub.Status)
	}
	if sub.AIAnalysesLimit != 10 {
		t.Errorf("limit: got %d, want 10", sub.AIAnalysesLimit)
	}
	if sub.ProcessorSubscriptionID != "" {
		t.Error("subscription id not cleared")
	}
}

func TestStripe_InvoicePaymentSucceeded_ResetsUsage(t *testing.T) {
	s, st, acct := newTestService(t)

	payload := checkoutCompletedEvent(acct.ID)
	if err := s.HandleStripeWebhook(payload, signStripe(payload)); err != nil {
		t.Fatalf("checkout event: %v", err)
	}

	// Burn some usage, then renew.
	sub, _ := st.GetSubscription(acct.ID)
	sub.Status = "past_due"
	sub.AIAnalysesUsed = 7
	if err := st.SaveSubscription(sub); err != nil {
		t.Fatalf("save: %v", err)
	}

	invoice := stripeEvent("invoice.payment_succeeded",
		`{"id":"in_1","object":"invoice","customer":"cus_1"}`)
	if err := s.HandleStripeWebhook(invoice, signStripe(invoice)); err != nil {
		t.Fatalf("invoice event: %v", err)
	}

	sub, _ = st.GetSubscription(acct.ID)
	if sub.AIAnalysesUsed != 0 {
		t.Errorf("usage not reset: got %d", sub.AIAnalysesUsed)
	}
	if sub.Status != "active" {
		t.Errorf("status: got %q", sub.Status)
	}
}

func TestStripe_InvoicePaymentFailed_MarksPastDue(t *testing.T) {
	s, st, acct := newTestService(t)

	payload := checkoutCompletedEvent(acct.ID)
	if err := s.HandleStripeWebhook(payload, signStripe(payload)); err != nil {
		t.Fatalf("checkout event: %v", err)
	}

	invoice := stripeEvent("invoice.payment_failed",
		`{"id":"in_2","object":"invoice","customer":"cus_1"}`)
	if err := s.HandleStripeWebhook(invoice, signStripe(invoice)); err != nil {
		t.Fatalf("invoice event: %v", err)
	}

	sub, _ := st.GetSubscription(acct.ID)
	if sub.Status != "past_due" {
		t.Errorf("status: got %q", sub.Status)
	}
	if sub.PlanType != "pro" {
		t.Errorf("plan changed on payment failure: %q", sub.PlanType)
	}
}

func TestStripe_UnknownEventIgnored(t *testing.T) {
	s, _, _ := newTestService(t)

	payload := stripeEvent("customer.created", `{"id":"cus_9","object":"customer"}`)
	if err := s.HandleStripeWebhook(payload, signStripe(payload)); err != nil {
		t.Errorf("unknown event type should be acknowledged: %v", err)
	}
}

func TestStripe_UnknownCustomerIgnored(t *testing.T) {
	s, _, _ := newTestService(t)

	update := stripeEvent("customer.subscription.updated",
		`{"id":"sub_9","object":"subscription","customer":"cus_unknown","status":"active"}`)
	if err := s.HandleStripeWebhook(update, signStripe(update)); err != nil {
		t.Errorf("event for unknown customer should be acknowledged: %v", err)
	}
}
