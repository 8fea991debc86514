package server

import (
	"io"
	"net/http"
)

// maxWebhookBody caps webhook payload reads.
const maxWebhookBody = 1 << 20

// handleCheckout starts a checkout with the configured processor and
// returns the hosted URL.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)

	var url string
	var err error
	switch s.billing.Processor() {
	case "stripe":
		url, err = s.billing.CreateStripeCheckout(acct.ID, acct.Email)
	case "lemonsqueezy":
		url, err = s.billing.CreateLemonCheckout(acct.ID, acct.Email)
	default:
		writeError(w, http.StatusServiceUnavailable, "billing not configured")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleBillingPortal returns a Stripe billing-portal URL.
func (s *Server) handleBillingPortal(w http.ResponseWriter, r *http.Request) {
	url, err := s.billing.CreateStripePortal(accountFrom(r).ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	if err := s.billing.HandleStripeWebhook(payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeServiceError(w, err)
		return
	}
	if s.collector != nil {
		s.collector.WebhookEvent("stripe")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleLemonWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	if err := s.billing.HandleLemonWebhook(payload, r.Header.Get("X-Signature")); err != nil {
		writeServiceError(w, err)
		return
	}
	if s.collector != nil {
		s.collector.WebhookEvent("lemonsqueezy")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
