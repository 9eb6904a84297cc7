package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v84"

	"github.com/ThanosKa/magic-room-sub001/internal/billing"
	"github.com/ThanosKa/magic-room-sub001/internal/dedup"
	"github.com/ThanosKa/magic-room-sub001/internal/ledger"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

// BillingVerifier is the slice of the billing client the webhook needs.
type BillingVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
}

// StripeWebhookHandler credits purchased packages when checkout completes.
type StripeWebhookHandler struct {
	billing BillingVerifier
	ledger  *ledger.Service
	users   user.Repository
	dedup   *dedup.Deduplicator
}

func NewStripeWebhookHandler(b BillingVerifier, ledgerSvc *ledger.Service, users user.Repository, d *dedup.Deduplicator) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		billing: b,
		ledger:  ledgerSvc,
		users:   users,
		dedup:   d,
	}
}

// checkoutSession is the slice of the event payload this handler needs,
// validated at the boundary before use.
type checkoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	if event.Type != "checkout.session.completed" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.dedup.CheckAndMark(r.Context(), "stripe", event.ID) {
		log.Info().Str("event_id", event.ID).Msg("duplicate stripe webhook ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	status, err := h.handleCheckoutCompleted(r.Context(), event)
	if err != nil {
		// Release the marker so a retry of this delivery is processed
		// instead of dropped as a duplicate.
		h.dedup.Unmark(r.Context(), "stripe", event.ID)
		log.Error().Err(err).Str("event_id", event.ID).Msg("stripe webhook handling failed")
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) (int, error) {
	var session checkoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return http.StatusBadRequest, fmt.Errorf("failed to parse checkout session: %w", err)
	}

	// A promo code can bring the price to zero; both outcomes credit.
	if session.PaymentStatus != "paid" && session.PaymentStatus != "no_payment_required" {
		return http.StatusBadRequest, fmt.Errorf("checkout session %s not paid (status %s)", session.ID, session.PaymentStatus)
	}

	userID := session.Metadata[billing.MetadataUserID]
	packageID := session.Metadata[billing.MetadataPackageID]
	if userID == "" || packageID == "" {
		return http.StatusBadRequest, fmt.Errorf("checkout session %s missing user or package metadata", session.ID)
	}

	pkg := billing.GetPackage(packageID)
	if pkg == nil {
		return http.StatusBadRequest, fmt.Errorf("unknown package %s in checkout session %s", packageID, session.ID)
	}

	if _, err := h.users.GetByID(ctx, userID); err != nil {
		return http.StatusBadRequest, fmt.Errorf("checkout session %s references unknown user %s: %w", session.ID, userID, err)
	}

	if err := h.ledger.Credit(ctx, userID, pkg.Credits); err != nil {
		return http.StatusInternalServerError, fmt.Errorf("failed to credit user %s: %w", userID, err)
	}

	paymentRef := session.PaymentIntent
	if paymentRef == "" {
		paymentRef = session.ID
	}
	meta := map[string]string{
		"package_id": pkg.ID,
		"session_id": session.ID,
	}
	if err := h.ledger.Record(ctx, userID, models.TransactionPurchase, pkg.Credits, paymentRef, meta); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("session_id", session.ID).
			Msg("failed to record purchase transaction")
	}

	log.Info().Str("user_id", userID).Str("package_id", pkg.ID).Int("credits", pkg.Credits).
		Msg("credits purchased")
	return http.StatusOK, nil
}
