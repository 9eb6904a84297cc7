package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v84"

	"github.com/ThanosKa/magic-room-sub001/internal/billing"
	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

// CheckoutService is the slice of the billing client this handler needs.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, userID string, pkg *billing.CreditPackage) (*stripe.CheckoutSession, error)
}

type CheckoutHandler struct {
	billing CheckoutService
}

func NewCheckoutHandler(b CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{billing: b}
}

type createCheckoutRequest struct {
	PackageID string `json:"packageId"`
}

type createCheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PackageID == "" {
		writeError(w, http.StatusBadRequest, "packageId is required")
		return
	}

	pkg := billing.GetPackage(req.PackageID)
	if pkg == nil {
		writeError(w, http.StatusBadRequest, "Unknown package")
		return
	}
	if !pkg.Active {
		writeError(w, http.StatusNotFound, "Package is not available")
		return
	}

	session, err := h.billing.CreateCheckoutSession(r.Context(), dbUser.ID, pkg)
	if err != nil {
		log.Error().Err(err).Str("user_id", dbUser.ID).Str("package_id", pkg.ID).
			Msg("failed to create checkout session")
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, createCheckoutResponse{
		URL:       session.URL,
		SessionID: session.ID,
	})
}
