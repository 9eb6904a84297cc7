package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

// ClerkWebhookHandler receives identity-provider lifecycle events. Only
// user.created matters here; everything else is acknowledged and ignored.
type ClerkWebhookHandler struct {
	webhook *svix.Webhook
	users   user.Service
}

func NewClerkWebhookHandler(webhookSecret string, users user.Service) (*ClerkWebhookHandler, error) {
	wh, err := svix.NewWebhook(webhookSecret)
	if err != nil {
		return nil, err
	}
	return &ClerkWebhookHandler{webhook: wh, users: users}, nil
}

type clerkEvent struct {
	Type string `json:"type"`
	Data struct {
		ID                    string `json:"id"`
		FirstName             string `json:"first_name"`
		LastName              string `json:"last_name"`
		PrimaryEmailAddressID string `json:"primary_email_address_id"`
		EmailAddresses        []struct {
			ID           string `json:"id"`
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

func (e *clerkEvent) primaryEmail() string {
	for _, addr := range e.Data.EmailAddresses {
		if addr.ID == e.Data.PrimaryEmailAddressID {
			return addr.EmailAddress
		}
	}
	if len(e.Data.EmailAddresses) > 0 {
		return e.Data.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (h *ClerkWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if err := h.webhook.Verify(payload, r.Header); err != nil {
		log.Warn().Err(err).Msg("clerk webhook signature verification failed")
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var event clerkEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if event.Type != "user.created" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if event.Data.ID == "" {
		http.Error(w, "Missing user id", http.StatusBadRequest)
		return
	}

	// GetOrCreate absorbs replayed deliveries of the same sign-up event.
	if _, err := h.users.GetOrCreate(r.Context(), event.Data.ID, event.primaryEmail(), event.Data.FirstName, event.Data.LastName); err != nil {
		log.Error().Err(err).Str("clerk_id", event.Data.ID).Msg("failed to create user from webhook")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().Str("clerk_id", event.Data.ID).Msg("user created from clerk webhook")
	w.WriteHeader(http.StatusOK)
}
