package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/dedup"
	"github.com/ThanosKa/magic-room-sub001/internal/generation"
	"github.com/ThanosKa/magic-room-sub001/internal/inference"
)

const replicateSignatureHeader = "x-replicate-signature"

// ReplicateWebhookHandler applies asynchronous prediction updates from the
// inference provider. The generation id rides on the webhook URL the
// orchestrator registered when creating the prediction.
type ReplicateWebhookHandler struct {
	secret       string
	orchestrator *generation.Orchestrator
	dedup        *dedup.Deduplicator
}

func NewReplicateWebhookHandler(secret string, orchestrator *generation.Orchestrator, d *dedup.Deduplicator) *ReplicateWebhookHandler {
	return &ReplicateWebhookHandler{
		secret:       secret,
		orchestrator: orchestrator,
		dedup:        d,
	}
}

func (h *ReplicateWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if !inference.VerifySignature(payload, r.Header.Get(replicateSignatureHeader), h.secret) {
		log.Warn().Msg("replicate webhook signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	genID := r.URL.Query().Get("id")
	if genID == "" {
		http.Error(w, "Missing generation id", http.StatusBadRequest)
		return
	}

	pred, err := inference.ParsePrediction(payload)
	if err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	// One marker per (generation, status) pair: retries of the same report
	// are dropped, later status transitions still get through.
	if h.dedup.CheckAndMark(r.Context(), "replicate", genID+":"+pred.Status) {
		log.Info().Str("generation_id", genID).Str("status", pred.Status).
			Msg("duplicate replicate webhook ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.orchestrator.HandleCompletion(r.Context(), genID, pred); err != nil {
		// Release the marker so the provider's retry of this report is
		// processed instead of dropped as a duplicate.
		h.dedup.Unmark(r.Context(), "replicate", genID+":"+pred.Status)
		if errors.Is(err, generation.ErrNotFound) {
			log.Error().Str("generation_id", genID).Msg("replicate webhook for unknown generation")
			http.Error(w, "Generation not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("generation_id", genID).Msg("failed to process replicate webhook")
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
