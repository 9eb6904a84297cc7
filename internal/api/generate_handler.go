package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/generation"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

var nowFunc = time.Now

type GenerateHandler struct {
	orchestrator *generation.Orchestrator
}

func NewGenerateHandler(orchestrator *generation.Orchestrator) *GenerateHandler {
	return &GenerateHandler{orchestrator: orchestrator}
}

type generateRequest struct {
	Base64Image  string `json:"base64Image"`
	RoomType     string `json:"roomType"`
	Theme        string `json:"theme"`
	Quality      string `json:"quality,omitempty"`
	CustomPrompt string `json:"customPrompt,omitempty"`
}

type generateResponse struct {
	Success      bool     `json:"success"`
	PredictionID string   `json:"predictionId"`
	OutputURLs   []string `json:"outputUrls"`
}

type insufficientCreditsResponse struct {
	Error   string `json:"error"`
	Credits int    `json:"credits"`
}

type rateLimitedResponse struct {
	Error   string `json:"error"`
	ResetAt string `json:"resetAt"`
}

func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	imageData, contentType, err := decodeImage(req.Base64Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "base64Image: "+err.Error())
		return
	}

	result, err := h.orchestrator.Generate(r.Context(), dbUser, generation.Request{
		ImageData:    imageData,
		ContentType:  contentType,
		RoomType:     req.RoomType,
		Theme:        req.Theme,
		Quality:      req.Quality,
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		h.writeGenerateError(w, dbUser, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Success:      true,
		PredictionID: result.GenerationID,
		OutputURLs:   result.OutputURLs,
	})
}

func (h *GenerateHandler) writeGenerateError(w http.ResponseWriter, dbUser *models.User, err error) {
	var validationErr *generation.ValidationError
	var rateLimitErr *generation.RateLimitError
	var generationErr *generation.GenerationError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, generation.ErrInsufficientCredits):
		writeJSON(w, http.StatusPaymentRequired, insufficientCreditsResponse{
			Error:   "Insufficient credits",
			Credits: dbUser.Credits,
		})
	case errors.As(err, &rateLimitErr):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rateLimitErr)))
		writeJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Error:   "Too many requests",
			ResetAt: rateLimitErr.ResetAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	case errors.As(err, &generationErr):
		writeError(w, http.StatusInternalServerError, generationErr.Cause+". Your credit has been refunded.")
	default:
		log.Error().Err(err).Str("user_id", dbUser.ID).Msg("generation request failed")
		writeError(w, http.StatusInternalServerError, internalServerError)
	}
}

type generationStatusResponse struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	OutputURLs []string `json:"outputUrls,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func (h *GenerateHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	genID := mux.Vars(r)["id"]
	gen, err := h.orchestrator.Get(r.Context(), dbUser.ID, genID)
	if errors.Is(err, generation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Generation not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("generation_id", genID).Msg("failed to load generation")
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	writeJSON(w, http.StatusOK, generationStatusResponse{
		ID:         gen.ID,
		Status:     string(gen.Status),
		OutputURLs: gen.OutputURLs,
		Error:      gen.Error,
	})
}

func retryAfterSeconds(err *generation.RateLimitError) int {
	secs := int(err.ResetAt.Sub(nowFunc()).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// decodeImage accepts a bare base64 payload or a data URI and returns the
// raw bytes plus the sniffed content type.
func decodeImage(encoded string) ([]byte, string, error) {
	if encoded == "" {
		return nil, "", errors.New("image is required")
	}
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 {
		encoded = encoded[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", errors.New("invalid base64 encoding")
	}
	return data, http.DetectContentType(data), nil
}
