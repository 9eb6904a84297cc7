package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/ledger"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

type UserHandler struct {
	ledger *ledger.Service
}

func NewUserHandler(ledgerSvc *ledger.Service) *UserHandler {
	return &UserHandler{ledger: ledgerSvc}
}

type userResponse struct {
	User         *models.User          `json:"user"`
	Transactions []*models.Transaction `json:"transactions"`
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	dbUser, ok := user.GetDBUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	txs, err := h.ledger.History(r.Context(), dbUser.ID, 20)
	if err != nil {
		log.Error().Err(err).Str("user_id", dbUser.ID).Msg("failed to load transaction history")
		txs = nil
	}

	writeJSON(w, http.StatusOK, userResponse{
		User:         dbUser,
		Transactions: txs,
	})
}
