package user

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/auth"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
)

type dbContextKey string

const dbUserContextKey dbContextKey = "db_user"

func GetDBUserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(dbUserContextKey).(*models.User)
	return u, ok
}

// Middleware resolves (and auto-creates) the local user record for the
// authenticated Clerk identity and stashes it in the request context.
func Middleware(userService Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionUser, ok := auth.GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			dbUser, err := userService.GetOrCreate(r.Context(), sessionUser.ClerkID, sessionUser.Email, "", "")
			if err != nil {
				log.Error().Err(err).Str("clerk_id", sessionUser.ClerkID).Msg("failed to get or create user")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), dbUserContextKey, dbUser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
