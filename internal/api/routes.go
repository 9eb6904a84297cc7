package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ThanosKa/magic-room-sub001/internal/auth"
	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

type Handlers struct {
	Generate         *GenerateHandler
	Checkout         *CheckoutHandler
	Upload           *UploadHandler
	User             *UserHandler
	ClerkWebhook     *ClerkWebhookHandler
	ReplicateWebhook *ReplicateWebhookHandler
	StripeWebhook    *StripeWebhookHandler
}

func SetupRoutes(h Handlers, authMiddleware *auth.Middleware, userService user.Service, allowedOrigin string) *mux.Router {
	r := mux.NewRouter()

	r.Use(CORSMiddleware(allowedOrigin))
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// Webhooks and uploads sit outside session auth: providers sign their
	// own requests, uploads happen before the generation call.
	r.HandleFunc("/api/webhooks/clerk", h.ClerkWebhook.Handle).Methods(http.MethodPost)
	r.HandleFunc("/api/webhooks/replicate", h.ReplicateWebhook.Handle).Methods(http.MethodPost)
	r.HandleFunc("/api/webhooks/stripe", h.StripeWebhook.Handle).Methods(http.MethodPost)
	r.HandleFunc("/api/upload", h.Upload.Upload).Methods(http.MethodPost)

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(authMiddleware.RequireAuth)
	authed.Use(user.Middleware(userService))

	authed.HandleFunc("/checkout", h.Checkout.CreateCheckout).Methods(http.MethodPost)
	authed.HandleFunc("/generate", h.Generate.Generate).Methods(http.MethodPost)
	authed.HandleFunc("/generate/{id}", h.Generate.GetStatus).Methods(http.MethodGet)
	authed.HandleFunc("/user", h.User.GetUser).Methods(http.MethodGet)

	return r
}
