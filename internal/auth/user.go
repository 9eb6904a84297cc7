package auth

// SessionUser is the identity extracted from a verified Clerk session token.
type SessionUser struct {
	ClerkID string `json:"clerk_id"`
	Email   string `json:"email"`
}

type contextKey string

const UserContextKey contextKey = "session_user"
