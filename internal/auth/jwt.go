package auth

import (
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingClaims = errors.New("missing required claims")
)

// JWTVerifier validates Clerk session tokens against the instance JWKS.
type JWTVerifier struct {
	jwks *keyfunc.JWKS
}

func NewJWTVerifier(jwksURL string) (*JWTVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	return &JWTVerifier{jwks: jwks}, nil
}

func (v *JWTVerifier) VerifyToken(tokenString string) (*SessionUser, error) {
	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMissingClaims
	}

	clerkID, ok := claims["sub"].(string)
	if !ok || clerkID == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMissingClaims)
	}

	// Clerk session tokens carry the email only when the template includes
	// it; the user record is the source of truth either way.
	email, _ := claims["email"].(string)

	return &SessionUser{
		ClerkID: clerkID,
		Email:   email,
	}, nil
}

func (v *JWTVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
