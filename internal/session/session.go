// Package session resolves Firebase session cookies into the identity of the
// current request.
package session

import (
	"context"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"shopsquad/internal/models"
)

const (
	CookieName = "session"
	// Lifetime is how long a session cookie stays valid after login
	Lifetime = 5 * 24 * time.Hour

	identityKey = "identity"
)

// Verifier checks a session cookie. *auth.Client satisfies it.
type Verifier interface {
	VerifySessionCookie(ctx context.Context, sessionCookie string) (*auth.Token, error)
}

// Issuer exchanges an ID token for a session cookie. *auth.Client satisfies it.
type Issuer interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
}

// Provider is the full auth client surface the server uses.
type Provider interface {
	Verifier
	Issuer
}

// IdentityFromToken reads the standard Firebase claims off a verified token.
func IdentityFromToken(tok *auth.Token) models.Identity {
	id := models.Identity{ID: tok.UID}
	if name, ok := tok.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	if picture, ok := tok.Claims["picture"].(string); ok {
		id.AvatarURL = picture
	}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	return id
}

// Set stores identity on the request.
func Set(c echo.Context, identity models.Identity) {
	c.Set(identityKey, &identity)
}

// Identity returns the request's identity, or nil when nobody is logged in.
func Identity(c echo.Context) *models.Identity {
	identity, _ := c.Get(identityKey).(*models.Identity)
	return identity
}

// Cookie builds the session cookie. An empty value with maxAge < 0 clears it.
func Cookie(value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}
