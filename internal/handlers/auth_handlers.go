package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/config"
	"shopsquad/internal/session"
	"shopsquad/web/views"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	issuer session.Issuer
	cfg    config.Config
}

// NewAuthHandler creates a new AuthHandler. issuer may be nil when Firebase
// is not configured.
func NewAuthHandler(issuer session.Issuer, cfg config.Config) *AuthHandler {
	return &AuthHandler{issuer: issuer, cfg: cfg}
}

var loginErrors = map[string]string{
	"auth_not_configured": "Sign-in is not configured on this server.",
	"session_expired":     "Your session has expired. Please log in again.",
}

// LoginPage renders the login page
func (h *AuthHandler) LoginPage(c echo.Context) error {
	props := views.LoginPageProps{
		FirebaseAPIKey:     h.cfg.FirebaseAPIKey,
		FirebaseAuthDomain: h.cfg.FirebaseAuthDomain,
		FirebaseProjectID:  h.cfg.FirebaseProjectID,
		Error:              loginErrors[c.QueryParam("error")],
		Next:               safeNext(c.QueryParam("next")),
	}
	return render(c, http.StatusOK, views.LoginPage(props))
}

// HandleLogin verifies the Firebase ID token and creates a session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.issuer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase not initialized")
	}

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
	}

	ctx := c.Request().Context()
	if _, err := h.issuer.VerifyIDToken(ctx, tokenString); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	cookieValue, err := h.issuer.SessionCookie(ctx, tokenString, session.Lifetime)
	if err != nil {
		c.Logger().Errorf("failed to create session cookie: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}

	c.SetCookie(session.Cookie(cookieValue, int(session.Lifetime.Seconds()), h.cfg.IsProduction()))
	return c.JSON(http.StatusOK, StatusResponse{Status: "success"})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	c.SetCookie(session.Cookie("", -1, h.cfg.IsProduction()))

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return c.JSON(http.StatusOK, StatusResponse{Status: "logged out"})
	}
	return redirect(c, "/login")
}
