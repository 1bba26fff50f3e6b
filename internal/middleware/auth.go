package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/session"
)

// RequireAuth verifies the Firebase session cookie and stores the identity on
// the request. Pages redirect to /login when it is missing or invalid; API
// routes answer 401.
func RequireAuth(verifier session.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if verifier == nil {
				return reject(c, "auth_not_configured")
			}

			cookie, err := c.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				return reject(c, "")
			}

			token, err := verifier.VerifySessionCookie(c.Request().Context(), cookie.Value)
			if err != nil {
				c.Logger().Debugf("rejecting session cookie: %v", err)
				c.SetCookie(session.Cookie("", -1, false))
				return reject(c, "")
			}

			session.Set(c, session.IdentityFromToken(token))
			return next(c)
		}
	}
}

func reject(c echo.Context, reason string) error {
	if IsAPI(c) {
		return apperrors.Unauthenticated("middleware.RequireAuth", "Please log in to continue.")
	}

	target := "/login?next=" + url.QueryEscape(c.Request().URL.RequestURI())
	if reason != "" {
		target += "&error=" + reason
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// IsAPI reports whether the request targets a JSON endpoint.
func IsAPI(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/auth/")
}
