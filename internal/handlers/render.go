package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/session"
)

// render writes a templ component as the HTML response
func render(c echo.Context, code int, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return component.Render(c.Request().Context(), c.Response())
}

// requireIdentity returns the logged-in identity. RequireAuth guarantees one on
// protected routes, so a miss here means a routing mistake.
func requireIdentity(c echo.Context) (*models.Identity, error) {
	identity := session.Identity(c)
	if identity == nil {
		return nil, apperrors.Unauthenticated("handlers", "Please log in to continue.")
	}
	return identity, nil
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/squads"
	}
	return next
}

func redirect(c echo.Context, to string) error {
	return c.Redirect(http.StatusSeeOther, to)
}

func errorsIsValidation(err error) bool {
	return errors.Is(err, apperrors.ErrValidation)
}
