package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/session"
	"shopsquad/web/views"
)

// ErrorResponse is the JSON body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps an error to its HTTP status and the message shown to the user.
func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		return he.Code, msg
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, apperrors.Message(err)
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized, apperrors.Message(err)
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, apperrors.Message(err)
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, apperrors.Message(err)
	}
	return http.StatusInternalServerError, apperrors.GenericMessage
}

func titleFor(code int) string {
	switch code {
	case http.StatusNotFound:
		return "Page Not Found"
	case http.StatusForbidden:
		return "Access Denied"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusBadRequest:
		return "Bad Request"
	}
	return "Internal Server Error"
}

// ErrorHandler renders errors as JSON for /api routes and as the error page otherwise.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, message := StatusFor(err)
		attrs := []any{"method", c.Request().Method, "path", c.Request().URL.Path, "status", code, "error", err}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
		} else {
			logger.Debug("request rejected", attrs...)
		}

		if IsAPI(c) || c.Request().Method == http.MethodHead {
			if c.Request().Method == http.MethodHead {
				_ = c.NoContent(code)
				return
			}
			_ = c.JSON(code, ErrorResponse{Error: message})
			return
		}

		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(code)
		props := views.ErrorPageProps{
			Identity: session.Identity(c),
			Code:     code,
			Title:    titleFor(code),
			Message:  message,
		}
		if renderErr := views.ErrorPage(props).Render(c.Request().Context(), c.Response()); renderErr != nil {
			logger.Error("failed to render error page", "error", renderErr)
		}
	}
}
