package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
)

// PreferenceStore loads and saves notification preferences. found is false
// for users who never saved one. *tasks.GormStore satisfies it, and the
// reminder task reads through the same store.
type PreferenceStore interface {
	Preference(ctx context.Context, userID string) (pref models.UserNotifPreference, found bool, err error)
	SavePreference(ctx context.Context, pref *models.UserNotifPreference) error
}

// UserPreferenceHandler reads and stores how reminders reach the logged-in user
type UserPreferenceHandler struct {
	store  PreferenceStore
	logger *slog.Logger
}

func NewUserPreferenceHandler(store PreferenceStore, logger *slog.Logger) *UserPreferenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserPreferenceHandler{store: store, logger: logger}
}

type UpdatePreferenceRequest struct {
	Channel            models.NotificationChannel `json:"channel"`
	Email              string                     `json:"email"`
	Phone              string                     `json:"phone"`
	WhatsappTargetType string                     `json:"whatsapp_target_type"`
	WhatsappGroupID    string                     `json:"whatsapp_group_id"`
}

// PreferenceResponse is the preference as reminders will use it. Saved is
// false until the user picks a channel; until then nothing is delivered.
type PreferenceResponse struct {
	models.UserNotifPreference
	Saved bool `json:"saved"`
}

// LoadPreference returns the stored preference for identity, or the default
// (reminders off, email prefilled) when nothing was saved yet.
func LoadPreference(ctx context.Context, store PreferenceStore, identity *models.Identity) (models.UserNotifPreference, bool, error) {
	pref, found, err := store.Preference(ctx, identity.ID)
	if err != nil {
		return pref, false, err
	}
	if !found {
		return models.DefaultNotifPreference(identity.ID, identity.Email), false, nil
	}
	return pref, true, nil
}

// GetUserPreference handles GET /api/me/notifications
func (h *UserPreferenceHandler) GetUserPreference(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	if h.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Notification preferences are not available")
	}

	pref, saved, err := LoadPreference(c.Request().Context(), h.store, identity)
	if err != nil {
		h.logger.Error("fetching preference failed", "user_id", identity.ID, "error", err)
		return apperrors.Persistence("handlers.GetUserPreference", err)
	}
	return c.JSON(http.StatusOK, PreferenceResponse{UserNotifPreference: pref, Saved: saved})
}

// UpdateUserPreference handles PUT /api/me/notifications
func (h *UserPreferenceHandler) UpdateUserPreference(c echo.Context) error {
	const op = "handlers.UpdateUserPreference"
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	if h.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Notification preferences are not available")
	}

	var req UpdatePreferenceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation(op, "Invalid request body")
	}

	ctx := c.Request().Context()
	// Upsert preference
	pref, _, err := LoadPreference(ctx, h.store, identity)
	if err != nil {
		return apperrors.Persistence(op, err)
	}
	pref.Channel = req.Channel
	pref.Email = strings.TrimSpace(req.Email)
	pref.Phone = strings.TrimSpace(req.Phone)
	pref.WhatsappTargetType = req.WhatsappTargetType
	pref.WhatsappGroupID = strings.TrimSpace(req.WhatsappGroupID)
	if pref.WhatsappTargetType == "" {
		pref.WhatsappTargetType = models.WhatsappTargetTypePersonal
	}

	if err := pref.Validate(); err != nil {
		return apperrors.Validation(op, err.Error())
	}

	if err := h.store.SavePreference(ctx, &pref); err != nil {
		h.logger.Error("saving preference failed", "user_id", identity.ID, "error", err)
		return apperrors.Persistence(op, err)
	}
	return c.JSON(http.StatusOK, PreferenceResponse{UserNotifPreference: pref, Saved: true})
}
