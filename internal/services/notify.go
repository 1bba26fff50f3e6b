package services

import (
	"context"
	"errors"
	"fmt"

	"shopsquad/internal/config"
	"shopsquad/internal/models"
)

// ErrChannelDisabled is returned when a preference opts out of notifications
var ErrChannelDisabled = errors.New("notification channel disabled")

// Notifications delivers a message over the channel a user picked.
// Either service may be nil when its channel is not configured.
type Notifications struct {
	Email    *EmailService
	Whatsapp *WahaService
}

// Send delivers subject/body according to pref.
func (n *Notifications) Send(ctx context.Context, pref models.UserNotifPreference, subject, body string) error {
	switch pref.Channel {
	case models.NotificationChannelNone:
		return ErrChannelDisabled
	case models.NotificationChannelWhatsapp:
		if n.Whatsapp == nil {
			return fmt.Errorf("whatsapp not configured")
		}
		return n.Whatsapp.SendMessage(ctx, pref.WhatsappChatID(), "*"+subject+"*\n\n"+body)
	case models.NotificationChannelEmail, "":
		if n.Email == nil {
			return fmt.Errorf("email not configured")
		}
		if pref.Email == "" {
			return fmt.Errorf("no email address for user %s", pref.UserID)
		}
		return n.Email.SendEmail([]string{pref.Email}, subject, body)
	}
	return fmt.Errorf("unknown notification channel %q", pref.Channel)
}

// NewNotifications enables each channel that cfg configures.
func NewNotifications(cfg config.Config) *Notifications {
	n := &Notifications{}
	if cfg.SMTP.Enabled() {
		n.Email = NewEmailService(cfg.SMTP)
	}
	if cfg.WahaBaseURL != "" {
		n.Whatsapp = NewWahaService(cfg.WahaBaseURL, cfg.WahaAPIKey, cfg.WahaCountryCode)
	}
	return n
}
