package services

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsquad/internal/config"
	"shopsquad/internal/models"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func fakeEmail(cfg config.SMTPConfig, sent *[]sentMail) *EmailService {
	s := NewEmailService(cfg)
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*sent = append(*sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return s
}

func TestSendEmail(t *testing.T) {
	var sent []sentMail
	s := fakeEmail(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "squads@example.com"}, &sent)

	require.NoError(t, s.SendEmail([]string{"u1@example.com"}, "Reminder:\nWeekend Trip", "Line one\nLine two"))
	require.Len(t, sent, 1)
	assert.Equal(t, "smtp.example.com:587", sent[0].addr)
	assert.Equal(t, "squads@example.com", sent[0].from)
	assert.Contains(t, sent[0].msg, "Subject: Reminder: Weekend Trip\r\n")
	assert.Contains(t, sent[0].msg, "Line one\r\nLine two")
}

func TestSendEmailNotConfigured(t *testing.T) {
	var sent []sentMail
	s := fakeEmail(config.SMTPConfig{}, &sent)

	assert.Error(t, s.SendEmail([]string{"u1@example.com"}, "s", "b"))
	assert.Empty(t, sent)
}

func TestNotificationsRouting(t *testing.T) {
	var sent []sentMail
	n := &Notifications{Email: fakeEmail(config.SMTPConfig{Host: "smtp", Port: 25, From: "a@b"}, &sent)}
	ctx := context.Background()

	emailPref := models.UserNotifPreference{UserID: "U1", Channel: models.NotificationChannelEmail, Email: "u1@example.com"}
	require.NoError(t, n.Send(ctx, emailPref, "Hi", "Body"))
	assert.Len(t, sent, 1)

	err := n.Send(ctx, models.DefaultNotifPreference("U1", "u1@example.com"), "Hi", "Body")
	assert.True(t, errors.Is(err, ErrChannelDisabled), "reminders stay off until a channel is saved")
	assert.Len(t, sent, 1)

	err = n.Send(ctx, models.UserNotifPreference{UserID: "U1", Channel: models.NotificationChannelNone}, "Hi", "Body")
	assert.True(t, errors.Is(err, ErrChannelDisabled))

	err = n.Send(ctx, models.UserNotifPreference{UserID: "U1", Channel: models.NotificationChannelWhatsapp, Phone: "1"}, "Hi", "Body")
	assert.Error(t, err, "whatsapp is not configured")
}
