package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"shopsquad/internal/config"
	"shopsquad/internal/models"
	"shopsquad/internal/services"
	"shopsquad/pkg/logging"
)

func main() {
	channel := flag.String("channel", "whatsapp", "Channel: email or whatsapp")
	to := flag.String("to", "", "Email address, phone number (e.g. 628123456789) or WhatsApp group id")
	group := flag.Bool("group", false, "Treat -to as a WhatsApp group id")
	subject := flag.String("subject", "ShopSquad test", "Message subject")
	msg := flag.String("msg", "Test message from ShopSquad", "Message body")
	flag.Parse()

	if *to == "" {
		slog.Error("please provide a recipient using the -to flag")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	pref := models.UserNotifPreference{
		UserID:             "test",
		Channel:            models.NotificationChannel(*channel),
		WhatsappTargetType: models.WhatsappTargetTypePersonal,
	}
	switch {
	case pref.Channel == models.NotificationChannelEmail:
		pref.Email = *to
	case *group:
		pref.WhatsappTargetType = models.WhatsappTargetTypeGroup
		pref.WhatsappGroupID = *to
	default:
		pref.Phone = *to
	}
	if err := pref.Validate(); err != nil {
		logger.Error("invalid recipient", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger.Info("sending test message", "channel", pref.Channel, "to", *to)
	if err := services.NewNotifications(cfg).Send(ctx, pref, *subject, *msg); err != nil {
		logger.Error("failed to send message", "error", err)
		os.Exit(1)
	}
	logger.Info("message sent successfully")
}
