package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"shopsquad/internal/config"
	"shopsquad/internal/services"
	"shopsquad/internal/store"
	"shopsquad/internal/store/firestore"
	"shopsquad/pkg/logging"
)

// Indexes squads stored before participantIds existed so they show up in
// participants' lists again. Safe to run more than once.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	if cfg.Backend != config.BackendFirestore {
		logger.Error("backfill only applies to the firestore backend", "backend", cfg.Backend)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fb, err := services.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
	if err != nil {
		logger.Error("firebase initialization failed", "error", err)
		os.Exit(1)
	}
	client, err := fb.Firestore(ctx)
	if err != nil {
		logger.Error("failed to open firestore", "error", err)
		os.Exit(1)
	}

	s := firestore.New(client, store.CollectionName, logger)
	defer s.Close()

	updated, err := s.BackfillParticipantIDs(ctx)
	if err != nil {
		logger.Error("backfill failed", "updated", updated, "error", err)
		os.Exit(1)
	}
	logger.Info("backfill finished", "updated", updated)
}
