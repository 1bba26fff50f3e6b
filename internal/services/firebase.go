package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Firebase bundles the clients the server takes from one Firebase app
type Firebase struct {
	App  *firebase.App
	Auth *auth.Client
}

// InitFirebase initializes the Firebase Admin SDK from a service account file.
// projectID may be empty when the credentials carry it.
func InitFirebase(ctx context.Context, credPath, projectID string) (*Firebase, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}

	return &Firebase{App: app, Auth: authClient}, nil
}

// Firestore opens a Firestore client on the app's project
func (f *Firebase) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := f.App.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore: %w", err)
	}
	return client, nil
}
