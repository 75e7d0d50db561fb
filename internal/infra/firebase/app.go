// Package firebase wires the Firebase Admin SDK: the Firestore client used by
// the document store and the Auth client used to verify ID tokens.
package firebase

import (
	"context"
	"encoding/base64"
	"fmt"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Settings selects the project and the credentials source. With neither a
// file nor inline JSON, Application Default Credentials are used.
type Settings struct {
	ProjectID         string
	CredentialsFile   string
	CredentialsBase64 string
}

// Clients are the Admin SDK handles the BFA needs.
type Clients struct {
	Firestore *firestore.Client
	Auth      *auth.Client
}

// Close releases the Firestore connection.
func (c *Clients) Close() error {
	if c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close()
}

// NewClients initializes the Firebase app and its Firestore and Auth clients.
func NewClients(ctx context.Context, s Settings, logger *zap.Logger) (*Clients, error) {
	var opts []option.ClientOption
	switch {
	case s.CredentialsFile != "":
		logger.Info("firebase: using credentials file", zap.String("path", s.CredentialsFile))
		opts = append(opts, option.WithCredentialsFile(s.CredentialsFile))
	case s.CredentialsBase64 != "":
		raw, err := base64.StdEncoding.DecodeString(s.CredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("decode FIREBASE_CREDENTIALS_BASE64: %w", err)
		}
		logger.Info("firebase: using inline service account")
		opts = append(opts, option.WithCredentialsJSON(raw))
	default:
		logger.Info("firebase: using application default credentials")
	}

	var cfg *fb.Config
	if s.ProjectID != "" {
		cfg = &fb.Config{ProjectID: s.ProjectID}
	}

	app, err := fb.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("app.Auth: %w", err)
	}

	return &Clients{Firestore: fs, Auth: authClient}, nil
}
