package firebase

import (
	"context"

	"cloud.google.com/go/firestore"
	firebaseSDK "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// App bundles the initialized Firebase App and the clients the portal uses.
type App struct {
	App       *firebaseSDK.App
	Auth      *auth.Client
	Firestore *firestore.Client
}

// Initialize creates the Firebase App from a service account file and opens the auth and Firestore
// clients.
func Initialize(ctx context.Context, credentialsFile string) (*App, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebaseSDK.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "opening firebase auth client")
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "opening firestore client")
	}

	glog.Infof("firebase app initialized from %s", credentialsFile)
	return &App{App: app, Auth: authClient, Firestore: firestoreClient}, nil
}

// Close releases the Firestore client.
func (a *App) Close() error {
	return a.Firestore.Close()
}
