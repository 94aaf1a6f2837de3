package identity

import (
	"context"
	"strings"
	"time"

	"firebase.google.com/go/auth"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// FirebaseBackend uses the Firebase admin SDK for credential management and session cookies, and
// the Identity Toolkit REST API for password sign-in and reset mail, which the admin SDK lacks.
type FirebaseBackend struct {
	authClient *auth.Client
	toolkit    *identitytoolkit.Service
}

func NewFirebaseBackend(ctx context.Context, authClient *auth.Client, apiKey string) (*FirebaseBackend, error) {
	toolkit, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating identity toolkit service")
	}
	return &FirebaseBackend{authClient: authClient, toolkit: toolkit}, nil
}

func (b *FirebaseBackend) NewClient() Client {
	return &firebaseClient{authState: newAuthState(), backend: b}
}

func (b *FirebaseBackend) Resume(ctx context.Context, sessionToken string) (Client, error) {
	decoded, err := b.authClient.VerifySessionCookieAndCheckRevoked(ctx, sessionToken)
	if err != nil {
		return nil, ErrInvalidSession
	}

	user, err := b.authClient.GetUser(ctx, decoded.UID)
	if err != nil {
		return nil, ErrInvalidSession
	}

	client := &firebaseClient{authState: newAuthState(), backend: b}
	client.set(&Identity{UID: user.UID, Email: user.Email})
	return client, nil
}

func (b *FirebaseBackend) IssueSessionToken(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	cookie, err := b.authClient.SessionCookie(ctx, idToken, expiresIn)
	if err != nil {
		return "", errors.Wrap(err, "creating session cookie")
	}
	return cookie, nil
}

func (b *FirebaseBackend) VerifySessionToken(ctx context.Context, sessionToken string) (string, error) {
	decoded, err := b.authClient.VerifySessionCookieAndCheckRevoked(ctx, sessionToken)
	if err != nil {
		return "", ErrInvalidSession
	}
	return decoded.UID, nil
}

func (b *FirebaseBackend) CreateCredential(ctx context.Context, email, password string) (string, error) {
	u := (&auth.UserToCreate{}).Email(normalizeEmail(email)).Password(password)
	user, err := b.authClient.CreateUser(ctx, u)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", ErrEmailInUse
		}
		return "", errors.Wrap(err, "creating credential")
	}
	return user.UID, nil
}

func (b *FirebaseBackend) DeleteCredential(ctx context.Context, uid string) error {
	err := b.authClient.DeleteUser(ctx, uid)
	if err != nil && !auth.IsUserNotFound(err) {
		return errors.Wrap(err, "deleting credential")
	}
	return nil
}

func (b *FirebaseBackend) SetPassword(ctx context.Context, uid, password string) error {
	_, err := b.authClient.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Password(password))
	if auth.IsUserNotFound(err) {
		return ErrUserNotFound
	}
	return err
}

func (b *FirebaseBackend) setEmail(ctx context.Context, uid, email string) error {
	_, err := b.authClient.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Email(normalizeEmail(email)))
	if auth.IsEmailAlreadyExists(err) {
		return ErrEmailInUse
	}
	return err
}

// SendPasswordReset asks Firebase to mail a reset link. Unknown addresses are not reported.
func (b *FirebaseBackend) SendPasswordReset(ctx context.Context, email string) error {
	_, err := b.toolkit.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: "PASSWORD_RESET",
		Email:       normalizeEmail(email),
	}).Context(ctx).Do()
	if err != nil {
		if translateToolkitError(err) == ErrUserNotFound {
			glog.Infof("password reset requested for unknown address")
			return nil
		}
		return errors.Wrap(err, "sending password reset")
	}
	return nil
}

func (b *FirebaseBackend) verifyPassword(ctx context.Context, email, password string) (*Identity, error) {
	resp, err := b.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             normalizeEmail(email),
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, translateToolkitError(err)
	}
	return &Identity{UID: resp.LocalId, Email: resp.Email, IDToken: resp.IdToken}, nil
}

// translateToolkitError maps Identity Toolkit error messages onto this package's errors.
func translateToolkitError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "EMAIL_NOT_FOUND"):
		return ErrUserNotFound
	case strings.Contains(msg, "INVALID_PASSWORD"),
		strings.Contains(msg, "INVALID_LOGIN_CREDENTIALS"),
		strings.Contains(msg, "USER_DISABLED"):
		return ErrInvalidCredential
	case strings.Contains(msg, "EMAIL_EXISTS"):
		return ErrEmailInUse
	}
	return err
}

// firebaseClient is a Client of the FirebaseBackend.
type firebaseClient struct {
	*authState
	backend *FirebaseBackend
}

func (c *firebaseClient) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	identity, err := c.backend.verifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(identity)
	return identity, nil
}

func (c *firebaseClient) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	if _, err := c.backend.CreateCredential(ctx, email, password); err != nil {
		return nil, err
	}
	return c.SignIn(ctx, email, password)
}

func (c *firebaseClient) SignOut(ctx context.Context) error {
	if c.CurrentUser() != nil {
		c.set(nil)
	}
	return nil
}

func (c *firebaseClient) SendPasswordReset(ctx context.Context, email string) error {
	return c.backend.SendPasswordReset(ctx, email)
}

func (c *firebaseClient) UpdatePassword(ctx context.Context, password string) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	return c.backend.SetPassword(ctx, uid, password)
}

func (c *firebaseClient) UpdateEmail(ctx context.Context, email string) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	if err := c.backend.setEmail(ctx, uid, email); err != nil {
		return err
	}

	current := c.CurrentUser()
	c.set(&Identity{UID: uid, Email: normalizeEmail(email), IDToken: current.IDToken})
	return nil
}
