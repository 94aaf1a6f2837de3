// Package identity is the Identity Service: credential sign-in and management. A Backend manages
// credentials; a Client is one application session's view of who is signed in.
package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidCredential = errors.New("invalid-credential")
	ErrUserNotFound      = errors.New("user-not-found")
	ErrEmailInUse        = errors.New("email-already-in-use")
	ErrNotSignedIn       = errors.New("no identity is signed in")
	ErrInvalidSession    = errors.New("invalid or expired session")
)

// Identity is a signed-in credential.
type Identity struct {
	// UID is the opaque ID that keys the user's profile document.
	UID   string
	Email string
	// IDToken proves a fresh sign-in and can be exchanged for a session token. Empty for clients
	// resumed from a session token.
	IDToken string
}

// Client is one application session's connection to the Identity Service.
type Client interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	// SignUp creates a credential and signs it in.
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	CurrentUser() *Identity
	// OnAuthStateChanged calls fn with the current identity (nil when signed out) immediately and on
	// every later change, until the returned func is called.
	OnAuthStateChanged(fn func(*Identity)) (unsubscribe func())
	UpdatePassword(ctx context.Context, password string) error
	UpdateEmail(ctx context.Context, email string) error
}

// Backend manages credentials on behalf of the server.
type Backend interface {
	NewClient() Client
	// Resume returns a client signed in as the holder of a session token.
	Resume(ctx context.Context, sessionToken string) (Client, error)
	// IssueSessionToken exchanges an ID token for a long-lived session token.
	IssueSessionToken(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	// VerifySessionToken returns the UID a session token was issued to.
	VerifySessionToken(ctx context.Context, sessionToken string) (string, error)
	// CreateCredential creates a credential without signing it in.
	CreateCredential(ctx context.Context, email, password string) (string, error)
	// DeleteCredential removes a credential. Deleting a missing credential is not an error.
	DeleteCredential(ctx context.Context, uid string) error
	SetPassword(ctx context.Context, uid, password string) error
	SendPasswordReset(ctx context.Context, email string) error
}

// LoginAddress derives the synthetic login address of a username. Every flow that talks to the
// Identity Service (login, signup, password reset, username change) goes through this function.
func LoginAddress(username, domain string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "@" + strings.ToLower(domain)
}

// authState holds a client's current identity and its listeners. Backends embed it.
type authState struct {
	mu        sync.Mutex
	current   *Identity
	version   int
	listeners map[int]func(*Identity)
	nextID    int
}

func newAuthState() *authState {
	return &authState{listeners: make(map[int]func(*Identity))}
}

func (s *authState) CurrentUser() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *authState) OnAuthStateChanged(fn func(*Identity)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.current
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// set replaces the current identity and notifies listeners. A listener is skipped if a newer
// change has happened in the meantime, since that change delivers its own notification.
func (s *authState) set(identity *Identity) {
	s.mu.Lock()
	s.current = identity
	s.version++
	version := s.version
	listeners := make([]func(*Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		s.mu.Lock()
		stale := s.version != version
		s.mu.Unlock()
		if stale {
			return
		}
		fn(identity)
	}
}

// uid returns the signed-in UID or ErrNotSignedIn.
func (s *authState) uid() (string, error) {
	current := s.CurrentUser()
	if current == nil {
		return "", ErrNotSignedIn
	}
	return current.UID, nil
}
