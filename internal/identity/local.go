package identity

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

var (
	credentialsBucket = []byte("credentials")
	emailsBucket      = []byte("credential_emails")
)

const (
	idTokenTTL = time.Hour

	tokenTypeID      = "id"
	tokenTypeSession = "session"
)

type credential struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

type tokenClaims struct {
	Type  string `json:"typ"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// LocalBackend keeps credentials in a bbolt file, hashes passwords with bcrypt and issues HS256
// tokens. It stands in for Firebase Auth in development and tests.
type LocalBackend struct {
	db     *bbolt.DB
	secret []byte
	cost   int

	resetsLock sync.Mutex
	resets     []string
}

// OpenLocalBackend opens (or creates) the credential file at path.
func OpenLocalBackend(path string, secret string) (*LocalBackend, error) {
	if secret == "" {
		return nil, errors.New("a session secret is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{credentialsBucket, emailsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &LocalBackend{db: db, secret: []byte(secret), cost: bcrypt.DefaultCost}, nil
}

// SetHashCost changes the bcrypt cost of new hashes. Tests lower it to bcrypt.MinCost.
func (b *LocalBackend) SetHashCost(cost int) {
	b.cost = cost
}

func (b *LocalBackend) Close() error {
	return b.db.Close()
}

func (b *LocalBackend) NewClient() Client {
	return &localClient{authState: newAuthState(), backend: b}
}

func (b *LocalBackend) Resume(ctx context.Context, sessionToken string) (Client, error) {
	claims, err := b.parseToken(sessionToken, tokenTypeSession)
	if err != nil {
		return nil, err
	}

	client := &localClient{authState: newAuthState(), backend: b}
	client.set(&Identity{UID: claims.Subject, Email: claims.Email})
	return client, nil
}

func (b *LocalBackend) IssueSessionToken(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	claims, err := b.parseToken(idToken, tokenTypeID)
	if err != nil {
		return "", err
	}
	return b.signToken(tokenTypeSession, claims.Subject, claims.Email, expiresIn)
}

func (b *LocalBackend) VerifySessionToken(ctx context.Context, sessionToken string) (string, error) {
	claims, err := b.parseToken(sessionToken, tokenTypeSession)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (b *LocalBackend) CreateCredential(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}

	cred := &credential{
		UID:          strings.ReplaceAll(uuid.New().String(), "-", ""),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(emailsBucket)
		if emails.Get([]byte(cred.Email)) != nil {
			return ErrEmailInUse
		}
		if err := emails.Put([]byte(cred.Email), []byte(cred.UID)); err != nil {
			return err
		}
		return putCredential(tx, cred)
	})
	if err != nil {
		return "", err
	}
	return cred.UID, nil
}

func (b *LocalBackend) DeleteCredential(ctx context.Context, uid string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		cred, err := getCredential(tx, uid)
		if err == ErrUserNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Bucket(emailsBucket).Delete([]byte(cred.Email)); err != nil {
			return err
		}
		return tx.Bucket(credentialsBucket).Delete([]byte(uid))
	})
}

func (b *LocalBackend) SetPassword(ctx context.Context, uid, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		cred, err := getCredential(tx, uid)
		if err != nil {
			return err
		}
		cred.PasswordHash = hash
		return putCredential(tx, cred)
	})
}

func (b *LocalBackend) setEmail(uid, email string) error {
	email = normalizeEmail(email)
	return b.db.Update(func(tx *bbolt.Tx) error {
		cred, err := getCredential(tx, uid)
		if err != nil {
			return err
		}
		if cred.Email == email {
			return nil
		}

		emails := tx.Bucket(emailsBucket)
		if emails.Get([]byte(email)) != nil {
			return ErrEmailInUse
		}
		if err := emails.Delete([]byte(cred.Email)); err != nil {
			return err
		}
		if err := emails.Put([]byte(email), []byte(uid)); err != nil {
			return err
		}
		cred.Email = email
		return putCredential(tx, cred)
	})
}

// SendPasswordReset records the request. No mail is sent by the local backend; unknown addresses
// are accepted silently.
func (b *LocalBackend) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := b.lookupEmail(email); err != nil {
		glog.Infof("password reset requested for unknown address")
		return nil
	}

	b.resetsLock.Lock()
	defer b.resetsLock.Unlock()
	b.resets = append(b.resets, email)
	glog.Infof("password reset requested for %s", email)
	return nil
}

// PasswordResets returns the addresses a reset was requested for.
func (b *LocalBackend) PasswordResets() []string {
	b.resetsLock.Lock()
	defer b.resetsLock.Unlock()
	out := make([]string, len(b.resets))
	copy(out, b.resets)
	return out
}

func (b *LocalBackend) verifyPassword(email, password string) (*credential, error) {
	cred, err := b.lookupEmail(normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return cred, nil
}

func (b *LocalBackend) lookupEmail(email string) (*credential, error) {
	var cred *credential
	err := b.db.View(func(tx *bbolt.Tx) error {
		uid := tx.Bucket(emailsBucket).Get([]byte(email))
		if uid == nil {
			return ErrUserNotFound
		}
		var err error
		cred, err = getCredential(tx, string(uid))
		return err
	})
	return cred, err
}

func (b *LocalBackend) signToken(tokenType, uid, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Type:  tokenType,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

// parseToken verifies a token's signature, expiry and type, and that its credential still exists,
// so deleting a credential revokes its sessions.
func (b *LocalBackend) parseToken(raw, tokenType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return b.secret, nil
	})
	if err != nil || !tok.Valid || claims.Type != tokenType {
		return nil, ErrInvalidSession
	}

	err = b.db.View(func(tx *bbolt.Tx) error {
		_, err := getCredential(tx, claims.Subject)
		return err
	})
	if err != nil {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// localClient is a Client of the LocalBackend.
type localClient struct {
	*authState
	backend *LocalBackend
}

func (c *localClient) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := c.backend.verifyPassword(email, password)
	if err != nil {
		return nil, err
	}
	return c.signedIn(cred)
}

func (c *localClient) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	if _, err := c.backend.CreateCredential(ctx, email, password); err != nil {
		return nil, err
	}
	return c.SignIn(ctx, email, password)
}

func (c *localClient) signedIn(cred *credential) (*Identity, error) {
	token, err := c.backend.signToken(tokenTypeID, cred.UID, cred.Email, idTokenTTL)
	if err != nil {
		return nil, err
	}
	identity := &Identity{UID: cred.UID, Email: cred.Email, IDToken: token}
	c.set(identity)
	return identity, nil
}

func (c *localClient) SignOut(ctx context.Context) error {
	if c.CurrentUser() != nil {
		c.set(nil)
	}
	return nil
}

func (c *localClient) SendPasswordReset(ctx context.Context, email string) error {
	return c.backend.SendPasswordReset(ctx, email)
}

func (c *localClient) UpdatePassword(ctx context.Context, password string) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	return c.backend.SetPassword(ctx, uid, password)
}

func (c *localClient) UpdateEmail(ctx context.Context, email string) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	if err := c.backend.setEmail(uid, email); err != nil {
		return err
	}

	current := c.CurrentUser()
	c.set(&Identity{UID: uid, Email: normalizeEmail(email), IDToken: current.IDToken})
	return nil
}

// Helpers

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func getCredential(tx *bbolt.Tx, uid string) (*credential, error) {
	v := tx.Bucket(credentialsBucket).Get([]byte(uid))
	if v == nil {
		return nil, ErrUserNotFound
	}
	var cred credential
	if err := json.Unmarshal(v, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func putCredential(tx *bbolt.Tx, cred *credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return tx.Bucket(credentialsBucket).Put([]byte(cred.UID), data)
}
