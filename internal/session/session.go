// Package session keeps one application session's view of the signed-in user live: it follows the
// identity client and the user's profile document, and gates access on every profile change.
package session

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"elearning/internal/identity"
	"elearning/internal/models"
	"elearning/internal/qerrors"
	"elearning/internal/repository"
	"elearning/internal/store"
)

type State string

const (
	Unauthenticated  State = "UNAUTHENTICATED"
	ResolvingProfile State = "RESOLVING_PROFILE"
	Authorized       State = "AUTHORIZED"
	Denied           State = "DENIED"
)

// Authorize applies the gating policy: administrators always pass, students only when ACTIVE. A
// nil profile means the profile document is missing.
func Authorize(profile *models.UserProfile) error {
	if profile == nil {
		return qerrors.ProfileNotFoundError
	}
	if !profile.IsActive() {
		return qerrors.PendingApprovalError
	}
	return nil
}

// Snapshot is the session state delivered to subscribers.
type Snapshot struct {
	State   State               `json:"state"`
	Profile *models.UserProfile `json:"profile,omitempty"`
	// Denial is set only on the snapshot that enters Denied.
	Denial error `json:"-"`
	// LeftAuthorizedArea is set when a sign-out ends an Authorized session.
	LeftAuthorizedArea bool `json:"leftAuthorizedArea,omitempty"`
}

type Controller struct {
	repo   *repository.Repository
	client identity.Client

	mu         sync.Mutex
	ctx        context.Context
	snapshot   Snapshot
	generation int
	version    int
	profileSub store.Subscription
	unsubAuth  func()
	signingUp  int
	closed     bool
	listeners  map[int]func(Snapshot)
	nextID     int
}

func NewController(repo *repository.Repository, client identity.Client) *Controller {
	return &Controller{
		repo:      repo,
		client:    client,
		ctx:       context.Background(),
		snapshot:  Snapshot{State: Unauthenticated},
		listeners: make(map[int]func(Snapshot)),
	}
}

// Client returns the identity client the controller follows.
func (c *Controller) Client() identity.Client {
	return c.client
}

// Start follows the identity client until Close is called or ctx is done.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	unsubscribe := c.client.OnAuthStateChanged(c.onIdentity)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.unsubAuth = unsubscribe
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.Close()
	}()
}

// Close releases the identity listener and the profile subscription. No snapshot is published
// afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.version++
	sub := c.profileSub
	c.profileSub = nil
	unsubscribe := c.unsubAuth
	c.unsubAuth = nil
	c.listeners = make(map[int]func(Snapshot))
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if sub != nil {
		sub.Stop()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.State
}

// Profile returns the loaded profile. It is nil unless a profile snapshot has arrived.
func (c *Controller) Profile() *models.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.Profile
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Subscribe calls fn with the current snapshot immediately and on every later change, until the
// returned func is called.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	current := c.snapshot
	current.Denial = nil
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// SignupStarted suppresses forced sign-out until the matching SignupFinished.
func (c *Controller) SignupStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signingUp++
}

func (c *Controller) SignupFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signingUp > 0 {
		c.signingUp--
	}
}

func (c *Controller) onIdentity(id *identity.Identity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.generation++
	generation := c.generation
	old := c.profileSub
	c.profileSub = nil
	ctx := c.ctx
	c.mu.Unlock()

	// The old subscription goes first so none of its callbacks land in the new session.
	if old != nil {
		old.Stop()
	}

	if id == nil {
		c.transition(generation, func(prev Snapshot) Snapshot {
			return Snapshot{State: Unauthenticated, LeftAuthorizedArea: prev.State == Authorized}
		})
		return
	}

	c.transition(generation, func(Snapshot) Snapshot {
		return Snapshot{State: ResolvingProfile}
	})

	sub := c.repo.WatchUserProfile(ctx, id.UID, func(profile *models.UserProfile, err error) {
		c.onProfile(generation, profile, err)
	})

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		sub.Stop()
		return
	}
	c.profileSub = sub
	c.mu.Unlock()
}

// onProfile applies a profile snapshot. A listener error ends the subscription, so it denies the
// session like a missing profile does.
func (c *Controller) onProfile(generation int, profile *models.UserProfile, err error) {
	authErr := err
	if err != nil {
		glog.Warningf("error watching user profile: %v\n", err)
		profile = nil
	} else {
		authErr = Authorize(profile)
	}
	if authErr == nil {
		c.transition(generation, func(Snapshot) Snapshot {
			return Snapshot{State: Authorized, Profile: profile}
		})
		return
	}

	entered := c.transition(generation, func(prev Snapshot) Snapshot {
		next := Snapshot{State: Denied, Profile: profile}
		if prev.State != Denied {
			next.Denial = authErr
		}
		return next
	})
	if !entered {
		return
	}

	c.mu.Lock()
	suppress := c.signingUp > 0 || c.generation != generation
	ctx := c.ctx
	c.mu.Unlock()
	if suppress {
		return
	}

	if err := c.client.SignOut(ctx); err != nil {
		glog.Warningf("error signing out denied session: %v\n", err)
	}
}

// transition replaces the snapshot if generation is still current and publishes it. It reports
// whether the snapshot was replaced.
func (c *Controller) transition(generation int, next func(prev Snapshot) Snapshot) bool {
	c.mu.Lock()
	if c.closed || c.generation != generation {
		c.mu.Unlock()
		return false
	}
	snapshot := next(c.snapshot)
	c.snapshot = snapshot
	c.snapshot.Denial = nil
	c.version++
	version := c.version
	listeners := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		c.mu.Lock()
		stale := c.version != version
		c.mu.Unlock()
		if stale {
			break
		}
		fn(snapshot)
	}
	return true
}
