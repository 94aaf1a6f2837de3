// Package app opens the configured backends and builds the portal's services on top of them.
package app

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"elearning/internal/account"
	"elearning/internal/auth"
	"elearning/internal/config"
	"elearning/internal/coursework"
	"elearning/internal/firebase"
	"elearning/internal/identity"
	"elearning/internal/notify"
	"elearning/internal/registration"
	"elearning/internal/repository"
	"elearning/internal/router"
	"elearning/internal/store"
	"elearning/internal/syncstatus"
)

type Portal struct {
	Config  *config.ServerConfig
	Store   store.Store
	Hub     *syncstatus.Hub
	Repo    *repository.Repository
	Backend identity.Backend

	Notifier     *notify.Notifier
	Gateway      *auth.Gateway
	Registration *registration.Service
	Coursework   *coursework.Service
	Account      *account.Service

	closers []func() error
}

// Open connects to the store and identity backends selected by cfg.
func Open(ctx context.Context, cfg *config.ServerConfig) (*Portal, error) {
	p := &Portal{Config: cfg}

	var fb *firebase.App
	if cfg.StoreDriver == config.StoreDriverFirestore || cfg.IdentityDriver == config.IdentityDriverFirebase {
		var err error
		fb, err = firebase.Initialize(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, fb.Close)
	}

	switch cfg.StoreDriver {
	case config.StoreDriverFirestore:
		p.Store = store.NewFirestoreStore(fb.Firestore)
	case config.StoreDriverBolt:
		s, err := store.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "opening %s", cfg.BoltPath)
		}
		p.Store = s
		p.closers = append(p.closers, s.Close)
	default:
		p.Close()
		return nil, errors.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	switch cfg.IdentityDriver {
	case config.IdentityDriverFirebase:
		backend, err := identity.NewFirebaseBackend(ctx, fb.Auth, cfg.FirebaseAPIKey)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.Backend = backend
	case config.IdentityDriverLocal:
		backend, err := identity.OpenLocalBackend(cfg.LocalIdentityPath, cfg.SessionSecret)
		if err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "opening %s", cfg.LocalIdentityPath)
		}
		p.Backend = backend
		p.closers = append(p.closers, backend.Close)
	default:
		p.Close()
		return nil, errors.Errorf("unknown identity driver %q", cfg.IdentityDriver)
	}

	p.Hub = syncstatus.New(cfg.SyncSuccessResetDelay, cfg.SyncErrorResetDelay)
	p.closers = append(p.closers, func() error {
		p.Hub.Close()
		return nil
	})

	p.Repo = repository.New(p.Store, p.Hub)
	p.Notifier = notify.New(p.Repo)
	p.Gateway = auth.NewGateway(p.Repo, p.Notifier, p.Backend, cfg)
	p.Registration = registration.NewService(p.Gateway, p.Repo, p.Notifier)
	p.Coursework = coursework.NewService(p.Repo, p.Notifier)
	p.Account = account.NewService(p.Gateway, p.Repo, cfg)

	glog.Infof("portal opened: store=%s identity=%s", cfg.StoreDriver, cfg.IdentityDriver)
	return p, nil
}

// API returns the HTTP handlers' view of the portal.
func (p *Portal) API() *router.API {
	return &router.API{
		Config:       p.Config,
		Repo:         p.Repo,
		Gateway:      p.Gateway,
		Registration: p.Registration,
		Coursework:   p.Coursework,
		Account:      p.Account,
	}
}

// Close releases the backends in reverse order of opening.
func (p *Portal) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			glog.Warningf("error closing portal: %v\n", err)
			if first == nil {
				first = err
			}
		}
	}
	p.closers = nil
	return first
}
