// Package store is the Directory Store: a document database with equality queries and live
// subscriptions. Documents are plain maps keyed by an opaque string ID.
package store

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by Get when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrPermissionDenied is returned when the backend refuses access to a collection or document.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAlreadyExists is returned by Create when the document already exists.
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is a single stored document.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// DocumentHandler receives document snapshots. doc is nil when the document does not exist. A
// non-nil err ends the subscription.
type DocumentHandler func(doc *Document, err error)

// QueryHandler receives query snapshots. A non-nil err ends the subscription.
type QueryHandler func(docs []*Document, err error)

// Store is implemented by the Firestore and bbolt backends.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string) ([]*Document, error)
	// Where returns the documents whose field equals value.
	Where(ctx context.Context, collection, field string, value interface{}) ([]*Document, error)
	// Set merges data into the document, creating it if needed. Only the given top-level fields are
	// written.
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error
	// Create writes a new document and fails with ErrAlreadyExists if the ID is in use.
	Create(ctx context.Context, collection, id string, data map[string]interface{}) error
	// Add writes a new document under a store-assigned ID.
	Add(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	Delete(ctx context.Context, collection, id string) error
	NewID(collection string) string

	// WatchDocument delivers the document's current state, then one snapshot per change, on a
	// goroutine owned by the subscription.
	WatchDocument(ctx context.Context, collection, id string, handler DocumentHandler) Subscription
	// WatchQuery is WatchDocument for an equality query. An empty field watches the whole
	// collection.
	WatchQuery(ctx context.Context, collection, field string, value interface{}, handler QueryHandler) Subscription

	Close() error
}

// Subscription is a live listener.
type Subscription interface {
	// Stop releases the listener. Once Stop returns no further snapshot is dispatched; a handler
	// already running may still complete.
	Stop()
}

// IsPermissionDenied reports whether err is an authorization failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type subscription struct {
	cancel  context.CancelFunc
	stopped int32
	done    chan struct{}
}

func newSubscription(cancel context.CancelFunc) *subscription {
	return &subscription{cancel: cancel, done: make(chan struct{})}
}

func (s *subscription) Stop() {
	if atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		s.cancel()
	}
}

func (s *subscription) active() bool {
	return atomic.LoadInt32(&s.stopped) == 0
}

// dispatch runs fn unless the subscription has been stopped.
func (s *subscription) dispatch(fn func()) {
	if s.active() {
		fn()
	}
}

// Done is closed when the listener goroutine has exited.
func (s *subscription) Done() <-chan struct{} {
	return s.done
}
