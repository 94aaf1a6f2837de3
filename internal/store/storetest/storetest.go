// Package storetest provides Directory Store fixtures for tests.
package storetest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"elearning/internal/store"
)

// OpenBolt opens a bolt store in a temporary directory that is removed when the test ends.
func OpenBolt(t testing.TB) *store.BoltStore {
	t.Helper()

	s, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening bolt store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Operation names accepted by Faulty.FailOn.
const (
	OpGet    = "get"
	OpList   = "list"
	OpWhere  = "where"
	OpSet    = "set"
	OpCreate = "create"
	OpAdd    = "add"
	OpDelete = "delete"
	OpWatch  = "watch"
)

// Call is a write recorded by Faulty.
type Call struct {
	Op         string
	Collection string
	ID         string
	Data       map[string]interface{}
}

// Faulty wraps a Store, failing selected operations and recording every write attempt.
type Faulty struct {
	store.Store

	mu       sync.Mutex
	failures map[string]error
	nth      map[string]int
	seen     map[string]int
	calls    []Call
}

func NewFaulty(s store.Store) *Faulty {
	return &Faulty{
		Store:    s,
		failures: make(map[string]error),
		nth:      make(map[string]int),
		seen:     make(map[string]int),
	}
}

// FailOn makes every op on collection return err.
func (f *Faulty) FailOn(op, collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+":"+collection] = err
}

// FailNth makes only the n-th op on collection return err.
func (f *Faulty) FailNth(op, collection string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + collection
	f.failures[key] = err
	f.nth[key] = n
}

// Reset clears all configured failures.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[string]error)
	f.nth = make(map[string]int)
	f.seen = make(map[string]int)
}

// Calls returns the writes attempted so far.
func (f *Faulty) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the writes of op attempted on collection.
func (f *Faulty) CallsTo(op, collection string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op && c.Collection == collection {
			out = append(out, c)
		}
	}
	return out
}

func (f *Faulty) check(op, collection, id string, data map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if data != nil || op == OpDelete {
		f.calls = append(f.calls, Call{Op: op, Collection: collection, ID: id, Data: data})
	}

	key := op + ":" + collection
	err, ok := f.failures[key]
	if !ok {
		return nil
	}
	f.seen[key]++
	if n, ok := f.nth[key]; ok && f.seen[key] != n {
		return nil
	}
	return err
}

func (f *Faulty) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if err := f.check(OpGet, collection, id, nil); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, collection, id)
}

func (f *Faulty) List(ctx context.Context, collection string) ([]*store.Document, error) {
	if err := f.check(OpList, collection, "", nil); err != nil {
		return nil, err
	}
	return f.Store.List(ctx, collection)
}

func (f *Faulty) Where(ctx context.Context, collection, field string, value interface{}) ([]*store.Document, error) {
	if err := f.check(OpWhere, collection, "", nil); err != nil {
		return nil, err
	}
	return f.Store.Where(ctx, collection, field, value)
}

func (f *Faulty) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if err := f.check(OpSet, collection, id, data); err != nil {
		return err
	}
	return f.Store.Set(ctx, collection, id, data)
}

func (f *Faulty) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if err := f.check(OpCreate, collection, id, data); err != nil {
		return err
	}
	return f.Store.Create(ctx, collection, id, data)
}

func (f *Faulty) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	if err := f.check(OpAdd, collection, "", data); err != nil {
		return "", err
	}
	return f.Store.Add(ctx, collection, data)
}

func (f *Faulty) Delete(ctx context.Context, collection, id string) error {
	if err := f.check(OpDelete, collection, id, nil); err != nil {
		return err
	}
	return f.Store.Delete(ctx, collection, id)
}

// WatchDocument delivers the configured OpWatch error in place of the first snapshot and nothing
// after it, the way a failed listener ends.
func (f *Faulty) WatchDocument(ctx context.Context, collection, id string, handler store.DocumentHandler) store.Subscription {
	err := f.check(OpWatch, collection, id, nil)
	if err == nil {
		return f.Store.WatchDocument(ctx, collection, id, handler)
	}

	var once sync.Once
	return f.Store.WatchDocument(ctx, collection, id, func(*store.Document, error) {
		once.Do(func() { handler(nil, err) })
	})
}
