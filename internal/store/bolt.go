package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// BoltStore is a Directory Store backed by a local bbolt file: one bucket per collection, one JSON
// object per document. Used for local development and tests.
type BoltStore struct {
	db *bbolt.DB

	watchersLock sync.Mutex
	watchers     map[string]map[*boltWatcher]struct{}
}

type boltWatcher struct {
	notify chan struct{}
}

// OpenBoltStore opens (or creates) the database file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	glog.Infof("bolt store ready at %s", path)
	return &BoltStore{db: db, watchers: make(map[string]map[*boltWatcher]struct{})}, nil
}

func (bs *BoltStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var doc *Document
	err := bs.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}

		data, err := decodeData(v)
		if err != nil {
			return err
		}
		doc = &Document{ID: id, Data: data}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (bs *BoltStore) List(ctx context.Context, collection string) ([]*Document, error) {
	return bs.scan(collection, func(map[string]interface{}) bool { return true })
}

func (bs *BoltStore) Where(ctx context.Context, collection, field string, value interface{}) ([]*Document, error) {
	want, err := normalize(value)
	if err != nil {
		return nil, err
	}
	return bs.scan(collection, func(data map[string]interface{}) bool {
		got, ok := data[field]
		return ok && reflect.DeepEqual(got, want)
	})
}

func (bs *BoltStore) scan(collection string, match func(map[string]interface{}) bool) ([]*Document, error) {
	docs := make([]*Document, 0)
	err := bs.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			data, err := decodeData(v)
			if err != nil {
				return errors.Wrapf(err, "decoding %s/%s", collection, k)
			}
			if match(data) {
				docs = append(docs, &Document{ID: string(k), Data: data})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (bs *BoltStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return bs.write(collection, func(b *bbolt.Bucket) error {
		existing := make(map[string]interface{})
		if v := b.Get([]byte(id)); v != nil {
			var err error
			if existing, err = decodeData(v); err != nil {
				return err
			}
		}

		update, err := normalizeMap(data)
		if err != nil {
			return err
		}
		return putData(b, id, mergeMaps(existing, update))
	})
}

func (bs *BoltStore) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return bs.write(collection, func(b *bbolt.Bucket) error {
		if b.Get([]byte(id)) != nil {
			return errors.Wrapf(ErrAlreadyExists, "%s/%s", collection, id)
		}
		return putData(b, id, data)
	})
}

func (bs *BoltStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := bs.NewID(collection)
	if err := bs.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (bs *BoltStore) Delete(ctx context.Context, collection, id string) error {
	return bs.write(collection, func(b *bbolt.Bucket) error {
		return b.Delete([]byte(id))
	})
}

// NewID returns a 20 character ID, the same shape Firestore generates.
func (bs *BoltStore) NewID(collection string) string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
}

// write runs fn in a read-write transaction on the collection's bucket and wakes the collection's
// watchers once it commits.
func (bs *BoltStore) write(collection string, fn func(b *bbolt.Bucket) error) error {
	err := bs.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		return fn(b)
	})
	if err != nil {
		return err
	}

	bs.wake(collection)
	return nil
}

func (bs *BoltStore) wake(collection string) {
	bs.watchersLock.Lock()
	defer bs.watchersLock.Unlock()

	for w := range bs.watchers[collection] {
		select {
		case w.notify <- struct{}{}:
		default:
			// A re-read is already pending.
		}
	}
}

func (bs *BoltStore) addWatcher(collection string) *boltWatcher {
	bs.watchersLock.Lock()
	defer bs.watchersLock.Unlock()

	w := &boltWatcher{notify: make(chan struct{}, 1)}
	if bs.watchers[collection] == nil {
		bs.watchers[collection] = make(map[*boltWatcher]struct{})
	}
	bs.watchers[collection][w] = struct{}{}
	return w
}

func (bs *BoltStore) removeWatcher(collection string, w *boltWatcher) {
	bs.watchersLock.Lock()
	defer bs.watchersLock.Unlock()

	delete(bs.watchers[collection], w)
}

// watch re-reads the collection whenever it changes and calls deliver when the read result differs
// from the previous one.
func (bs *BoltStore) watch(ctx context.Context, collection string, read func() (interface{}, error), deliver func(interface{}, error)) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)
	w := bs.addWatcher(collection)

	go func() {
		defer close(sub.done)
		defer bs.removeWatcher(collection, w)

		var last []byte
		first := true
		for {
			result, err := read()
			if err != nil {
				sub.dispatch(func() { deliver(nil, err) })
				return
			}

			encoded, err := json.Marshal(result)
			if err != nil {
				sub.dispatch(func() { deliver(nil, err) })
				return
			}
			if first || !bytes.Equal(encoded, last) {
				first = false
				last = encoded
				sub.dispatch(func() { deliver(result, nil) })
			}

			select {
			case <-ctx.Done():
				return
			case <-w.notify:
			}
		}
	}()

	return sub
}

func (bs *BoltStore) WatchDocument(ctx context.Context, collection, id string, handler DocumentHandler) Subscription {
	read := func() (interface{}, error) {
		doc, err := bs.Get(ctx, collection, id)
		if IsNotFound(err) {
			return (*Document)(nil), nil
		}
		return doc, err
	}
	return bs.watch(ctx, collection, read, func(result interface{}, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(result.(*Document), nil)
	})
}

func (bs *BoltStore) WatchQuery(ctx context.Context, collection, field string, value interface{}, handler QueryHandler) Subscription {
	read := func() (interface{}, error) {
		if field == "" {
			return bs.List(ctx, collection)
		}
		return bs.Where(ctx, collection, field, value)
	}
	return bs.watch(ctx, collection, read, func(result interface{}, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(result.([]*Document), nil)
	})
}

func (bs *BoltStore) Close() error {
	return bs.db.Close()
}

// Helpers

func putData(b *bbolt.Bucket, id string, data map[string]interface{}) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return b.Put([]byte(id), encoded)
}

func decodeData(v []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()

	data := make(map[string]interface{})
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

// normalize round-trips a value through JSON so it compares equal to stored values.
func normalize(value interface{}) (interface{}, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()

	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeMap(data map[string]interface{}) (map[string]interface{}, error) {
	out, err := normalize(data)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]interface{})
	if m == nil {
		m = make(map[string]interface{})
	}
	return m, nil
}

// mergeMaps writes update over base, recursing into nested objects the way a Firestore MergeAll
// write does.
func mergeMaps(base, update map[string]interface{}) map[string]interface{} {
	for k, v := range update {
		nested, ok := v.(map[string]interface{})
		if existing, isMap := base[k].(map[string]interface{}); ok && isMap {
			base[k] = mergeMaps(existing, nested)
			continue
		}
		base[k] = v
	}
	return base
}
