package repository

import (
	"context"
	"reflect"
	"time"

	"github.com/golang/glog"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"

	"elearning/internal/store"
	"elearning/internal/syncstatus"
)

// Repository is the Data Access Facade. Reads fail soft: errors are logged, an authorization failure
// raises the permission banner, and the caller gets an empty result. Writes are wrapped in sync
// signals and always return their error.
type Repository struct {
	store store.Store
	sync  *syncstatus.Hub
}

func New(s store.Store, hub *syncstatus.Hub) *Repository {
	return &Repository{
		store: s,
		sync:  hub,
	}
}

// Store returns the underlying Directory Store.
func (r *Repository) Store() store.Store {
	return r.store
}

// Sync returns the hub receiving this repository's sync signals.
func (r *Repository) Sync() *syncstatus.Hub {
	return r.sync
}

// Reads

// FetchAll returns every document in collection, or an empty list if the read failed.
func (r *Repository) FetchAll(ctx context.Context, collection string) []*store.Document {
	docs, err := r.store.List(ctx, collection)
	if err != nil {
		r.readFailed(collection, err)
		return []*store.Document{}
	}
	return docs
}

// FetchWhere returns the documents whose field equals value, or an empty list if the read failed.
func (r *Repository) FetchWhere(ctx context.Context, collection, field string, value interface{}) []*store.Document {
	docs, err := r.store.Where(ctx, collection, field, value)
	if err != nil {
		r.readFailed(collection, err)
		return []*store.Document{}
	}
	return docs
}

// FetchOne returns the document, or nil if it is absent or the read failed.
func (r *Repository) FetchOne(ctx context.Context, collection, id string) *store.Document {
	if id == "" {
		return nil
	}
	doc, err := r.store.Get(ctx, collection, id)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		r.readFailed(collection+"/"+id, err)
		return nil
	}
	return doc
}

func (r *Repository) readFailed(what string, err error) {
	glog.Warningf("error reading %s: %v", what, err)
	if store.IsPermissionDenied(err) {
		r.sync.PermissionDenied()
	}
}

// Writes

// Upsert merges data into the document. Nil fields are stripped first, so a partial update never
// clears fields it does not mention.
func (r *Repository) Upsert(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return r.write(func() error {
		return r.store.Set(ctx, collection, id, Sanitize(data))
	})
}

// Create writes a new document. If data carries a non-empty "id" it behaves as Upsert; otherwise the
// store assigns the ID, which is returned.
func (r *Repository) Create(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	if id, ok := data["id"].(string); ok && id != "" {
		return id, r.Upsert(ctx, collection, id, data)
	}

	var id string
	err := r.write(func() (err error) {
		clean := Sanitize(data)
		delete(clean, "id")
		id, err = r.store.Add(ctx, collection, clean)
		return err
	})
	return id, err
}

// Insert writes a document under id and fails with store.ErrAlreadyExists if it already exists.
func (r *Repository) Insert(ctx context.Context, collection, id string, data map[string]interface{}) error {
	return r.write(func() error {
		return r.store.Create(ctx, collection, id, Sanitize(data))
	})
}

func (r *Repository) Remove(ctx context.Context, collection, id string) error {
	return r.write(func() error {
		return r.store.Delete(ctx, collection, id)
	})
}

// SaveMany upserts every entity concurrently and waits for all of them. Entities without an "id"
// get a generated one. The whole batch is a single sync operation.
func (r *Repository) SaveMany(ctx context.Context, collection string, entities []map[string]interface{}) error {
	return r.write(func() error {
		var g errgroup.Group
		for _, entity := range entities {
			data := Sanitize(entity)
			id, _ := data["id"].(string)
			if id == "" {
				id = r.store.NewID(collection)
				data["id"] = id
			}
			g.Go(func() error {
				return r.store.Set(ctx, collection, id, data)
			})
		}
		return g.Wait()
	})
}

func (r *Repository) write(fn func() error) error {
	r.sync.Begin()
	err := fn()
	r.sync.End(err)
	if err != nil {
		glog.Errorf("write failed: %v", err)
		if store.IsPermissionDenied(err) {
			r.sync.PermissionDenied()
		}
	}
	return err
}

// Live

// WatchOne subscribes to a document. Errors are logged and raise the permission banner when
// relevant before reaching handler.
func (r *Repository) WatchOne(ctx context.Context, collection, id string, handler store.DocumentHandler) store.Subscription {
	return r.store.WatchDocument(ctx, collection, id, func(doc *store.Document, err error) {
		if err != nil {
			r.readFailed(collection+"/"+id, err)
		}
		handler(doc, err)
	})
}

// WatchWhere subscribes to an equality query; an empty field watches the whole collection.
func (r *Repository) WatchWhere(ctx context.Context, collection, field string, value interface{}, handler store.QueryHandler) store.Subscription {
	return r.store.WatchQuery(ctx, collection, field, value, func(docs []*store.Document, err error) {
		if err != nil {
			r.readFailed(collection, err)
		}
		handler(docs, err)
	})
}

// Helpers

// Sanitize returns a copy of data without nil values, including typed nils such as a nil *int.
// Non-nil pointers are dereferenced and nested maps are sanitized recursively.
func Sanitize(data map[string]interface{}) map[string]interface{} {
	clean := make(map[string]interface{}, len(data))
	for k, v := range data {
		if v = sanitizeValue(v); v != nil {
			clean[k] = v
		}
	}
	return clean
}

func sanitizeValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if nested, ok := v.(map[string]interface{}); ok {
		return Sanitize(nested)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return sanitizeValue(rv.Elem().Interface())
	case reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

// decode copies a document into out, a pointer to a models struct.
func decode(doc *store.Document, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}

	data := make(map[string]interface{}, len(doc.Data)+1)
	for k, v := range doc.Data {
		data[k] = v
	}
	data["id"] = doc.ID

	return decoder.Decode(data)
}
