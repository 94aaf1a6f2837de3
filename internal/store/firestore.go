package store

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is the production Directory Store.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (fs *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	snap, err := fs.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return &Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (fs *FirestoreStore) List(ctx context.Context, collection string) ([]*Document, error) {
	return fs.getAll(ctx, fs.client.Collection(collection).Query)
}

func (fs *FirestoreStore) Where(ctx context.Context, collection, field string, value interface{}) ([]*Document, error) {
	return fs.getAll(ctx, fs.client.Collection(collection).Where(field, "==", value))
}

func (fs *FirestoreStore) getAll(ctx context.Context, query firestore.Query) ([]*Document, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	docs := make([]*Document, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translateError(err)
		}
		docs = append(docs, &Document{ID: doc.Ref.ID, Data: doc.Data()})
	}
	return docs, nil
}

func (fs *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	_, err := fs.client.Collection(collection).Doc(id).Set(ctx, data, firestore.MergeAll)
	return translateError(err)
}

func (fs *FirestoreStore) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	_, err := fs.client.Collection(collection).Doc(id).Create(ctx, data)
	return translateError(err)
}

func (fs *FirestoreStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	ref, _, err := fs.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", translateError(err)
	}
	return ref.ID, nil
}

func (fs *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := fs.client.Collection(collection).Doc(id).Delete(ctx)
	return translateError(err)
}

func (fs *FirestoreStore) NewID(collection string) string {
	return fs.client.Collection(collection).NewDoc().ID
}

func (fs *FirestoreStore) WatchDocument(ctx context.Context, collection, id string, handler DocumentHandler) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	go func() {
		defer close(sub.done)

		it := fs.client.Collection(collection).Doc(id).Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if listenerClosed(ctx, err) {
				return
			}
			if err != nil {
				glog.Warningf("%s/%s listener error: %v", collection, id, err)
				sub.dispatch(func() { handler(nil, translateError(err)) })
				return
			}

			if !snap.Exists() {
				sub.dispatch(func() { handler(nil, nil) })
				continue
			}
			doc := &Document{ID: snap.Ref.ID, Data: snap.Data()}
			sub.dispatch(func() { handler(doc, nil) })
		}
	}()

	return sub
}

func (fs *FirestoreStore) WatchQuery(ctx context.Context, collection, field string, value interface{}, handler QueryHandler) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	query := fs.client.Collection(collection).Query
	if field != "" {
		query = query.Where(field, "==", value)
	}

	go func() {
		defer close(sub.done)

		it := query.Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if listenerClosed(ctx, err) {
				return
			}
			if err == nil && snap == nil {
				continue
			}

			var docs []*Document
			if err == nil {
				docs, err = snapshotDocuments(snap)
			}
			if err != nil {
				glog.Warningf("%s listener error: %v", collection, err)
				sub.dispatch(func() { handler(nil, translateError(err)) })
				return
			}

			sub.dispatch(func() { handler(docs, nil) })
		}
	}()

	return sub
}

func (fs *FirestoreStore) Close() error {
	return fs.client.Close()
}

func snapshotDocuments(snap *firestore.QuerySnapshot) ([]*Document, error) {
	docs := make([]*Document, 0, snap.Size)
	for {
		doc, err := snap.Documents.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "Documents.Next")
		}
		docs = append(docs, &Document{ID: doc.Ref.ID, Data: doc.Data()})
	}
	return docs, nil
}

// listenerClosed reports whether a snapshot iterator stopped because its context ended.
func listenerClosed(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	// DeadlineExceeded or Canceled will be returned when ctx is cancelled.
	code := status.Code(err)
	return code == codes.DeadlineExceeded || code == codes.Canceled || ctx.Err() != nil
}

// translateError maps Firestore status codes onto the store's error classes.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.PermissionDenied:
		return errors.Wrap(ErrPermissionDenied, err.Error())
	case codes.NotFound:
		return errors.Wrap(ErrNotFound, err.Error())
	case codes.AlreadyExists:
		return errors.Wrap(ErrAlreadyExists, err.Error())
	}
	return err
}
