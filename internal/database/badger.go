package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// BadgerDB holds a connection to a Badger backend.
type BadgerDB struct {
	InMemory bool
	DB       *badger.DB

	indexes []Index
}

const (
	prefixIndex = "idx"

	// Number of times a write is attempted when badger reports a
	// conflicting concurrent transaction.
	maxTxnAttempts = 3
)

func makeKey(prefix, id string) []byte {
	return []byte(fmt.Sprintf("%s_%s", prefix, id))
}

func makeCollectionPrefix(collection string) []byte {
	return []byte(collection + "_")
}

func makeIndexKey(collection, field string, value interface{}) []byte {
	return makeKey(prefixIndex, fmt.Sprintf("%s_%s_%s", collection, field, indexValue(value)))
}

// badgerLogger forwards badger's internal logging to zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// NewBadgerDB opens a database with a Badger backend at dir.
// Pass `true` for inMemory to create an in-memory database (useful in tests, for example).
func NewBadgerDB(dir string, inMemory bool, logger *zap.Logger, indexes ...Index) (*BadgerDB, error) {
	path := dir
	if inMemory {
		path = ""
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(path).
		WithInMemory(inMemory).
		WithLogger(badgerLogger{logger.Named("badger").Sugar()}).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger")
	}

	return &BadgerDB{DB: db, InMemory: inMemory, indexes: indexes}, nil
}

// Close handles closing all connections to the database.
func (db *BadgerDB) Close() error {
	return db.DB.Close()
}

// update runs fn in a read-write transaction, retrying when badger
// detects a conflict with a concurrent transaction.
func (db *BadgerDB) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = db.DB.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func readDocument(txn *badger.Txn, key []byte) (Document, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &doc)
	})
	return doc, err
}

func writeDocument(txn *badger.Txn, key []byte, doc Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

// reindex moves the unique index entries of a document from the values in
// before to the values in after.
func (db *BadgerDB) reindex(txn *badger.Txn, collection, id string, before, after Document) error {
	for _, idx := range indexesFor(db.indexes, collection) {
		if !idx.Unique {
			continue
		}
		oldValue, hadOld := before[idx.Field]
		newValue, hasNew := after[idx.Field]
		hadOld = hadOld && oldValue != nil
		hasNew = hasNew && newValue != nil
		if hadOld && hasNew && indexValue(oldValue) == indexValue(newValue) {
			continue
		}
		if hadOld {
			if err := txn.Delete(makeIndexKey(collection, idx.Field, oldValue)); err != nil {
				return err
			}
		}
		if !hasNew {
			continue
		}
		key := makeIndexKey(collection, idx.Field, newValue)
		_, err := txn.Get(key)
		if err == nil {
			return errors.Wrapf(ErrDuplicate, "%s.%s", collection, idx.Field)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, []byte(id)); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores a new document under a random UUID.
func (db *BadgerDB) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	id := uid.String()
	stored := applyPatch(nil, doc)

	err = db.update(ctx, func(txn *badger.Txn) error {
		if err := db.reindex(txn, collection, id, nil, stored); err != nil {
			return err
		}
		return writeDocument(txn, makeKey(collection, id), stored)
	})
	if err != nil {
		return "", errors.Wrapf(err, "inserting into %s", collection)
	}
	return id, nil
}

// Get retrieves a document by id.
func (db *BadgerDB) Get(ctx context.Context, collection, id string) (doc Document, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = db.DB.View(func(txn *badger.Txn) error {
		doc, err = readDocument(txn, makeKey(collection, id))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting %s/%s", collection, id)
	}
	doc[FieldID] = id
	return doc, nil
}

// GetByIndex retrieves a document based off an indexed field. Unique
// indexes are answered from their index keys; other indexes fall back
// to scanning the collection.
func (db *BadgerDB) GetByIndex(ctx context.Context, collection, field string, value interface{}) (Document, error) {
	idx, ok := findIndex(db.indexes, collection, field)
	if !ok {
		return nil, errors.Wrapf(ErrNoIndex, "%s.%s", collection, field)
	}
	if !idx.Unique {
		return db.scanForValue(ctx, collection, field, value)
	}

	var id string
	err := db.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeIndexKey(collection, field, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		b, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id = string(b)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "looking up %s.%s", collection, field)
	}
	return db.Get(ctx, collection, id)
}

func (db *BadgerDB) scanForValue(ctx context.Context, collection, field string, value interface{}) (Document, error) {
	docs, err := db.CollectAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	want := indexValue(value)
	for _, doc := range docs {
		if doc.Has(field) && indexValue(doc[field]) == want {
			return doc, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "looking up %s.%s", collection, field)
}

// Patch merges fields into an existing document.
func (db *BadgerDB) Patch(ctx context.Context, collection, id string, fields Document) error {
	key := makeKey(collection, id)
	err := db.update(ctx, func(txn *badger.Txn) error {
		doc, err := readDocument(txn, key)
		if err != nil {
			return err
		}
		before := make(Document, len(doc))
		for k, v := range doc {
			before[k] = v
		}
		after := applyPatch(doc, fields)
		if err := db.reindex(txn, collection, id, before, after); err != nil {
			return err
		}
		return writeDocument(txn, key, after)
	})
	return errors.Wrapf(err, "patching %s/%s", collection, id)
}

// Put creates or replaces the document with the given id.
func (db *BadgerDB) Put(ctx context.Context, collection, id string, doc Document) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	key := makeKey(collection, id)
	stored := applyPatch(nil, doc)
	err := db.update(ctx, func(txn *badger.Txn) error {
		before, err := readDocument(txn, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := db.reindex(txn, collection, id, before, stored); err != nil {
			return err
		}
		return writeDocument(txn, key, stored)
	})
	return errors.Wrapf(err, "putting %s/%s", collection, id)
}

// CollectAll lists every document in the collection.
func (db *BadgerDB) CollectAll(ctx context.Context, collection string) ([]Document, error) {
	docs, _, err := db.Scan(ctx, collection, "", 0)
	return docs, err
}

// Scan lists documents in key order, resuming after the given id.
func (db *BadgerDB) Scan(ctx context.Context, collection, after string, limit int) (docs []Document, next string, err error) {
	if err := validateCollection(collection); err != nil {
		return nil, "", err
	}
	docs = make([]Document, 0)
	prefix := makeCollectionPrefix(collection)
	err = db.DB.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		start := prefix
		if after != "" {
			start = makeKey(collection, after)
		}
		it.Seek(start)
		if after != "" && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), start) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := strings.TrimPrefix(string(item.KeyCopy(nil)), string(prefix))

			var doc Document
			err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &doc)
			})
			if err != nil {
				return err
			}
			doc[FieldID] = id
			docs = append(docs, doc)

			if limit > 0 && len(docs) == limit {
				it.Next()
				if it.ValidForPrefix(prefix) {
					next = id
				}
				return nil
			}
		}

		return nil
	})
	if err != nil {
		return nil, "", errors.Wrapf(err, "scanning %s", collection)
	}
	return docs, next, nil
}
