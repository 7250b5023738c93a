package database

import (
	"context"
	"errors"
	"time"

	"github.com/rentwise/rentwise/internal/model"
)

// DefaultTimeout is the default length of time to wait
// for a database operation to complete.
const DefaultTimeout = time.Second * 3

// FieldID is the key under which a document's identifier is reported.
// It is never persisted as part of the document body.
const FieldID = "_id"

// CollectionMigrations holds progress records of batch jobs over other
// collections.
const CollectionMigrations = "migrations"

// Store errors
var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicate         = errors.New("duplicate value for unique index")
	ErrNoIndex           = errors.New("no index declared for field")
	ErrInvalidCollection = errors.New("invalid collection name")
)

// Document is a schemaless record. A key that is missing from the map is
// absent from the record, which is distinct from a key holding false or
// an empty string.
type Document map[string]interface{}

// ID returns the identifier the store reported for the document.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Has reports whether field is defined on the document. A field holding
// nil counts as undefined.
func (d Document) Has(field string) bool {
	v, ok := d[field]
	return ok && v != nil
}

// Index declares a lookup index on one field of a collection.
type Index struct {
	Collection string
	Field      string
	Unique     bool
}

// DefaultIndexes are the indexes every backend is opened with.
var DefaultIndexes = []Index{
	{Collection: model.CollectionUsers, Field: model.UserFieldEmail, Unique: true},
}

// Store handles all interactions with the document backend. Every
// single-document method is atomic.
type Store interface {
	DocumentReader
	DocumentWriter
	Close() error
}

// DocumentReader reads documents.
type DocumentReader interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// GetByIndex returns the document whose field equals value, or
	// ErrNotFound.
	GetByIndex(ctx context.Context, collection, field string, value interface{}) (Document, error)

	// CollectAll returns every document in the collection.
	CollectAll(ctx context.Context, collection string) ([]Document, error)

	// Scan returns up to limit documents ordered by id, starting after the
	// given id. next is the cursor for the following page, or empty when
	// the collection is exhausted. A limit of zero means no limit.
	Scan(ctx context.Context, collection, after string, limit int) (docs []Document, next string, err error)
}

// DocumentWriter writes documents.
type DocumentWriter interface {
	// Insert stores a new document and returns its id. ErrDuplicate is
	// returned when a unique index would be violated; nothing is written.
	Insert(ctx context.Context, collection string, doc Document) (string, error)

	// Patch sets the given fields on an existing document. A nil value
	// removes the field. Fields not named are left untouched.
	Patch(ctx context.Context, collection, id string, fields Document) error

	// Put creates or replaces the document with the given id.
	Put(ctx context.Context, collection, id string, doc Document) error
}
