package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rentwise/rentwise/internal/database"
)

// Store is an in-memory database.Store that records every write, so tests
// can assert on the calls a service made and inject failures.
type Store struct {
	mu      sync.Mutex
	docs    map[string]map[string]database.Document
	nextID  int
	indexes []database.Index

	Inserts []Call
	Patches []Call
	Puts    []Call

	// PatchErr, when set, is consulted before every patch.
	PatchErr func(collection, id string) error
}

// Call is a recorded write.
type Call struct {
	Collection string
	ID         string
	Fields     database.Document
}

// NewStore creates an empty store with the given unique indexes.
func NewStore(indexes ...database.Index) *Store {
	return &Store{
		docs:    make(map[string]map[string]database.Document),
		indexes: indexes,
	}
}

func clone(doc database.Document) database.Document {
	out := make(database.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Seed stores a document under id without recording a write.
func (s *Store) Seed(collection, id string, doc database.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]database.Document)
	}
	stored := clone(doc)
	delete(stored, database.FieldID)
	s.docs[collection][id] = stored
}

// Count returns the number of documents in a collection.
func (s *Store) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[collection])
}

func (s *Store) lookup(collection, field string, value interface{}) (string, bool) {
	for id, doc := range s.docs[collection] {
		if v, ok := doc[field]; ok && fmt.Sprint(v) == fmt.Sprint(value) {
			return id, true
		}
	}
	return "", false
}

func (s *Store) uniqueViolation(collection, id string, doc database.Document) bool {
	for _, idx := range s.indexes {
		if idx.Collection != collection || !idx.Unique {
			continue
		}
		v, ok := doc[idx.Field]
		if !ok || v == nil {
			continue
		}
		if other, found := s.lookup(collection, idx.Field, v); found && other != id {
			return true
		}
	}
	return false
}

// Insert implements database.Store.
func (s *Store) Insert(ctx context.Context, collection string, doc database.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uniqueViolation(collection, "", doc) {
		return "", database.ErrDuplicate
	}
	s.nextID++
	id := fmt.Sprintf("%s-%04d", collection, s.nextID)
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]database.Document)
	}
	stored := clone(doc)
	delete(stored, database.FieldID)
	s.docs[collection][id] = stored
	s.Inserts = append(s.Inserts, Call{Collection: collection, ID: id, Fields: clone(doc)})
	return id, nil
}

// Get implements database.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (database.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := clone(doc)
	out[database.FieldID] = id
	return out, nil
}

// GetByIndex implements database.Store.
func (s *Store) GetByIndex(ctx context.Context, collection, field string, value interface{}) (database.Document, error) {
	s.mu.Lock()
	id, ok := s.lookup(collection, field, value)
	s.mu.Unlock()
	if !ok {
		return nil, database.ErrNotFound
	}
	return s.Get(ctx, collection, id)
}

// Patch implements database.Store.
func (s *Store) Patch(ctx context.Context, collection, id string, fields database.Document) error {
	if s.PatchErr != nil {
		if err := s.PatchErr(collection, id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return database.ErrNotFound
	}
	updated := clone(doc)
	for k, v := range fields {
		if v == nil {
			delete(updated, k)
		} else {
			updated[k] = v
		}
	}
	if s.uniqueViolation(collection, id, updated) {
		return database.ErrDuplicate
	}
	s.docs[collection][id] = updated
	s.Patches = append(s.Patches, Call{Collection: collection, ID: id, Fields: clone(fields)})
	return nil
}

// Put implements database.Store.
func (s *Store) Put(ctx context.Context, collection, id string, doc database.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]database.Document)
	}
	stored := clone(doc)
	delete(stored, database.FieldID)
	s.docs[collection][id] = stored
	s.Puts = append(s.Puts, Call{Collection: collection, ID: id, Fields: clone(doc)})
	return nil
}

// CollectAll implements database.Store.
func (s *Store) CollectAll(ctx context.Context, collection string) ([]database.Document, error) {
	docs, _, err := s.Scan(ctx, collection, "", 0)
	return docs, err
}

// Scan implements database.Store.
func (s *Store) Scan(ctx context.Context, collection, after string, limit int) ([]database.Document, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var next string
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
		next = ids[limit-1]
	}
	docs := make([]database.Document, 0, len(ids))
	for _, id := range ids {
		doc := clone(s.docs[collection][id])
		doc[database.FieldID] = id
		docs = append(docs, doc)
	}
	return docs, next, nil
}

// Close implements database.Store.
func (s *Store) Close() error { return nil }
