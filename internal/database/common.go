package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rentwise/rentwise/internal/config"
	"go.uber.org/zap"
)

// Supported backends.
const (
	BackendBadger = "badger"
	BackendDgraph = "dgraph"
)

// Open connects to the backend named in the database configuration.
func Open(ctx context.Context, conf *config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch conf.Backend {
	case "", BackendBadger:
		return NewBadgerDB(conf.Dir, conf.InMemory, logger, DefaultIndexes...)
	case BackendDgraph:
		return NewDgraphDB(ctx, conf.URL, logger, DefaultIndexes...)
	default:
		return nil, fmt.Errorf("unknown database backend: %s", conf.Backend)
	}
}

// Decode copies a document into the struct pointed to by out, matching
// keys with `mapstructure` tags. Timestamps are stored as RFC 3339
// strings and numbers may come back as float64 from JSON backends.
func Decode(doc Document, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return errors.Wrap(dec.Decode(map[string]interface{}(doc)), "decoding document")
}

func validateCollection(collection string) error {
	if collection == "" || collection == prefixIndex || strings.ContainsAny(collection, "_/") {
		return errors.Wrap(ErrInvalidCollection, collection)
	}
	return nil
}

// applyPatch merges fields into doc, removing nil entries. The id key is
// never stored.
func applyPatch(doc, fields Document) Document {
	if doc == nil {
		doc = make(Document, len(fields))
	}
	for k, v := range fields {
		if k == FieldID {
			continue
		}
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	return doc
}

// indexValue renders an index value as the string used in keys.
func indexValue(v interface{}) string {
	return fmt.Sprint(v)
}

func indexesFor(indexes []Index, collection string) []Index {
	var out []Index
	for _, idx := range indexes {
		if idx.Collection == collection {
			out = append(out, idx)
		}
	}
	return out
}

func findIndex(indexes []Index, collection, field string) (Index, bool) {
	for _, idx := range indexes {
		if idx.Collection == collection && idx.Field == field {
			return idx, true
		}
	}
	return Index{}, false
}
