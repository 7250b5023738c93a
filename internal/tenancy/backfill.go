// Package tenancy normalizes stored tenancies to the current schema.
package tenancy

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rentwise/rentwise/internal/database"
	"github.com/rentwise/rentwise/internal/metrics"
	"github.com/rentwise/rentwise/internal/model"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of tenancies read per page.
const DefaultBatchSize = 100

// CheckpointID is the id of the progress record in the migrations
// collection.
const CheckpointID = "tenancy_backfill"

const (
	checkpointFieldCursor    = "cursor"
	checkpointFieldUpdatedAt = "updatedAt"
)

// Options controls a single run.
type Options struct {
	// Resume continues after the last checkpointed tenancy.
	Resume bool
	// DryRun counts the tenancies that would be patched without writing.
	DryRun bool
}

// Result summarizes a run.
type Result struct {
	// Scanned is the number of tenancies examined.
	Scanned int `json:"scanned"`
	// Patched is the number of tenancies written, or that would have
	// been written in a dry run.
	Patched int `json:"patched"`
	// Skipped is the number of tenancies already on the current schema.
	Skipped int `json:"skipped"`
	// Cursor is the id of the last tenancy processed.
	Cursor string `json:"cursor,omitempty"`
	DryRun bool   `json:"dryRun,omitempty"`
}

// Backfiller fills the verification and review state of tenancies
// created before those fields existed.
type Backfiller struct {
	store      database.Store
	logger     *zap.Logger
	metrics    *metrics.Metrics
	batchSize  int
	checkpoint bool
}

// Option configures a Backfiller.
type Option func(*Backfiller)

// WithBatchSize sets the page size. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(b *Backfiller) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithCheckpoint enables storing progress after every batch.
func WithCheckpoint(enabled bool) Option {
	return func(b *Backfiller) { b.checkpoint = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backfiller) { b.logger = l }
}

// WithMetrics sets the collectors progress is reported to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Backfiller) { b.metrics = m }
}

// NewBackfiller creates a Backfiller over store.
func NewBackfiller(store database.Store, opts ...Option) *Backfiller {
	b := &Backfiller{
		store:     store,
		logger:    zap.NewNop(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Patch returns the fields to write to bring doc up to the current
// schema: every missing state field with its default, and the schema
// version. Fields already present keep their value.
func Patch(doc database.Document) database.Document {
	patch := database.Document{
		model.TenancyFieldSchemaVersion: model.TenancySchemaVersion,
	}
	for field, def := range model.TenancyDefaults {
		if !doc.Has(field) {
			patch[field] = def
		}
	}
	return patch
}

// Run walks every tenancy and patches those needing a backfill. A failed
// patch stops the run; tenancies patched before it stay patched. Running
// again after a complete run writes nothing.
func (b *Backfiller) Run(ctx context.Context, opts Options) (Result, error) {
	result := Result{DryRun: opts.DryRun}

	var after string
	if opts.Resume && b.checkpoint {
		cursor, err := b.loadCheckpoint(ctx)
		if err != nil {
			return result, err
		}
		after = cursor
		if after != "" {
			b.logger.Info("Resuming tenancy backfill", zap.String("after", after))
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		docs, next, err := b.scan(ctx, after)
		if err != nil {
			return result, errors.Wrap(err, "scan tenancies")
		}

		for _, doc := range docs {
			result.Scanned++
			b.metrics.AddBackfill(metrics.OutcomeScanned, 1)

			var t model.Tenancy
			if err := database.Decode(doc, &t); err != nil {
				return result, errors.Wrapf(err, "decode tenancy %s", doc.ID())
			}
			if !t.NeedsBackfill() {
				result.Skipped++
				b.metrics.AddBackfill(metrics.OutcomeSkipped, 1)
				result.Cursor = doc.ID()
				continue
			}

			if !opts.DryRun {
				if err := b.patch(ctx, doc.ID(), Patch(doc)); err != nil {
					return result, errors.Wrapf(err, "patch tenancy %s", doc.ID())
				}
				b.metrics.AddBackfill(metrics.OutcomePatched, 1)
			}
			result.Patched++
			result.Cursor = doc.ID()
		}

		if b.checkpoint && !opts.DryRun && len(docs) > 0 {
			if err := b.saveCheckpoint(ctx, result.Cursor); err != nil {
				return result, err
			}
		}

		b.logger.Debug("Tenancy backfill batch done",
			zap.Int("batch", len(docs)),
			zap.Int("scanned", result.Scanned),
			zap.Int("patched", result.Patched),
		)

		if next == "" {
			break
		}
		after = next
	}

	if b.checkpoint && !opts.DryRun {
		if err := b.saveCheckpoint(ctx, ""); err != nil {
			return result, err
		}
	}

	b.logger.Info("Tenancy backfill complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("patched", result.Patched),
		zap.Int("skipped", result.Skipped),
		zap.Bool("dry_run", opts.DryRun),
	)
	return result, nil
}

func (b *Backfiller) scan(ctx context.Context, after string) ([]database.Document, string, error) {
	ctx, cancel := context.WithTimeout(ctx, database.DefaultTimeout)
	defer cancel()
	return b.store.Scan(ctx, model.CollectionTenancies, after, b.batchSize)
}

func (b *Backfiller) patch(ctx context.Context, id string, fields database.Document) error {
	ctx, cancel := context.WithTimeout(ctx, database.DefaultTimeout)
	defer cancel()
	return b.store.Patch(ctx, model.CollectionTenancies, id, fields)
}

func (b *Backfiller) loadCheckpoint(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, database.DefaultTimeout)
	defer cancel()

	doc, err := b.store.Get(ctx, database.CollectionMigrations, CheckpointID)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load checkpoint")
	}
	cursor, _ := doc[checkpointFieldCursor].(string)
	return cursor, nil
}

// saveCheckpoint records cursor as the last processed tenancy. An empty
// cursor marks the backfill as complete.
func (b *Backfiller) saveCheckpoint(ctx context.Context, cursor string) error {
	ctx, cancel := context.WithTimeout(ctx, database.DefaultTimeout)
	defer cancel()

	err := b.store.Put(ctx, database.CollectionMigrations, CheckpointID, database.Document{
		checkpointFieldCursor:    cursor,
		checkpointFieldUpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	return errors.Wrap(err, "save checkpoint")
}
