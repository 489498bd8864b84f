package worker

import (
	"context"
	"fmt"
	"time"

	"sobres/internal/amqp"
	"sobres/internal/core"
	"sobres/internal/log"
)

// TaxonomySource lists the upstream groups and categories.
type TaxonomySource interface {
	ListGroups(ctx context.Context) ([]core.Group, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// TaxonomyMirror stores upstream groups and categories locally.
type TaxonomyMirror interface {
	MirrorTaxonomy(ctx context.Context, groups []core.Group, categories []core.Category) error
}

// SyncWorker reacts to ledger change notifications and keeps the local
// category tree in step with upstream.
type SyncWorker struct {
	processor *SyncProcessor
	source    TaxonomySource
	mirror    TaxonomyMirror
	logger    *log.Logger
}

func NewSyncWorker(processor *SyncProcessor, source TaxonomySource, mirror TaxonomyMirror, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &SyncWorker{
		processor: processor,
		source:    source,
		mirror:    mirror,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerChange processes a notification. Only assignment and category
// changes travel upstream; everything else stays local.
func (w *SyncWorker) HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	w.logger.DebugContext(ctx, "Ledger change received",
		log.FieldMessageID, msg.MessageID, "kind", msg.Kind, "entity_id", msg.EntityID)

	switch msg.Kind {
	case amqp.ChangeAssignment, amqp.ChangeCategory:
		w.processor.Kick()
	}
	return nil
}

// MirrorTaxonomy copies upstream groups and categories into the local store.
func (w *SyncWorker) MirrorTaxonomy(ctx context.Context) error {
	groups, err := w.source.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("list upstream groups: %w", err)
	}
	categories, err := w.source.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list upstream categories: %w", err)
	}
	return w.mirror.MirrorTaxonomy(ctx, groups, categories)
}

// RunTaxonomySync mirrors once, then every interval until ctx is done.
func (w *SyncWorker) RunTaxonomySync(ctx context.Context, interval time.Duration) {
	if err := w.MirrorTaxonomy(ctx); err != nil {
		w.logger.WarnContext(ctx, "Initial taxonomy sync failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.MirrorTaxonomy(ctx); err != nil {
				w.logger.WarnContext(ctx, "Taxonomy sync failed", log.FieldError, err)
			}
		}
	}
}
