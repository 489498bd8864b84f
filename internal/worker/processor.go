package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sobres/internal/core"
	"sobres/internal/log"
	"sobres/internal/storage"
)

// Queue is the local outbox the processor drains.
type Queue interface {
	DequeueSyncBatch(ctx context.Context, limit int64) ([]storage.SyncItem, error)
	MarkSyncProcessing(ctx context.Context, id int64) error
	MarkSyncComplete(ctx context.Context, id int64) error
	MarkSyncFailed(ctx context.Context, id int64, reason string) error
	IncrementSyncAttempt(ctx context.Context, item storage.SyncItem, reason string) error
	ResetStaleProcessing(ctx context.Context) error
	CleanupCompletedSyncs(ctx context.Context, cutoff time.Time) error
	SyncStats(ctx context.Context) (storage.SyncStats, error)
	RetryFailedSyncs(ctx context.Context) error
}

// Upstream receives the replayed changes.
type Upstream interface {
	SetAssignment(ctx context.Context, categoryID int64, month core.Month, amount core.Money) error
	UpdateCategory(ctx context.Context, id int64, patch core.CategoryPatch) (core.Category, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum attempts before an item is marked failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor replays queued assignment and category changes upstream.
type SyncProcessor struct {
	queue    Queue
	upstream Upstream
	config   SyncProcessorConfig
	logger   *log.Logger

	// batchMu keeps the ticker and on-demand batches from overlapping.
	batchMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	kick    chan struct{}
}

func NewSyncProcessor(queue Queue, upstream Upstream, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if logger == nil {
		logger = log.Nop()
	}
	return &SyncProcessor{
		queue:    queue,
		upstream: upstream,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
		kick:     make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	if err := p.queue.ResetStaleProcessing(ctx); err != nil {
		p.logger.WarnContext(ctx, "Failed to reset stale processing items", log.FieldError, err)
	}

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Kick asks the loop to process a batch now instead of at the next tick.
func (p *SyncProcessor) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-p.kick:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// ProcessBatch pushes one batch of due items and returns how many succeeded.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	items, err := p.queue.DequeueSyncBatch(ctx, int64(p.config.BatchSize))
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to dequeue sync batch", log.FieldError, err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	p.logger.DebugContext(ctx, "Processing sync batch", "count", len(items))

	done := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return done
		}
		if err := p.queue.MarkSyncProcessing(ctx, item.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark item as processing", "id", item.ID, log.FieldError, err)
			continue
		}

		if err := p.apply(ctx, item); err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		if err := p.queue.MarkSyncComplete(ctx, item.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark sync complete", "id", item.ID, log.FieldError, err)
			continue
		}
		done++
	}
	return done
}

func (p *SyncProcessor) apply(ctx context.Context, item storage.SyncItem) error {
	switch item.Operation {
	case storage.SyncAssignment:
		var pl storage.AssignmentPayload
		if err := json.Unmarshal(item.Payload, &pl); err != nil {
			return fmt.Errorf("decode assignment payload: %w", err)
		}
		month, err := core.ParseMonth(pl.Month)
		if err != nil {
			return fmt.Errorf("assignment month: %w", err)
		}
		if err := p.upstream.SetAssignment(ctx, pl.CategoryID, month, core.Money{Cents: pl.AmountCents}); err != nil {
			return fmt.Errorf("push assignment: %w", err)
		}
		p.logger.InfoContext(ctx, "Assignment pushed upstream",
			log.Attrs().Op(log.OpSync).Assignment(pl.Month, pl.CategoryID, pl.AmountCents).Args()...)
		return nil

	case storage.SyncCategory:
		var pl storage.CategoryPayload
		if err := json.Unmarshal(item.Payload, &pl); err != nil {
			return fmt.Errorf("decode category payload: %w", err)
		}
		patch, err := categoryPatch(pl)
		if err != nil {
			return err
		}
		if _, err := p.upstream.UpdateCategory(ctx, item.EntityID, patch); err != nil {
			return fmt.Errorf("push category: %w", err)
		}
		p.logger.InfoContext(ctx, "Category pushed upstream", log.FieldOperation, log.OpSync, log.FieldCategoryID, item.EntityID)
		return nil

	default:
		return fmt.Errorf("unknown operation: %s", item.Operation)
	}
}

func categoryPatch(pl storage.CategoryPayload) (core.CategoryPatch, error) {
	amount := core.Money{Cents: pl.GoalAmountCents}
	var date core.Date
	if pl.GoalTargetDate != "" {
		d, err := core.ParseDate(pl.GoalTargetDate)
		if err != nil {
			return core.CategoryPatch{}, fmt.Errorf("category goal date: %w", err)
		}
		date = d
	}
	return core.CategoryPatch{
		Name:           &pl.Name,
		IsActive:       &pl.IsActive,
		GoalType:       &pl.GoalType,
		GoalAmount:     &amount,
		GoalTargetDate: &date,
	}, nil
}

func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.SyncItem, processErr error) {
	p.logger.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		log.FieldOperation, item.Operation,
		"attempt", item.Attempts+1,
		log.FieldError, processErr)

	if item.Attempts+1 >= int64(p.config.MaxRetries) {
		if err := p.queue.MarkSyncFailed(ctx, item.ID, processErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark sync as failed", "id", item.ID, log.FieldError, err)
		}
		p.logger.ErrorContext(ctx, "Sync item failed permanently after max retries",
			"id", item.ID, "entity_id", item.EntityID, "attempts", item.Attempts+1)
		return
	}
	if err := p.queue.IncrementSyncAttempt(ctx, item, processErr.Error()); err != nil {
		p.logger.ErrorContext(ctx, "Failed to increment sync attempt", "id", item.ID, log.FieldError, err)
	}
}

func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	if err := p.queue.CleanupCompletedSyncs(ctx, cutoff); err != nil {
		p.logger.ErrorContext(ctx, "Failed to cleanup completed syncs", log.FieldError, err)
	}
}

func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncStats, error) {
	return p.queue.SyncStats(ctx)
}

func (p *SyncProcessor) RetryFailed(ctx context.Context) error {
	return p.queue.RetryFailedSyncs(ctx)
}
