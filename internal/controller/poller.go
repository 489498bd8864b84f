package controller

import (
	"context"
	"time"

	"sobres/internal/log"
)

// Poller refreshes held budget months on a fixed interval.
type Poller struct {
	budget   *Budget
	interval time.Duration
	logger   *log.Logger
}

func NewPoller(b *Budget, interval time.Duration, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Nop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{budget: b, interval: interval, logger: logger.WithComponent(log.ComponentPoller)}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "Budget poller started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Budget poller stopped")
			return
		case <-ticker.C:
			res := p.budget.Poll(ctx)
			if res.Discarded > 0 || res.Failed > 0 {
				p.logger.DebugContext(ctx, "Poll finished",
					log.FieldOperation, log.OpPoll,
					"applied", res.Applied, "discarded", res.Discarded, "failed", res.Failed)
			}
		}
	}
}
