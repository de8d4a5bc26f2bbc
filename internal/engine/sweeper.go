// internal/engine/sweeper.go
package engine

import (
	"context"
	"time"

	"roommate-engine/internal/common/logger"
)

// Sweeper periodically resolves overdue proposals so deadlines take
// effect even when nobody reads or votes. Reads still check deadlines
// themselves; the sweeper only bounds how long an overdue proposal can
// linger.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	log      logger.Logger
}

func NewSweeper(engine *Engine, interval time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{engine: engine, interval: interval, log: log}
}

// Run sweeps until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("proposal sweeper started", map[string]interface{}{
		"interval": s.interval.String(),
	})
	for {
		select {
		case <-ctx.Done():
			s.log.Info("proposal sweeper stopped", nil)
			return
		case <-ticker.C:
			resolved, err := s.engine.ExpireDueProposals(ctx)
			if err != nil {
				s.log.Error("sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			if resolved > 0 {
				s.log.Info("swept overdue proposals", map[string]interface{}{
					"resolved": resolved,
				})
			}
		}
	}
}
