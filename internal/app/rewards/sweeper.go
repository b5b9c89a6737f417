package rewards

import (
	"context"
	"time"
)

// RunSweeper sweeps once immediately and then every SweepInterval until ctx
// is cancelled. Failures are logged and retried on the next tick.
func (s *Service) RunSweeper(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("expiry sweep failed", "error", err)
		}
		return
	}
	s.logger.Info("expiry sweep finished", "deleted", n)
}
