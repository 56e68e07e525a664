package service

import (
	"context"
	"time"

	"crm-dashboard/backend/internal/logging"
)

// RunSweeper purges expired sessions every interval until ctx is done. Failures are logged and
// the next tick tries again.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration, log *logging.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				log.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("session sweep", "purged", n)
			}
		}
	}
}
