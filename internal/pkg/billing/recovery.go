package billing

import (
	"context"
	"time"
)

// StaleAfter is how long a log may stay received before it counts as
// stranded: twice the processing budget, so an in-flight run is never
// picked up.
func (s *Service) StaleAfter() time.Duration {
	return 2 * s.cfg.ProcessTimeout
}

// PendingLogs returns the ids of logs that are still received after
// StaleAfter, oldest first. A crash between Receive and Process leaves
// such rows behind.
func (s *Service) PendingLogs(ctx context.Context, limit int) ([]uint, error) {
	return s.repo.StaleWebhookLogs(ctx, s.now().Add(-s.StaleAfter()), limit)
}
