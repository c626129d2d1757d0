package authkit

import (
	"context"
	"fmt"
	"time"
)

// CleanupExpired removes refresh-token records whose expiry predates
// the cutoff and purges expired blacklist entries. A zero cutoff means
// now. Returns how many store records were removed.
func (s *Service) CleanupExpired(ctx context.Context, before time.Time) (int, error) {
	if s == nil {
		return 0, ErrServiceNotReady
	}
	if before.IsZero() {
		before = time.Now()
	}

	removed, err := s.tokens.DeleteExpired(ctx, before)
	if err != nil {
		return 0, err
	}

	if _, err := s.revoked.PurgeExpired(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// CleanupRevoked removes revoked records older than the configured
// retention window. Recently revoked records are kept so a replay can
// still be traced to its family.
func (s *Service) CleanupRevoked(ctx context.Context) (int, error) {
	if s == nil {
		return 0, ErrServiceNotReady
	}

	cutoff := time.Now().Add(-s.config.Cleanup.RevokedRetention)
	return s.tokens.DeleteRevokedBefore(ctx, cutoff)
}

// StartSweeper launches a background goroutine that runs both cleanup
// sweeps every Cleanup.Interval. It is a no-op when a sweeper is
// already running. The sweeper stops on StopSweeper or Close.
func (s *Service) StartSweeper() {
	if s == nil || s.closed.Load() {
		return
	}

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.sweepRunning.Load() {
		return
	}

	s.sweepDone = make(chan struct{})
	s.sweepRunning.Store(true)
	s.sweepWG.Add(1)
	go s.runSweeper(s.sweepDone)
}

// StopSweeper stops the background sweeper and waits for the in-flight
// sweep, if any, to finish. Safe to call when no sweeper is running.
func (s *Service) StopSweeper() {
	if s == nil {
		return
	}

	s.sweepMu.Lock()
	if !s.sweepRunning.Load() {
		s.sweepMu.Unlock()
		return
	}
	s.sweepRunning.Store(false)
	close(s.sweepDone)
	s.sweepMu.Unlock()

	s.sweepWG.Wait()
}

func (s *Service) runSweeper(done chan struct{}) {
	defer s.sweepWG.Done()

	ticker := time.NewTicker(s.config.Cleanup.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-done:
			return
		}
	}
}

func (s *Service) sweepOnce() {
	ctx := context.Background()

	expired, expErr := s.CleanupExpired(ctx, time.Time{})
	revoked, revErr := s.CleanupRevoked(ctx)

	if expired > 0 || revoked > 0 {
		s.metricInc(MetricCleanupRemoved)
	}

	var sweepErr error
	if expErr != nil {
		sweepErr = expErr
	} else if revErr != nil {
		sweepErr = revErr
	}

	s.emitAudit(ctx, auditEventCleanup, sweepErr == nil, 0, "", DeviceInfo{}, sweepErr, func() map[string]string {
		return map[string]string{
			"expired_removed": fmt.Sprintf("%d", expired),
			"revoked_removed": fmt.Sprintf("%d", revoked),
		}
	})
}
