/*
scheduler.go - Periodic consistency audit

PURPOSE:
  Periodically re-verifies every stored application. The engine never
  commits figures that fail verification, so a finding here means a row
  was changed outside the engine (manual SQL, a bad migration, a restore).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Findings are logged at error level and exported as a gauge
  - Nothing is corrected; the audit only reports

CONFIGURATION:
  - Interval: How often to check (default: 1 hour, AUDIT_INTERVAL)
  - Enabled: Whether scheduler is active (default: true, AUDIT_ENABLED)

USAGE:
  scheduler := NewAuditScheduler(svc, recorder, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - aia/service.go: Service.Audit
  - cmd/server: `audit` runs a single pass
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/payapp-engine/aia"
)

// AuditObserver receives completed audit reports. metrics.Recorder implements it.
type AuditObserver interface {
	AuditCompleted(report aia.AuditReport)
}

// AuditScheduler runs Service.Audit on a ticker.
type AuditScheduler struct {
	Service  *aia.Service
	Observer AuditObserver
	Interval time.Duration
	Enabled  bool
	Log      zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *aia.AuditReport
}

// NewAuditScheduler creates a new scheduler. observer may be nil.
func NewAuditScheduler(svc *aia.Service, observer AuditObserver, log zerolog.Logger) *AuditScheduler {
	return &AuditScheduler{
		Service:  svc,
		Observer: observer,
		Interval: 1 * time.Hour,
		Enabled:  true,
		Log:      log,
	}
}

// Start begins the scheduler.
func (s *AuditScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info().Msg("audit scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.Log.Info().Dur("interval", s.Interval).Msg("audit scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *AuditScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Log.Info().Msg("audit scheduler stopped")
	}
}

// LastReport returns the most recent completed report, if any.
func (s *AuditScheduler) LastReport() (aia.AuditReport, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return aia.AuditReport{}, false
	}
	return *s.last, true
}

func (s *AuditScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunOnce(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunOnce(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunOnce performs a single audit pass.
func (s *AuditScheduler) RunOnce(ctx context.Context) (aia.AuditReport, error) {
	report, err := s.Service.Audit(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("audit run failed")
		return report, err
	}

	s.lastMu.Lock()
	s.last = &report
	s.lastMu.Unlock()

	if s.Observer != nil {
		s.Observer.AuditCompleted(report)
	}
	return report, nil
}
