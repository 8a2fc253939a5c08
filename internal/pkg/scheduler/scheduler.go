package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/craftmatch/CraftMatch/internal/pkg/assignment"
	"github.com/craftmatch/CraftMatch/internal/pkg/cache"
	"github.com/craftmatch/CraftMatch/internal/pkg/trial"
)

const (
	// DefaultOfferWindow bounds how long a direct offer may sit before it
	// counts as an implicit decline.
	DefaultOfferWindow = 48 * time.Hour
	DefaultInterval    = 5 * time.Minute

	sweepLockKey   = "scheduler:sweep"
	expiryBatchMax = 100
)

// Scheduler periodically expires stale direct offers and re-evaluates
// trial windows. The engine itself never blocks on time; both sweeps are
// plain queries over time predicates, so the scheduler can run on any
// instance. A best-effort redis lock keeps concurrent instances from
// doing the same work twice.
type Scheduler struct {
	db          *gorm.DB
	svc         *assignment.Service
	interval    time.Duration
	offerWindow time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a scheduler with default timings.
func New(db *gorm.DB, svc *assignment.Service) *Scheduler {
	return &Scheduler{
		db:          db,
		svc:         svc,
		interval:    DefaultInterval,
		offerWindow: DefaultOfferWindow,
		stopCh:      make(chan struct{}),
	}
}

// WithTimings overrides the sweep interval and offer window.
func (s *Scheduler) WithTimings(interval, offerWindow time.Duration) *Scheduler {
	s.interval = interval
	s.offerWindow = offerWindow
	return s
}

// Start launches the sweep loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	log.Infof("[Scheduler] starting sweeps every %s (offer window %s)", s.interval, s.offerWindow)

	s.wg.Add(1)
	go s.loop()
}

// Stop terminates the sweep loop and waits for it to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.wg.Wait()
	log.Info("[Scheduler] stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce executes one sweep pass. Exported so operators can trigger it
// out of band.
func (s *Scheduler) RunOnce(ctx context.Context) {
	locked, err := cache.AcquireLock(sweepLockKey, s.interval)
	if err != nil {
		// Cache down: sweep anyway, the conditional updates keep double
		// sweeps harmless.
		log.Warnf("[Scheduler] sweep lock unavailable: %v", err)
	} else if !locked {
		return
	}

	if expired, err := s.svc.ExpireOffers(ctx, s.offerWindow, expiryBatchMax); err != nil {
		log.Errorf("[Scheduler] offer expiry sweep failed: %v", err)
	} else if expired > 0 {
		log.Infof("[Scheduler] requeued %d expired offers", expired)
	}

	if ended, err := trial.Sweep(s.db.WithContext(ctx), time.Now()); err != nil {
		log.Errorf("[Scheduler] trial sweep failed: %v", err)
	} else if ended > 0 {
		log.Infof("[Scheduler] expired %d provider trials", ended)
	}
}
