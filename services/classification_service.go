package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/activity"
)

const (
	classificationQueueSize = 1024
	classificationJobBudget = 30 * time.Second
	recalcInterval          = 60 * time.Second
)

// ClassificationService turns activity notifications into stats snapshots,
// score updates, achievement evaluations and cache invalidation. At most one
// job runs per user at a time; notifications arriving for a queued or
// running user coalesce down to the latest trigger.
type ClassificationService struct {
	metrics      *MetricsService
	scores       *ScoreService
	achievements *AchievementService
	cache        *CacheService

	mu         sync.Mutex
	pending    map[uuid.UUID]activity.Type
	running    map[uuid.UUID]bool
	lastRecalc map[uuid.UUID]time.Time
	stopped    bool

	queue chan uuid.UUID
	quit  chan struct{}
	wg    sync.WaitGroup
}

func NewClassificationService(metrics *MetricsService, scores *ScoreService, achievements *AchievementService, cache *CacheService) *ClassificationService {
	return &ClassificationService{
		metrics:      metrics,
		scores:       scores,
		achievements: achievements,
		cache:        cache,
		pending:      make(map[uuid.UUID]activity.Type),
		running:      make(map[uuid.UUID]bool),
		lastRecalc:   make(map[uuid.UUID]time.Time),
		queue:        make(chan uuid.UUID, classificationQueueSize),
		quit:         make(chan struct{}),
	}
}

// Start launches the worker pool.
func (s *ClassificationService) Start(workers int) {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	log.Printf("Classification: started %d workers", workers)
}

// Notify enqueues a classification job for the user. Safe to call from any
// goroutine; a full queue drops the notification, which is fine because the
// next activity rebuilds it from the events table.
func (s *ClassificationService) Notify(userID uuid.UUID, trigger activity.Type) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	_, queued := s.pending[userID]
	s.pending[userID] = trigger
	needsEnqueue := !queued && !s.running[userID]
	classificationDepth.Set(float64(len(s.pending)))
	s.mu.Unlock()

	if !needsEnqueue {
		classificationJobs.WithLabelValues("coalesced").Inc()
		return
	}

	select {
	case s.queue <- userID:
	default:
		s.mu.Lock()
		delete(s.pending, userID)
		classificationDepth.Set(float64(len(s.pending)))
		s.mu.Unlock()
		eventsDropped.Inc()
		classificationJobs.WithLabelValues("dropped").Inc()
		log.Printf("Warning: classification queue full, dropped notification for user %s", userID)
	}
}

func (s *ClassificationService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case userID := <-s.queue:
			s.runUser(userID)
		}
	}
}

func (s *ClassificationService) runUser(userID uuid.UUID) {
	s.mu.Lock()
	trigger, ok := s.pending[userID]
	if !ok || s.running[userID] {
		s.mu.Unlock()
		return
	}
	delete(s.pending, userID)
	s.running[userID] = true
	classificationDepth.Set(float64(len(s.pending)))
	s.mu.Unlock()

	s.classify(userID, trigger)

	// Re-enqueue if more notifications landed while we were busy.
	s.mu.Lock()
	delete(s.running, userID)
	_, more := s.pending[userID]
	stopped := s.stopped
	s.mu.Unlock()

	if more && !stopped {
		select {
		case s.queue <- userID:
		default:
			s.mu.Lock()
			delete(s.pending, userID)
			classificationDepth.Set(float64(len(s.pending)))
			s.mu.Unlock()
			classificationJobs.WithLabelValues("dropped").Inc()
		}
	}
}

func (s *ClassificationService) classify(userID uuid.UUID, trigger activity.Type) {
	ctx, cancel := context.WithTimeout(context.Background(), classificationJobBudget)
	defer cancel()

	st, err := s.metrics.Snapshot(ctx, userID)
	if err != nil {
		log.Printf("Classification: snapshot failed for user %s: %v", userID, err)
		classificationJobs.WithLabelValues("failed").Inc()
		return
	}

	if s.shouldRecalc(userID, trigger) {
		if err := s.scores.Recalculate(ctx, userID); err != nil {
			log.Printf("Classification: recalculate failed for user %s: %v", userID, err)
		}
	}

	if _, err := s.achievements.Evaluate(ctx, userID, st); err != nil {
		log.Printf("Classification: evaluation failed for user %s: %v", userID, err)
		classificationJobs.WithLabelValues("failed").Inc()
		return
	}

	s.cache.InvalidateEngagement(ctx, userID, time.Now())
	classificationJobs.WithLabelValues("completed").Inc()
}

// shouldRecalc throttles full recalculation to once per interval and only
// for triggers that can move ranking-derived counters in bulk.
func (s *ClassificationService) shouldRecalc(userID uuid.UUID, trigger activity.Type) bool {
	if trigger != activity.TypePurchase && trigger != activity.TypeRankingSaved {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRecalc[userID]
	if ok && time.Since(last) < recalcInterval {
		return false
	}
	s.lastRecalc[userID] = time.Now()
	return true
}

// Stop drains in-flight jobs up to the grace period. Un-started
// notifications are dropped.
func (s *ClassificationService) Stop(grace time.Duration) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	remaining := len(s.pending)
	s.mu.Unlock()

	close(s.quit)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("Classification: drained, %d notifications dropped", remaining)
	case <-time.After(grace):
		log.Printf("Warning: classification drain exceeded %s, aborting", grace)
	}
}
