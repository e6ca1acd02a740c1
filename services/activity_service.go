package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/activity"
	"jerkyClubAPI/internal/apperr"
)

const (
	activityBatchSize  = 10
	activityBatchDelay = 5 * time.Second
)

// ActivityService is the ingest funnel for activity events. Critical types
// persist immediately; the rest batch in memory and flush on size or timer.
// At-least-once: a failed flush re-prepends the batch in order and the next
// flush retries.
type ActivityService struct {
	db         *pgxpool.Pool
	classifier *ClassificationService

	mu    sync.Mutex
	queue []activity.Event
	timer *time.Timer
}

func NewActivityService(db *pgxpool.Pool, classifier *ClassificationService) *ActivityService {
	return &ActivityService{db: db, classifier: classifier}
}

// Track accepts one event. Unknown types are rejected without side effects.
func (s *ActivityService) Track(ctx context.Context, event activity.Event) error {
	if !event.Type.Valid() {
		return apperr.Validation("activity.track", "unknown activity type %q", event.Type)
	}
	if event.UserID == uuid.Nil {
		return apperr.Validation("activity.track", "missing user id")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}

	eventsIngested.WithLabelValues(string(event.Type)).Inc()

	if event.Type.Immediate() {
		if err := s.persist(ctx, []activity.Event{event}); err != nil {
			batchesFlushed.WithLabelValues("failed").Inc()
			return err
		}
		batchesFlushed.WithLabelValues("immediate").Inc()
		if event.Type.TriggersClassification() {
			s.classifier.Notify(event.UserID, event.Type)
		}
		return nil
	}

	s.mu.Lock()
	s.queue = append(s.queue, event)
	if len(s.queue) == 1 {
		s.armTimerLocked()
	}
	shouldFlush := len(s.queue) >= activityBatchSize
	s.mu.Unlock()

	if shouldFlush {
		return s.Flush(ctx)
	}
	return nil
}

// armTimerLocked starts the flush timer for the batch that just opened.
// Caller holds s.mu.
func (s *ActivityService) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(activityBatchDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			log.Printf("Activity: timer flush failed: %v", err)
		}
	})
}

// Flush persists everything queued and notifies the classification queue
// once per user with the dominant (first observed) trigger.
func (s *ActivityService) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := s.persist(ctx, batch); err != nil {
		// Put the batch back at the head, preserving relative order.
		s.mu.Lock()
		s.queue = append(batch, s.queue...)
		s.armTimerLocked()
		s.mu.Unlock()
		batchesFlushed.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to flush activity batch: %w", err)
	}

	batchesFlushed.WithLabelValues("success").Inc()
	batchFlushSize.Observe(float64(len(batch)))

	notified := make(map[uuid.UUID]bool, len(batch))
	for _, event := range batch {
		if notified[event.UserID] || !event.Type.TriggersClassification() {
			continue
		}
		notified[event.UserID] = true
		s.classifier.Notify(event.UserID, event.Type)
	}
	return nil
}

// persist does one multi-row insert. Event IDs are idempotency keys, so a
// retried batch never double-inserts.
func (s *ActivityService) persist(ctx context.Context, batch []activity.Event) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO activity_events (id, user_id, event_type, payload, created_at) VALUES `)
	args := make([]any, 0, len(batch)*5)
	for i, event := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
		args = append(args, event.ID, event.UserID, event.Type, event.Payload, event.CreatedAt)
	}
	sb.WriteString(` ON CONFLICT (id) DO NOTHING`)

	return apperr.Retry(ctx, "activity.persist", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, sb.String(), args...)
		return err
	})
}

// Close flushes whatever is still queued. Called on shutdown.
func (s *ActivityService) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

// PendingEvents reports the current queue depth.
func (s *ActivityService) PendingEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
