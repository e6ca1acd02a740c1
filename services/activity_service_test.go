package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jerkyClubAPI/internal/activity"
	"jerkyClubAPI/internal/apperr"
)

// drain empties the in-memory queue and disarms the flush timer so a test
// never triggers a background flush against a nil pool.
func (s *ActivityService) drain() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.queue = nil
	s.mu.Unlock()
}

func TestTrackRejectsUnknownType(t *testing.T) {
	svc := NewActivityService(nil, newClassifierForTest())

	err := svc.Track(context.Background(), activity.Event{
		UserID: uuid.New(),
		Type:   activity.Type("sneeze"),
	})

	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Zero(t, svc.PendingEvents())
}

func TestTrackRejectsMissingUser(t *testing.T) {
	svc := NewActivityService(nil, newClassifierForTest())

	err := svc.Track(context.Background(), activity.Event{Type: activity.TypeSearch})

	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestTrackQueuesBatchedTypes(t *testing.T) {
	svc := NewActivityService(nil, newClassifierForTest())
	defer svc.drain()

	ctx := context.Background()
	userID := uuid.New()

	for _, typ := range []activity.Type{activity.TypeSearch, activity.TypeProductView, activity.TypeProfileView} {
		require.NoError(t, svc.Track(ctx, activity.Event{UserID: userID, Type: typ}))
	}

	assert.Equal(t, 3, svc.PendingEvents(), "batched types stay queued below the size threshold")
	assert.Len(t, svc.classifier.queue, 0, "queued events must not notify before the flush")

	svc.mu.Lock()
	assert.NotNil(t, svc.timer, "first queued event arms the flush timer")
	for _, ev := range svc.queue {
		assert.NotEqual(t, uuid.Nil, ev.ID, "events get idempotency keys on ingest")
		assert.False(t, ev.CreatedAt.IsZero())
		assert.NotNil(t, ev.Payload)
	}
	svc.mu.Unlock()
}

func TestTrackPreservesQueueOrder(t *testing.T) {
	svc := NewActivityService(nil, newClassifierForTest())
	defer svc.drain()

	ctx := context.Background()
	ids := make([]uuid.UUID, 0, 5)
	base := time.Now()
	for i := 0; i < 5; i++ {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, svc.Track(ctx, activity.Event{
			ID:        id,
			UserID:    uuid.New(),
			Type:      activity.TypeSearch,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.queue, 5)
	for i, ev := range svc.queue {
		assert.Equal(t, ids[i], ev.ID, "queue position %d", i)
	}
}
