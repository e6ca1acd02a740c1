package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"jerkyClubAPI/internal/activity"
)

func newClassifierForTest() *ClassificationService {
	return NewClassificationService(nil, nil, nil, nil)
}

func TestNotifyCoalescesLatestTrigger(t *testing.T) {
	svc := newClassifierForTest()
	userID := uuid.New()

	svc.Notify(userID, activity.TypeSearch)
	svc.Notify(userID, activity.TypePurchase)
	svc.Notify(userID, activity.TypeProductView)

	svc.mu.Lock()
	trigger, pending := svc.pending[userID]
	svc.mu.Unlock()

	assert.True(t, pending)
	assert.Equal(t, activity.TypeProductView, trigger, "latest trigger wins")
	assert.Len(t, svc.queue, 1, "repeat notifications must not re-enqueue")
}

func TestNotifyDistinctUsersEnqueueSeparately(t *testing.T) {
	svc := newClassifierForTest()

	svc.Notify(uuid.New(), activity.TypeSearch)
	svc.Notify(uuid.New(), activity.TypeSearch)

	assert.Len(t, svc.queue, 2)
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	svc := newClassifierForTest()

	for i := 0; i < classificationQueueSize; i++ {
		svc.Notify(uuid.New(), activity.TypeSearch)
	}
	assert.Len(t, svc.queue, classificationQueueSize)

	overflow := uuid.New()
	svc.Notify(overflow, activity.TypeSearch)

	svc.mu.Lock()
	_, pending := svc.pending[overflow]
	svc.mu.Unlock()
	assert.False(t, pending, "dropped notification must not linger as pending")
	assert.Len(t, svc.queue, classificationQueueSize)
}

func TestNotifyWhileRunningDoesNotEnqueue(t *testing.T) {
	svc := newClassifierForTest()
	userID := uuid.New()

	svc.mu.Lock()
	svc.running[userID] = true
	svc.mu.Unlock()

	svc.Notify(userID, activity.TypeSearch)

	assert.Len(t, svc.queue, 0, "the finishing run re-enqueues instead")
	svc.mu.Lock()
	trigger := svc.pending[userID]
	svc.mu.Unlock()
	assert.Equal(t, activity.TypeSearch, trigger)
}

func TestShouldRecalcThrottles(t *testing.T) {
	svc := newClassifierForTest()
	userID := uuid.New()

	assert.False(t, svc.shouldRecalc(userID, activity.TypeSearch), "searches never recalc")
	assert.False(t, svc.shouldRecalc(userID, activity.TypeProfileView))

	assert.True(t, svc.shouldRecalc(userID, activity.TypePurchase), "first purchase recalcs")
	assert.False(t, svc.shouldRecalc(userID, activity.TypeRankingSaved), "inside the throttle window")

	other := uuid.New()
	assert.True(t, svc.shouldRecalc(other, activity.TypeRankingSaved), "throttle is per user")
}

func TestNotifyAfterStopIsNoOp(t *testing.T) {
	svc := newClassifierForTest()
	svc.Stop(0)

	svc.Notify(uuid.New(), activity.TypeSearch)
	assert.Len(t, svc.queue, 0)
	assert.Empty(t, svc.pending)

	// Double stop must not panic on the closed channel.
	svc.Stop(0)
}
