package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/score"
)

const warmerColdSpacing = 250 * time.Millisecond

// WarmTask is one named cache-population step.
type WarmTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// WarmResult is the outcome of one task.
type WarmResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// WarmSummary is the aggregate outcome of a warm pass.
type WarmSummary struct {
	TotalDuration time.Duration `json:"total_duration"`
	SuccessCount  int           `json:"success_count"`
	FailureCount  int           `json:"failure_count"`
	Results       []WarmResult  `json:"results"`
}

// WarmerService primes the cache layer at startup. A cold store (serverless
// Postgres waking up) gets sequential, spaced warmers so it is not hammered
// mid-wakeup; a warm store gets them all in parallel.
type WarmerService struct {
	db    *pgxpool.Pool
	tasks []WarmTask
}

func NewWarmerService(db *pgxpool.Pool, leaderboards *LeaderboardService) *WarmerService {
	s := &WarmerService{db: db}
	for _, period := range score.Periods {
		period := period
		s.Register(WarmTask{
			Name: fmt.Sprintf("leaderboard_%s", period),
			Run: func(ctx context.Context) error {
				_, err := leaderboards.TopN(ctx, period, defaultLeaderboardLimit)
				return err
			},
		})
	}
	return s
}

func (s *WarmerService) Register(task WarmTask) {
	s.tasks = append(s.tasks, task)
}

// WaitForStoreReady pings the store until it answers. Cold start is declared
// when the wait took more than a second or needed more than one attempt.
func (s *WarmerService) WaitForStoreReady(ctx context.Context, maxRetries int, retryDelay, timeout time.Duration) (isColdStart bool, err error) {
	start := time.Now()
	deadline := start.Add(timeout)

	attempts := 0
	for {
		attempts++
		pingCtx, cancel := context.WithTimeout(ctx, retryDelay)
		var one int
		err = s.db.QueryRow(pingCtx, `SELECT 1`).Scan(&one)
		cancel()
		if err == nil {
			break
		}
		if attempts >= maxRetries || time.Now().After(deadline) {
			return true, fmt.Errorf("store not ready after %d attempts: %w", attempts, err)
		}
		log.Printf("Warmer: store not ready (attempt %d): %v", attempts, err)
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}

	elapsed := time.Since(start)
	isColdStart = elapsed > time.Second || attempts > 1
	log.Printf("Warmer: store ready after %s (%d attempts), cold_start=%t", elapsed, attempts, isColdStart)
	return isColdStart, nil
}

// WarmAll runs every registered task. Failures are isolated; one bad task
// never cancels the rest.
func (s *WarmerService) WarmAll(ctx context.Context, isColdStart bool) *WarmSummary {
	start := time.Now()
	summary := &WarmSummary{Results: make([]WarmResult, len(s.tasks))}

	if isColdStart {
		for i, task := range s.tasks {
			summary.Results[i] = s.runTask(ctx, task)
			if i < len(s.tasks)-1 {
				select {
				case <-time.After(warmerColdSpacing):
				case <-ctx.Done():
				}
			}
		}
	} else {
		var wg sync.WaitGroup
		for i, task := range s.tasks {
			wg.Add(1)
			go func(i int, task WarmTask) {
				defer wg.Done()
				summary.Results[i] = s.runTask(ctx, task)
			}(i, task)
		}
		wg.Wait()
	}

	for _, result := range summary.Results {
		if result.Err != nil {
			summary.FailureCount++
		} else {
			summary.SuccessCount++
		}
	}
	summary.TotalDuration = time.Since(start)

	log.Printf("Warmer: warmed %d/%d caches in %s (cold_start=%t)",
		summary.SuccessCount, len(s.tasks), summary.TotalDuration, isColdStart)
	return summary
}

func (s *WarmerService) runTask(ctx context.Context, task WarmTask) WarmResult {
	start := time.Now()
	err := task.Run(ctx)
	if err != nil {
		log.Printf("Warning: warmer task %s failed: %v", task.Name, err)
	}
	return WarmResult{Name: task.Name, Duration: time.Since(start), Err: err}
}
