package workers

import (
	"context"
	"log"
	"time"

	"exam-platform/models"
	"exam-platform/services"

	"gorm.io/gorm"
)

// SweepPendingAttempts grades attempts still pending that were created before olderThan,
// e.g. because the queue lost them or no worker was running.
func SweepPendingAttempts(ctx context.Context, db *gorm.DB, exams *services.ExamService, olderThan time.Time) (int, error) {
	var ids []string
	if err := db.WithContext(ctx).Model(&models.ExamAttempt{}).
		Where("status = ? AND created_at < ?", models.AttemptPending, olderThan).
		Order("created_at ASC").
		Limit(200).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	graded := 0
	for _, id := range ids {
		if _, err := exams.GradeAttempt(ctx, id); err != nil {
			log.Printf("[Grading] ❌ sweep failed for attempt %s: %v", id, err)
			continue
		}
		graded++
	}
	return graded, nil
}

// PollPendingAttempts runs SweepPendingAttempts every pollInterval until ctx ends.
func PollPendingAttempts(ctx context.Context, db *gorm.DB, exams *services.ExamService, pollInterval, staleAfter time.Duration) {
	log.Println("[Grading] Starting pending-attempt polling...")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Grading] Pending-attempt polling stopped.")
			return
		case <-ticker.C:
			n, err := SweepPendingAttempts(ctx, db, exams, time.Now().Add(-staleAfter))
			if err != nil {
				log.Printf("❌ Error polling pending attempts: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("📥 Graded %d stale attempt(s).", n)
			}
		}
	}
}
