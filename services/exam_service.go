package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"exam-platform/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxPracticeAnswers = 100

// GradingQueue hands attempt ids to a background grader.
type GradingQueue interface {
	Enqueue(ctx context.Context, attemptID string) error
}

type ExamService struct {
	DB        *gorm.DB
	Questions *QuestionService
	Queue     GradingQueue // nil grades inline
}

func NewExamService(db *gorm.DB, questions *QuestionService, queue GradingQueue) *ExamService {
	return &ExamService{DB: db, Questions: questions, Queue: queue}
}

type PracticeSubmission struct {
	Answers map[string]int `json:"answers" validate:"required,min=1"`
}

type ResultsSummary struct {
	Results []models.ExamResult `json:"results"`
	Count   int                 `json:"count"`
	Average float64             `json:"average"`
	Best    int                 `json:"best"`
}

// SubmitPractice stores the attempt and queues it for grading. Without a queue,
// or if enqueueing fails, the attempt is graded before returning.
func (s *ExamService) SubmitPractice(ctx context.Context, userID string, answers map[string]int) (*models.ExamAttempt, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("answers are required: %w", ErrValidation)
	}
	if len(answers) > maxPracticeAnswers {
		return nil, fmt.Errorf("at most %d answers per attempt: %w", maxPracticeAnswers, ErrValidation)
	}

	attempt := &models.ExamAttempt{
		UserID:  userID,
		Answers: datatypes.NewJSONType(answers),
		Status:  models.AttemptPending,
	}
	if err := s.DB.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}

	if s.Queue != nil {
		err := s.Queue.Enqueue(ctx, attempt.ID)
		if err == nil {
			return attempt, nil
		}
		log.Printf("[Grading] ⚠️ enqueue failed for attempt %s, grading inline: %v", attempt.ID, err)
	}

	if _, err := s.GradeAttempt(ctx, attempt.ID); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).First(attempt, "id = ?", attempt.ID).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

// GradeAttempt scores an attempt against the answer key and records a practice
// result. Grading an already graded attempt returns the existing result.
func (s *ExamService) GradeAttempt(ctx context.Context, attemptID string) (*models.ExamResult, error) {
	var attempt models.ExamAttempt
	if err := s.DB.WithContext(ctx).First(&attempt, "id = ?", attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
		}
		return nil, err
	}
	if attempt.Status == models.AttemptGraded {
		var existing models.ExamResult
		if err := s.DB.WithContext(ctx).First(&existing, "attempt_id = ?", attemptID).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	answers := attempt.Answers.Data()
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	bank, err := s.Questions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	score := 0
	for id, choice := range answers {
		if q, ok := bank[id]; ok && q.CorrectOption == choice {
			score++
		}
	}

	aid := attempt.ID
	result := &models.ExamResult{
		UserID:         attempt.UserID,
		AttemptID:      &aid,
		Mode:           models.ExamModePractice,
		Score:          score,
		TotalQuestions: len(answers),
	}
	now := time.Now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ExamAttempt{}).
			Where("id = ? AND status = ?", attempt.ID, models.AttemptPending).
			Updates(map[string]interface{}{
				"status":    models.AttemptGraded,
				"score":     score,
				"graded_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("attempt %s already graded: %w", attempt.ID, ErrConflict)
		}
		return tx.Create(result).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Grading] ✅ Attempt %s graded: %d/%d", attempt.ID, score, len(answers))
	return result, nil
}

func (s *ExamService) ResultsForUser(ctx context.Context, userID string) (*ResultsSummary, error) {
	var results []models.ExamResult
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}

	summary := &ResultsSummary{Results: results, Count: len(results)}
	if len(results) == 0 {
		return summary, nil
	}
	total := 0
	for i, r := range results {
		total += r.Score
		if i == 0 || r.Score > summary.Best {
			summary.Best = r.Score
		}
	}
	summary.Average = float64(total) / float64(len(results))
	return summary, nil
}

// GetAttempt returns one of userID's attempts.
func (s *ExamService) GetAttempt(ctx context.Context, attemptID, userID string) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := s.DB.WithContext(ctx).First(&attempt, "id = ? AND user_id = ?", attemptID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
		}
		return nil, err
	}
	return &attempt, nil
}
