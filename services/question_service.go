package services

import (
	"context"
	"fmt"
	"strings"

	"exam-platform/models"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type QuestionService struct {
	DB *gorm.DB
}

func NewQuestionService(db *gorm.DB) *QuestionService {
	return &QuestionService{DB: db}
}

type CreateQuestionInput struct {
	Subject       string   `json:"subject" validate:"required,max=64"`
	Category      string   `json:"category" validate:"max=64"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2,max=8,dive,required"`
	CorrectOption int      `json:"correct_option" validate:"gte=0"`
	Explanation   string   `json:"explanation"`
}

type QuestionFilter struct {
	Subject  string
	Category string
	Search   string
	Page     int
	Limit    int
}

// PublicQuestion hides the answer key.
type PublicQuestion struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
}

type SubjectSummary struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// NormalizeTopic turns "Biología Celular" into "biologia-celular".
func NormalizeTopic(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return slug.Make(s)
}

func normalizeSearch(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

func topicLabel(topic string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(topic, "-", " "))
}

func ToPublicQuestion(q models.Question) PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		Subject:  q.Subject,
		Category: q.Category,
		Text:     q.Text,
		Options:  q.Options,
	}
}

func (s *QuestionService) CreateQuestion(ctx context.Context, in CreateQuestionInput) (*models.Question, error) {
	if in.CorrectOption >= len(in.Options) {
		return nil, fmt.Errorf("correct_option out of range: %w", ErrValidation)
	}
	subject := NormalizeTopic(in.Subject)
	if subject == "" {
		return nil, fmt.Errorf("subject is required: %w", ErrValidation)
	}
	q := &models.Question{
		Subject:       subject,
		Category:      NormalizeTopic(in.Category),
		Text:          strings.TrimSpace(in.Text),
		SearchText:    normalizeSearch(in.Text),
		Options:       in.Options,
		CorrectOption: in.CorrectOption,
		Explanation:   in.Explanation,
	}
	if err := s.DB.WithContext(ctx).Create(q).Error; err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuestionService) ListQuestions(ctx context.Context, f QuestionFilter) ([]models.Question, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	db := s.filtered(s.DB.WithContext(ctx).Model(&models.Question{}), f.Subject, f.Category)
	if term := normalizeSearch(f.Search); term != "" {
		db = db.Where("search_text LIKE ?", "%"+term+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var questions []models.Question
	if err := db.Order("created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&questions).Error; err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}

// Subjects lists every subject in the bank with a display label.
func (s *QuestionService) Subjects(ctx context.Context) ([]SubjectSummary, error) {
	var rows []SubjectSummary
	if err := s.DB.WithContext(ctx).Model(&models.Question{}).
		Select("subject AS slug, COUNT(*) AS count").
		Group("subject").
		Order("subject ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Label = topicLabel(rows[i].Slug)
	}
	return rows, nil
}

// RandomQuestionIDs picks up to n distinct question ids matching the filters.
func (s *QuestionService) RandomQuestionIDs(ctx context.Context, subject, category string, n int) ([]string, error) {
	var ids []string
	if n <= 0 {
		return ids, nil
	}
	// RANDOM() is understood by both SQLite and Postgres.
	if err := s.filtered(s.DB.WithContext(ctx).Model(&models.Question{}), subject, category).
		Order("RANDOM()").
		Limit(n).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *QuestionService) GetByIDs(ctx context.Context, ids []string) (map[string]models.Question, error) {
	out := make(map[string]models.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var questions []models.Question
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, err
	}
	for _, q := range questions {
		out[q.ID] = q
	}
	return out, nil
}

func (s *QuestionService) filtered(db *gorm.DB, subject, category string) *gorm.DB {
	if subject = NormalizeTopic(subject); subject != "" {
		db = db.Where("subject = ?", subject)
	}
	if category = NormalizeTopic(category); category != "" {
		db = db.Where("category = ?", category)
	}
	return db
}
