package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"exam-platform/models"
	"exam-platform/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeAttempts = 10

	defaultQuestionCount = 10
	maxQuestionCount     = 50

	// finished rooms stay listed this long
	finishedRoomVisibility = 24 * time.Hour
)

type RoomService struct {
	DB        *gorm.DB
	Questions *QuestionService
	Archive   utils.Storage // nil disables results archiving

	now func() time.Time
}

func NewRoomService(db *gorm.DB, questions *QuestionService) *RoomService {
	return &RoomService{DB: db, Questions: questions, now: time.Now}
}

type CreateRoomInput struct {
	Name            string `json:"name" validate:"max=128"`
	Subject         string `json:"subject" validate:"max=64"`
	Category        string `json:"category" validate:"max=64"`
	QuestionCount   int    `json:"question_count" validate:"omitempty,min=1"`
	TimeLimit       int    `json:"time_limit" validate:"omitempty,min=0,max=600"`
	MaxParticipants int    `json:"max_participants" validate:"omitempty,min=1"`
	Password        string `json:"password" validate:"omitempty,min=4,max=64"`
}

type ListRoomsParams struct {
	Page   int
	Limit  int
	Status string
}

// FinishOutcome is the state after a participant finishes.
type FinishOutcome struct {
	Room         *models.Room             `json:"room"`
	Participant  models.RoomParticipant   `json:"participant"`
	Participants []models.RoomParticipant `json:"participants"`
	RoomFinished bool                     `json:"room_finished"`
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports row locks.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func generateRoomCode() (string, error) {
	var sb strings.Builder
	limit := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// uniqueRoomCode returns a code not used by any waiting or in-progress room.
func (s *RoomService) uniqueRoomCode(ctx context.Context) (string, error) {
	for i := 0; i < roomCodeAttempts; i++ {
		code, err := generateRoomCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.Room{}).
			Where("code = ? AND status <> ?", code, models.RoomStatusFinished).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a room code: %w", ErrConflict)
}

// CreateRoom snapshots a random question set and opens a waiting room.
// The host is not added as a participant.
func (s *RoomService) CreateRoom(ctx context.Context, hostID string, in CreateRoomInput) (*models.Room, error) {
	count := in.QuestionCount
	if count <= 0 {
		count = defaultQuestionCount
	}
	if count > maxQuestionCount {
		count = maxQuestionCount
	}
	maxParticipants := in.MaxParticipants
	if maxParticipants <= 0 || maxParticipants > models.MaxRoomParticipants {
		maxParticipants = models.MaxRoomParticipants
	}

	subject := NormalizeTopic(in.Subject)
	category := NormalizeTopic(in.Category)
	ids, err := s.Questions.RandomQuestionIDs(ctx, subject, category, count)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no questions match subject %q category %q: %w", subject, category, ErrValidation)
	}

	code, err := s.uniqueRoomCode(ctx)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		Code:            code,
		Name:            strings.TrimSpace(in.Name),
		Status:          models.RoomStatusWaiting,
		HostUserID:      hostID,
		QuestionIDs:     ids,
		MaxParticipants: maxParticipants,
		Settings: datatypes.NewJSONType(models.RoomSettings{
			TimeLimit: in.TimeLimit,
			Subject:   subject,
			Category:  category,
		}),
	}
	if room.Name == "" {
		room.Name = "Room " + code
	}
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		room.PasswordHash = hash
	}

	if err := s.DB.WithContext(ctx).Create(room).Error; err != nil {
		return nil, err
	}
	room.HasPassword = room.PasswordHash != ""
	log.Printf("[Rooms] ✅ Room %s (%s) created by %s with %d questions", room.ID, room.Code, hostID, len(ids))
	return room, nil
}

// JoinRoom adds userID to the room with the given code. Rejoining is always allowed;
// new participants need a waiting room, the right password and a free seat.
func (s *RoomService) JoinRoom(ctx context.Context, userID, code, password string) (*models.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("room code is required: %w", ErrValidation)
	}

	var roomID string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := lockForUpdate(tx).
			Where("code = ?", code).
			Order("created_at DESC").
			First(&room).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("room %s: %w", code, ErrNotFound)
			}
			return err
		}
		roomID = room.ID

		var existing int64
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND user_id = ?", room.ID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		if room.Status != models.RoomStatusWaiting {
			return fmt.Errorf("room %s is %s: %w", code, room.Status, ErrRoomClosed)
		}
		if room.PasswordHash != "" && !CheckPassword(room.PasswordHash, password) {
			return ErrInvalidPassword
		}

		var seated int64
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ?", room.ID).
			Count(&seated).Error; err != nil {
			return err
		}
		if int(seated) >= room.MaxParticipants {
			return fmt.Errorf("room %s has %d/%d participants: %w", code, seated, room.MaxParticipants, ErrRoomFull)
		}

		var user models.User
		if err := tx.Select("id", "username").First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %s: %w", userID, ErrNotFound)
			}
			return err
		}

		return tx.Create(&models.RoomParticipant{
			RoomID:   room.ID,
			UserID:   userID,
			Username: user.Username,
			Status:   models.ParticipantJoined,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, roomID)
}

// GetRoom loads a room by id or code, with participants ranked by score.
func (s *RoomService) GetRoom(ctx context.Context, idOrCode string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("score DESC, joined_at ASC")
		}).
		Where("id = ? OR code = ?", idOrCode, strings.ToUpper(idOrCode)).
		Order("created_at DESC").
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", idOrCode, ErrNotFound)
		}
		return nil, err
	}
	room.ParticipantCount = int64(len(room.Participants))
	return &room, nil
}

// ListRooms pages through active rooms and rooms finished within the last 24 hours.
func (s *RoomService) ListRooms(ctx context.Context, p ListRoomsParams) ([]models.Room, int64, error) {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	cutoff := s.now().Add(-finishedRoomVisibility)

	db := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("(status IN ? OR (status = ? AND finished_at > ?))",
			[]string{models.RoomStatusWaiting, models.RoomStatusInProgress},
			models.RoomStatusFinished, cutoff)
	if p.Status != "" {
		db = db.Where("status = ?", p.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rooms []models.Room
	if err := db.Order("created_at DESC").
		Offset((p.Page - 1) * p.Limit).
		Limit(p.Limit).
		Find(&rooms).Error; err != nil {
		return nil, 0, err
	}
	if len(rooms) == 0 {
		return rooms, total, nil
	}

	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	var counts []struct {
		RoomID string
		Total  int64
	}
	if err := s.DB.WithContext(ctx).Model(&models.RoomParticipant{}).
		Select("room_id, COUNT(*) AS total").
		Where("room_id IN ?", ids).
		Group("room_id").
		Scan(&counts).Error; err != nil {
		return nil, 0, err
	}
	byRoom := make(map[string]int64, len(counts))
	for _, c := range counts {
		byRoom[c.RoomID] = c.Total
	}
	for i := range rooms {
		rooms[i].ParticipantCount = byRoom[rooms[i].ID]
	}
	return rooms, total, nil
}

// DeleteRoom removes a room and its roster. Deleting a room that does not
// exist succeeds and reports deleted=false.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, actorID, actorRole string) (bool, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if room.HostUserID != actorID && actorRole != models.RoleAdmin {
		return false, fmt.Errorf("only the host can delete room %s: %w", roomID, ErrForbidden)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, "id = ?", roomID).Error
	})
	if err != nil {
		return false, err
	}
	log.Printf("[Rooms] 🗑️ Room %s deleted by %s", roomID, actorID)
	return true, nil
}

func (s *RoomService) hostRoom(ctx context.Context, roomID, actorID string) (*models.Room, error) {
	var room models.Room
	if err := s.DB.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		return nil, err
	}
	if room.HostUserID != actorID {
		return nil, fmt.Errorf("only the host may do this: %w", ErrForbidden)
	}
	return &room, nil
}

// StartExam moves a waiting room to in_progress. Host only.
func (s *RoomService) StartExam(ctx context.Context, roomID, actorID string) (*models.Room, error) {
	room, err := s.hostRoom(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND status = ?", roomID, models.RoomStatusWaiting).
		Updates(map[string]interface{}{
			"status":           models.RoomStatusInProgress,
			"started_at":       now,
			"current_question": 0,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("room %s is %s: %w", roomID, room.Status, ErrInvalidState)
	}
	room.Status = models.RoomStatusInProgress
	room.StartedAt = &now
	room.CurrentQuestion = 0
	log.Printf("[Rooms] ▶️ Room %s started", roomID)
	return room, nil
}

// Navigate sets the question the host is presenting.
func (s *RoomService) Navigate(ctx context.Context, roomID, actorID string, index int) (*models.Room, error) {
	room, err := s.hostRoom(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusInProgress {
		return nil, fmt.Errorf("room %s is %s: %w", roomID, room.Status, ErrInvalidState)
	}
	if index < 0 || index >= len(room.QuestionIDs) {
		return nil, fmt.Errorf("question index %d out of range: %w", index, ErrValidation)
	}
	if err := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("current_question", index).Error; err != nil {
		return nil, err
	}
	room.CurrentQuestion = index
	return room, nil
}

func (s *RoomService) participant(tx *gorm.DB, roomID, userID string) (*models.RoomParticipant, error) {
	var p models.RoomParticipant
	if err := tx.First(&p, "room_id = ? AND user_id = ?", roomID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s is not in room %s: %w", userID, roomID, ErrForbidden)
		}
		return nil, err
	}
	return &p, nil
}

func (s *RoomService) roomWithStatus(tx *gorm.DB, roomID, status string) (*models.Room, error) {
	var room models.Room
	if err := lockForUpdate(tx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		return nil, err
	}
	if room.Status != status {
		return nil, fmt.Errorf("room %s is %s: %w", roomID, room.Status, ErrInvalidState)
	}
	return &room, nil
}

// MarkReady flags a participant as ready while the room is waiting.
func (s *RoomService) MarkReady(ctx context.Context, roomID, userID string) (*models.RoomParticipant, error) {
	var out *models.RoomParticipant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.roomWithStatus(tx, roomID, models.RoomStatusWaiting); err != nil {
			return err
		}
		p, err := s.participant(tx, roomID, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Update("status", models.ParticipantReady).Error; err != nil {
			return err
		}
		p.Status = models.ParticipantReady
		out = p
		return nil
	})
	return out, err
}

// SubmitScore records an intermediate score for a participant still taking the exam.
func (s *RoomService) SubmitScore(ctx context.Context, roomID, userID string, score int) (*models.RoomParticipant, error) {
	if score < 0 {
		return nil, fmt.Errorf("score must not be negative: %w", ErrValidation)
	}
	var out *models.RoomParticipant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.roomWithStatus(tx, roomID, models.RoomStatusInProgress); err != nil {
			return err
		}
		p, err := s.participant(tx, roomID, userID)
		if err != nil {
			return err
		}
		if p.Status == models.ParticipantFinished {
			return fmt.Errorf("participant already finished: %w", ErrInvalidState)
		}
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Update("score", score).Error; err != nil {
			return err
		}
		p.Score = score
		out = p
		return nil
	})
	return out, err
}

// FinishExam stores the participant's final score and classroom result, then
// finishes the room once every participant has finished. A repeated call for a
// participant who already finished writes nothing.
func (s *RoomService) FinishExam(ctx context.Context, roomID, userID string, score int) (*FinishOutcome, error) {
	if score < 0 {
		return nil, fmt.Errorf("score must not be negative: %w", ErrValidation)
	}
	out := &FinishOutcome{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := s.roomWithStatus(tx, roomID, models.RoomStatusInProgress)
		if err != nil {
			return err
		}
		p, err := s.participant(tx, roomID, userID)
		if err != nil {
			return err
		}

		now := s.now()
		if p.Status != models.ParticipantFinished {
			if err := tx.Model(&models.RoomParticipant{}).
				Where("room_id = ? AND user_id = ?", roomID, userID).
				Updates(map[string]interface{}{
					"score":       score,
					"status":      models.ParticipantFinished,
					"finished_at": now,
				}).Error; err != nil {
				return err
			}
			p.Score = score
			p.Status = models.ParticipantFinished
			p.FinishedAt = &now

			rid := roomID
			if err := tx.Create(&models.ExamResult{
				UserID:         userID,
				RoomID:         &rid,
				Mode:           models.ExamModeClassroom,
				Score:          score,
				TotalQuestions: len(room.QuestionIDs),
			}).Error; err != nil {
				return err
			}
		}
		out.Participant = *p

		var all []models.RoomParticipant
		if err := tx.Where("room_id = ?", roomID).
			Order("score DESC, joined_at ASC").
			Find(&all).Error; err != nil {
			return err
		}
		out.Participants = all

		allFinished := len(all) > 0
		for _, rp := range all {
			if rp.Status != models.ParticipantFinished {
				allFinished = false
				break
			}
		}
		if allFinished {
			res := tx.Model(&models.Room{}).
				Where("id = ? AND status = ?", roomID, models.RoomStatusInProgress).
				Updates(map[string]interface{}{
					"status":      models.RoomStatusFinished,
					"finished_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				out.RoomFinished = true
				room.Status = models.RoomStatusFinished
				room.FinishedAt = &now
			}
		}
		out.Room = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.RoomFinished {
		log.Printf("[Rooms] 🏁 Room %s finished, all %d participants done", roomID, len(out.Participants))
		s.archiveResults(ctx, out.Room, out.Participants)
	}
	return out, nil
}

// ResetExam clears scores so the roster can retake the exam. The room stays in_progress.
func (s *RoomService) ResetExam(ctx context.Context, roomID, actorID string) (*models.Room, error) {
	room, err := s.hostRoom(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.roomWithStatus(tx, roomID, models.RoomStatusInProgress); err != nil {
			return err
		}
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ?", roomID).
			Updates(map[string]interface{}{
				"score":       0,
				"status":      models.ParticipantJoined,
				"finished_at": nil,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Room{}).
			Where("id = ?", roomID).
			Update("current_question", 0).Error
	})
	if err != nil {
		return nil, err
	}
	room.CurrentQuestion = 0
	log.Printf("[Rooms] 🔄 Room %s reset by host", roomID)
	return room, nil
}

// CloseRoom forces a room to finished. Closing a finished room is a no-op.
func (s *RoomService) CloseRoom(ctx context.Context, roomID, actorID, actorRole string) (*models.Room, error) {
	var room models.Room
	if err := s.DB.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		return nil, err
	}
	if room.HostUserID != actorID && actorRole != models.RoleAdmin {
		return nil, fmt.Errorf("only the host can close room %s: %w", roomID, ErrForbidden)
	}
	if room.Status == models.RoomStatusFinished {
		return &room, nil
	}

	now := s.now()
	if err := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND status <> ?", roomID, models.RoomStatusFinished).
		Updates(map[string]interface{}{
			"status":      models.RoomStatusFinished,
			"finished_at": now,
		}).Error; err != nil {
		return nil, err
	}
	room.Status = models.RoomStatusFinished
	room.FinishedAt = &now
	log.Printf("[Rooms] 🔒 Room %s closed by %s", roomID, actorID)

	if board, err := s.Leaderboard(ctx, roomID); err == nil {
		s.archiveResults(ctx, &room, board)
	}
	return &room, nil
}

// CloseAbandonedRooms finishes rooms created before olderThan that never
// finished, and returns their ids.
func (s *RoomService) CloseAbandonedRooms(ctx context.Context, olderThan time.Time) ([]string, error) {
	var rooms []models.Room
	if err := s.DB.WithContext(ctx).
		Where("status IN ? AND created_at < ?",
			[]string{models.RoomStatusWaiting, models.RoomStatusInProgress}, olderThan).
		Find(&rooms).Error; err != nil {
		return nil, err
	}

	var closed []string
	for i := range rooms {
		room := &rooms[i]
		now := s.now()
		res := s.DB.WithContext(ctx).Model(&models.Room{}).
			Where("id = ? AND status <> ?", room.ID, models.RoomStatusFinished).
			Updates(map[string]interface{}{
				"status":      models.RoomStatusFinished,
				"finished_at": now,
			})
		if res.Error != nil {
			utils.ReportError("Rooms", fmt.Errorf("close abandoned room %s: %w", room.ID, res.Error), nil)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		room.Status = models.RoomStatusFinished
		room.FinishedAt = &now
		closed = append(closed, room.ID)

		if board, err := s.Leaderboard(ctx, room.ID); err == nil {
			s.archiveResults(ctx, room, board)
		}
	}
	return closed, nil
}

type roomArchive struct {
	RoomID      string                   `json:"room_id"`
	Code        string                   `json:"code"`
	Name        string                   `json:"name"`
	HostUserID  string                   `json:"host_user_id"`
	QuestionIDs []string                 `json:"question_ids"`
	StartedAt   *time.Time               `json:"started_at,omitempty"`
	FinishedAt  *time.Time               `json:"finished_at,omitempty"`
	Leaderboard []models.RoomParticipant `json:"leaderboard"`
}

// archiveResults stores the final leaderboard and records its URL on the room.
// Errors are reported, not returned.
func (s *RoomService) archiveResults(ctx context.Context, room *models.Room, board []models.RoomParticipant) {
	if s.Archive == nil {
		return
	}
	data, err := json.Marshal(roomArchive{
		RoomID:      room.ID,
		Code:        room.Code,
		Name:        room.Name,
		HostUserID:  room.HostUserID,
		QuestionIDs: []string(room.QuestionIDs),
		StartedAt:   room.StartedAt,
		FinishedAt:  room.FinishedAt,
		Leaderboard: board,
	})
	if err != nil {
		utils.ReportError("Rooms", fmt.Errorf("encode results of room %s: %w", room.ID, err), nil)
		return
	}
	url, err := s.Archive.Put(ctx, utils.RoomResultsKey(room.ID), data, "application/json")
	if err != nil {
		utils.ReportError("Rooms", fmt.Errorf("archive results of room %s: %w", room.ID, err), nil)
		return
	}
	if err := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", room.ID).
		Update("results_url", url).Error; err != nil {
		utils.ReportError("Rooms", fmt.Errorf("save results url of room %s: %w", room.ID, err), nil)
		return
	}
	room.ResultsURL = url
	log.Printf("[Rooms] 📦 Results of room %s archived at %s", room.ID, url)
}

func (s *RoomService) Leaderboard(ctx context.Context, roomID string) ([]models.RoomParticipant, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	var participants []models.RoomParticipant
	if err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("score DESC, joined_at ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

// IsParticipant reports whether userID may follow the room's channel.
func (s *RoomService) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var room models.Room
	if err := s.DB.WithContext(ctx).Select("id", "host_user_id").First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		return false, err
	}
	if room.HostUserID == userID {
		return true, nil
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
