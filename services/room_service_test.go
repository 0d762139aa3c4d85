package services

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"exam-platform/models"
	"exam-platform/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type roomFixture struct {
	db    *gorm.DB
	qs    *QuestionService
	rooms *RoomService
	host  *models.User
}

func newRoomFixture(t *testing.T) *roomFixture {
	db := newTestDB(t)
	qs := NewQuestionService(db)
	seedQuestions(t, qs, "Mathematics", 5)
	seedQuestions(t, qs, "Physics", 3)
	return &roomFixture{
		db:    db,
		qs:    qs,
		rooms: NewRoomService(db, qs),
		host:  createUser(t, db, "host", models.RoleUser, "0"),
	}
}

// startedRoom creates a room with n joined participants and starts it.
func (f *roomFixture) startedRoom(t *testing.T, n int) (*models.Room, []*models.User) {
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx, f.host.ID, CreateRoomInput{Subject: "mathematics", QuestionCount: 3})
	require.NoError(t, err)

	users := make([]*models.User, n)
	for i := range users {
		users[i] = createUser(t, f.db, "student"+string(rune('a'+i)), models.RoleUser, "0")
		_, err := f.rooms.JoinRoom(ctx, users[i].ID, room.Code, "")
		require.NoError(t, err)
	}
	room, err = f.rooms.StartExam(ctx, room.ID, f.host.ID)
	require.NoError(t, err)
	return room, users
}

func TestCreateRoomSnapshotsQuestions(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()

	room, err := f.rooms.CreateRoom(ctx, f.host.ID, CreateRoomInput{
		Subject:         "Mathematics",
		QuestionCount:   3,
		TimeLimit:       15,
		MaxParticipants: 50,
	})
	require.NoError(t, err)

	assert.Len(t, room.Code, 6)
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Equal(t, models.MaxRoomParticipants, room.MaxParticipants)
	assert.Equal(t, 15, room.Settings.Data().TimeLimit)
	require.Len(t, room.QuestionIDs, 3)

	bank, err := f.qs.GetByIDs(ctx, room.QuestionIDs)
	require.NoError(t, err)
	for _, id := range room.QuestionIDs {
		assert.Equal(t, "mathematics", bank[id].Subject)
	}

	loaded, err := f.rooms.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.ID, loaded.ID)
	assert.Empty(t, loaded.Participants, "host must not be auto-joined")
}

func TestCreateRoomWithoutMatchingQuestions(t *testing.T) {
	f := newRoomFixture(t)
	_, err := f.rooms.CreateRoom(context.Background(), f.host.ID, CreateRoomInput{Subject: "chemistry"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJoinRoom(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()

	locked, err := f.rooms.CreateRoom(ctx, f.host.ID, CreateRoomInput{Password: "secret", QuestionCount: 2})
	require.NoError(t, err)
	tiny, err := f.rooms.CreateRoom(ctx, f.host.ID, CreateRoomInput{MaxParticipants: 1, QuestionCount: 2})
	require.NoError(t, err)

	alice := createUser(t, f.db, "alice", models.RoleUser, "0")
	bob := createUser(t, f.db, "bob", models.RoleUser, "0")

	_, err = f.rooms.JoinRoom(ctx, alice.ID, tiny.Code, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		userID   string
		code     string
		password string
		wantErr  error
	}{
		{"unknown code", bob.ID, "ZZZZZZ", "", ErrNotFound},
		{"wrong password", bob.ID, locked.Code, "nope", ErrInvalidPassword},
		{"room full", bob.ID, tiny.Code, "", ErrRoomFull},
		{"rejoin is allowed", alice.ID, tiny.Code, "", nil},
		{"right password", bob.ID, locked.Code, "secret", nil},
		{"lowercase code", alice.ID, " " + toLower(locked.Code) + " ", "secret", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := f.rooms.JoinRoom(ctx, tt.userID, tt.code, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, room.Participants)
		})
	}

	room, err := f.rooms.GetRoom(ctx, tiny.ID)
	require.NoError(t, err)
	assert.Len(t, room.Participants, 1)
}

func TestJoinRoomAfterStart(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room, users := f.startedRoom(t, 1)

	late := createUser(t, f.db, "late", models.RoleUser, "0")
	_, err := f.rooms.JoinRoom(ctx, late.ID, room.Code, "")
	assert.ErrorIs(t, err, ErrRoomClosed)

	_, err = f.rooms.JoinRoom(ctx, users[0].ID, room.Code, "")
	assert.NoError(t, err, "existing participants can reconnect")
}

func TestDeleteRoomIsIdempotent(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room, users := f.startedRoom(t, 2)

	_, err := f.rooms.DeleteRoom(ctx, room.ID, users[0].ID, models.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden)

	deleted, err := f.rooms.DeleteRoom(ctx, room.ID, f.host.ID, models.RoleUser)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.rooms.DeleteRoom(ctx, room.ID, f.host.ID, models.RoleUser)
	require.NoError(t, err)
	assert.False(t, deleted)

	var participants int64
	require.NoError(t, f.db.Model(&models.RoomParticipant{}).Where("room_id = ?", room.ID).Count(&participants).Error)
	assert.Zero(t, participants)

	_, err = f.rooms.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminCanDeleteAnyRoom(t *testing.T) {
	f := newRoomFixture(t)
	admin := createUser(t, f.db, "admin", models.RoleAdmin, "0")
	room, err := f.rooms.CreateRoom(context.Background(), f.host.ID, CreateRoomInput{QuestionCount: 1})
	require.NoError(t, err)

	deleted, err := f.rooms.DeleteRoom(context.Background(), room.ID, admin.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestFinishExamFinishesRoomWhenEveryoneIsDone(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room, users := f.startedRoom(t, 4)
	scores := []int{10, 8, 6, 4}

	for i, u := range users {
		out, err := f.rooms.FinishExam(ctx, room.ID, u.ID, scores[i])
		require.NoError(t, err)

		last := i == len(users)-1
		assert.Equal(t, last, out.RoomFinished, "after participant %d", i)
		if !last {
			assert.Equal(t, models.RoomStatusInProgress, out.Room.Status)
		}
	}

	loaded, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinished, loaded.Status)
	assert.NotNil(t, loaded.FinishedAt)

	var results []models.ExamResult
	require.NoError(t, f.db.Where("room_id = ?", room.ID).Find(&results).Error)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, models.ExamModeClassroom, r.Mode)
		assert.Equal(t, 3, r.TotalQuestions)
	}

	board, err := f.rooms.Leaderboard(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, board, 4)
	for i, p := range board {
		assert.Equal(t, scores[i], p.Score)
		assert.Equal(t, models.ParticipantFinished, p.Status)
	}
}

func TestFinishExamTwiceWritesOneResult(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room, users := f.startedRoom(t, 2)

	_, err := f.rooms.FinishExam(ctx, room.ID, users[0].ID, 7)
	require.NoError(t, err)
	out, err := f.rooms.FinishExam(ctx, room.ID, users[0].ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Participant.Score)
	assert.False(t, out.RoomFinished)

	var count int64
	require.NoError(t, f.db.Model(&models.ExamResult{}).Where("user_id = ?", users[0].ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFinishExamRejectsOutsiders(t *testing.T) {
	f := newRoomFixture(t)
	room, _ := f.startedRoom(t, 1)
	outsider := createUser(t, f.db, "outsider", models.RoleUser, "0")

	_, err := f.rooms.FinishExam(context.Background(), room.ID, outsider.ID, 3)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRoomStatusIsMonotonic(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room, users := f.startedRoom(t, 1)

	_, err := f.rooms.StartExam(ctx, room.ID, f.host.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.rooms.StartExam(ctx, room.ID, users[0].ID)
	assert.ErrorIs(t, err, ErrForbidden)

	closed, err := f.rooms.CloseRoom(ctx, room.ID, f.host.ID, models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinished, closed.Status)

	_, err = f.rooms.ResetExam(ctx, room.ID, f.host.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.rooms.SubmitScore(ctx, room.ID, users[0].ID, 1)
	assert.ErrorIs(t, err, ErrInvalidState)

	again, err := f.rooms.CloseRoom(ctx, room.ID, f.host.ID, models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinished, again.Status)
}

func TestResetExamClearsScores(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room, users := f.startedRoom(t, 2)

	_, err := f.rooms.SubmitScore(ctx, room.ID, users[0].ID, 5)
	require.NoError(t, err)
	_, err = f.rooms.FinishExam(ctx, room.ID, users[1].ID, 3)
	require.NoError(t, err)
	_, err = f.rooms.Navigate(ctx, room.ID, f.host.ID, 2)
	require.NoError(t, err)

	reset, err := f.rooms.ResetExam(ctx, room.ID, f.host.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusInProgress, reset.Status)
	assert.Equal(t, 0, reset.CurrentQuestion)

	board, err := f.rooms.Leaderboard(ctx, room.ID)
	require.NoError(t, err)
	for _, p := range board {
		assert.Equal(t, 0, p.Score)
		assert.Equal(t, models.ParticipantJoined, p.Status)
		assert.Nil(t, p.FinishedAt)
	}
}

func TestNavigateValidatesIndex(t *testing.T) {
	f := newRoomFixture(t)
	room, _ := f.startedRoom(t, 1)

	_, err := f.rooms.Navigate(context.Background(), room.ID, f.host.ID, 3)
	assert.ErrorIs(t, err, ErrValidation)

	moved, err := f.rooms.Navigate(context.Background(), room.ID, f.host.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.CurrentQuestion)
}

func TestMarkReadyOnlyWhileWaiting(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx, f.host.ID, CreateRoomInput{QuestionCount: 1})
	require.NoError(t, err)
	u := createUser(t, f.db, "ready", models.RoleUser, "0")
	_, err = f.rooms.JoinRoom(ctx, u.ID, room.Code, "")
	require.NoError(t, err)

	p, err := f.rooms.MarkReady(ctx, room.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantReady, p.Status)

	_, err = f.rooms.StartExam(ctx, room.ID, f.host.ID)
	require.NoError(t, err)
	_, err = f.rooms.MarkReady(ctx, room.ID, u.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestListRoomsHidesOldFinishedRooms(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()

	create := func() *models.Room {
		r, err := f.rooms.CreateRoom(ctx, f.host.ID, CreateRoomInput{QuestionCount: 1})
		require.NoError(t, err)
		return r
	}
	waiting := create()
	recent := create()
	old := create()

	finish := func(r *models.Room, at time.Time) {
		require.NoError(t, f.db.Model(&models.Room{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
			"status":      models.RoomStatusFinished,
			"finished_at": at,
		}).Error)
	}
	finish(recent, time.Now().Add(-time.Hour))
	finish(old, time.Now().Add(-25*time.Hour))

	list, total, err := f.rooms.ListRooms(ctx, ListRoomsParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	ids := map[string]bool{}
	for _, r := range list {
		ids[r.ID] = true
	}
	assert.True(t, ids[waiting.ID])
	assert.True(t, ids[recent.ID])
	assert.False(t, ids[old.ID])

	page2, total, err := f.rooms.ListRooms(ctx, ListRoomsParams{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, page2, 1)
}

func toLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func TestFinishedRoomResultsAreArchived(t *testing.T) {
	f := newRoomFixture(t)
	dir := t.TempDir()
	f.rooms.Archive = &utils.LocalStorage{Dir: dir}
	ctx := context.Background()
	room, users := f.startedRoom(t, 2)

	_, err := f.rooms.FinishExam(ctx, room.ID, users[0].ID, 3)
	require.NoError(t, err)
	out, err := f.rooms.FinishExam(ctx, room.ID, users[1].ID, 1)
	require.NoError(t, err)
	require.True(t, out.RoomFinished)

	wantURL := "/archive/" + utils.RoomResultsKey(room.ID)
	assert.Equal(t, wantURL, out.Room.ResultsURL)

	loaded, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, wantURL, loaded.ResultsURL)

	raw, err := os.ReadFile(utils.GetArchivePath(dir, utils.RoomResultsKey(room.ID)))
	require.NoError(t, err)
	var archived struct {
		RoomID      string `json:"room_id"`
		Leaderboard []struct {
			UserID string `json:"user_id"`
			Score  int    `json:"score"`
		} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(raw, &archived))
	assert.Equal(t, room.ID, archived.RoomID)
	require.Len(t, archived.Leaderboard, 2)
	assert.Equal(t, users[0].ID, archived.Leaderboard[0].UserID)
	assert.Equal(t, 3, archived.Leaderboard[0].Score)
}

func TestCloseRoomArchivesResults(t *testing.T) {
	f := newRoomFixture(t)
	dir := t.TempDir()
	f.rooms.Archive = &utils.LocalStorage{Dir: dir}
	ctx := context.Background()
	room, _ := f.startedRoom(t, 1)

	closed, err := f.rooms.CloseRoom(ctx, room.ID, f.host.ID, models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinished, closed.Status)
	assert.NotEmpty(t, closed.ResultsURL)

	_, err = os.Stat(utils.GetArchivePath(dir, utils.RoomResultsKey(room.ID)))
	assert.NoError(t, err)
}

func TestCloseAbandonedRooms(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()

	stale, err := f.rooms.CreateRoom(ctx, f.host.ID, CreateRoomInput{Subject: "Mathematics", QuestionCount: 2})
	require.NoError(t, err)
	staleStarted, _ := f.startedRoom(t, 1)
	fresh, err := f.rooms.CreateRoom(ctx, f.host.ID, CreateRoomInput{Subject: "Physics", QuestionCount: 2})
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.db.Model(&models.Room{}).
		Where("id IN ?", []string{stale.ID, staleStarted.ID}).
		Update("created_at", old).Error)

	closed, err := f.rooms.CloseAbandonedRooms(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{stale.ID, staleStarted.ID}, closed)

	for id, want := range map[string]string{
		stale.ID:        models.RoomStatusFinished,
		staleStarted.ID: models.RoomStatusFinished,
		fresh.ID:        models.RoomStatusWaiting,
	} {
		loaded, err := f.rooms.GetRoom(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, loaded.Status, id)
	}

	again, err := f.rooms.CloseAbandonedRooms(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)
}
