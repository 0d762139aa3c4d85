package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"exam-platform/models"
	"exam-platform/realtime"
	"exam-platform/utils"
)

// eventPayload is the union of fields any client event may carry in "data".
type eventPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id"`
	TicketID string `json:"ticket_id"`
	Score    *int   `json:"score"`
	Index    *int   `json:"index"`
}

type ackReply struct {
	AckID string      `json:"ack_id"`
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// RoomEvents dispatches socket frames to the room service and fans results out
// through the hub. Failures never reach other clients; the sender learns about
// them only through an ack.
type RoomEvents struct {
	Rooms   *RoomService
	Hub     *realtime.Hub
	Timeout time.Duration
}

func NewRoomEvents(rooms *RoomService, hub *realtime.Hub) *RoomEvents {
	return &RoomEvents{Rooms: rooms, Hub: hub, Timeout: 10 * time.Second}
}

// Handle processes one frame from c.
func (e *RoomEvents) Handle(c *realtime.Client, f realtime.Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)
	defer cancel()

	var p eventPayload
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &p); err != nil {
			e.fail(c, f, fmt.Errorf("invalid payload: %w", ErrValidation))
			return
		}
	}

	data, err := e.dispatch(ctx, c, f.Event, p)
	if err != nil {
		e.fail(c, f, err)
		return
	}
	if f.AckID != "" {
		c.Reply("ack", ackReply{AckID: f.AckID, OK: true, Data: data})
	}
}

func (e *RoomEvents) fail(c *realtime.Client, f realtime.Frame, err error) {
	if HTTPStatus(err) >= 500 {
		utils.ReportError("Socket", err, map[string]interface{}{"event": f.Event, "user_id": c.UserID})
	} else {
		log.Printf("[Socket] %s from user %s rejected: %v", f.Event, c.UserID, err)
	}
	if f.AckID != "" {
		c.Reply("ack", ackReply{AckID: f.AckID, OK: false, Error: PublicMessage(err)})
	}
}

func requireRoom(p eventPayload) error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required: %w", ErrValidation)
	}
	return nil
}

func (e *RoomEvents) dispatch(ctx context.Context, c *realtime.Client, event string, p eventPayload) (interface{}, error) {
	switch event {
	case "join_room":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		ok, err := e.Rooms.IsParticipant(ctx, p.RoomID, c.UserID)
		if err != nil {
			return nil, err
		}
		if !ok && c.Role != models.RoleAdmin {
			return nil, fmt.Errorf("join the room before subscribing: %w", ErrForbidden)
		}
		e.Hub.Subscribe(c, realtime.RoomChannel(p.RoomID))
		e.Hub.EmitToRoom(p.RoomID, "participant_joined", map[string]string{"room_id": p.RoomID, "user_id": c.UserID})
		return nil, nil

	case "leave_room":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		e.Hub.Unsubscribe(c, realtime.RoomChannel(p.RoomID))
		e.Hub.EmitToRoom(p.RoomID, "participant_left", map[string]string{"room_id": p.RoomID, "user_id": c.UserID})
		return nil, nil

	case "join_user":
		userID := p.UserID
		if userID == "" {
			userID = c.UserID
		}
		if userID != c.UserID && c.Role != models.RoleAdmin {
			return nil, fmt.Errorf("cannot follow another user's notifications: %w", ErrForbidden)
		}
		e.Hub.Subscribe(c, realtime.UserChannel(userID))
		return nil, nil

	case "join_thread":
		// Threads are public discussions; any signed-in user may follow one.
		if p.ThreadID == "" {
			return nil, fmt.Errorf("thread_id is required: %w", ErrValidation)
		}
		e.Hub.Subscribe(c, realtime.ThreadChannel(p.ThreadID))
		return nil, nil

	case "join_ticket":
		// Ticket channels carry support traffic for staff. Ticket owners get
		// replies on their own user channel.
		if p.TicketID == "" {
			return nil, fmt.Errorf("ticket_id is required: %w", ErrValidation)
		}
		if c.Role != models.RoleAdmin {
			return nil, fmt.Errorf("only support staff can follow tickets: %w", ErrForbidden)
		}
		e.Hub.Subscribe(c, realtime.TicketChannel(p.TicketID))
		return nil, nil

	case "start_exam":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		room, err := e.Rooms.StartExam(ctx, p.RoomID, c.UserID)
		if err != nil {
			return nil, err
		}
		e.Hub.EmitToRoom(room.ID, "exam_started", map[string]interface{}{
			"room_id":          room.ID,
			"started_at":       room.StartedAt,
			"current_question": room.CurrentQuestion,
			"time_limit":       room.Settings.Data().TimeLimit,
		})
		return room, nil

	case "tutor_navigate":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		if p.Index == nil {
			return nil, fmt.Errorf("index is required: %w", ErrValidation)
		}
		room, err := e.Rooms.Navigate(ctx, p.RoomID, c.UserID, *p.Index)
		if err != nil {
			return nil, err
		}
		e.Hub.EmitToRoom(room.ID, "tutor_navigate", map[string]interface{}{
			"room_id": room.ID,
			"index":   room.CurrentQuestion,
		})
		return nil, nil

	case "ready":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		part, err := e.Rooms.MarkReady(ctx, p.RoomID, c.UserID)
		if err != nil {
			return nil, err
		}
		e.Hub.EmitToRoom(p.RoomID, "participant_ready", part)
		return nil, nil

	case "submit_score":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		if p.Score == nil {
			return nil, fmt.Errorf("score is required: %w", ErrValidation)
		}
		part, err := e.Rooms.SubmitScore(ctx, p.RoomID, c.UserID, *p.Score)
		if err != nil {
			return nil, err
		}
		e.Hub.EmitToRoom(p.RoomID, "score_updated", part)
		return nil, nil

	case "finish_exam":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		if p.Score == nil {
			return nil, fmt.Errorf("score is required: %w", ErrValidation)
		}
		out, err := e.Rooms.FinishExam(ctx, p.RoomID, c.UserID, *p.Score)
		if err != nil {
			return nil, err
		}
		e.Hub.EmitToRoom(p.RoomID, "participant_finished", out.Participant)
		if out.RoomFinished {
			e.Hub.EmitToRoom(p.RoomID, "exam_finished", map[string]interface{}{
				"room_id":     p.RoomID,
				"leaderboard": out.Participants,
			})
		}
		return out, nil

	case "reset_exam":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		room, err := e.Rooms.ResetExam(ctx, p.RoomID, c.UserID)
		if err != nil {
			return nil, err
		}
		e.Hub.EmitToRoom(room.ID, "exam_reset", map[string]string{"room_id": room.ID})
		return nil, nil

	case "close_room":
		if err := requireRoom(p); err != nil {
			return nil, err
		}
		room, err := e.Rooms.CloseRoom(ctx, p.RoomID, c.UserID, c.Role)
		if err != nil {
			return nil, err
		}
		e.Hub.EmitToRoom(room.ID, "room_closed", map[string]string{"room_id": room.ID})
		return nil, nil
	}

	return nil, fmt.Errorf("unknown event %q: %w", event, ErrValidation)
}
