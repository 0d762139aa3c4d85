// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// abandoned rooms are closed this long after creation
const abandonedRoomAge = 24 * time.Hour

// StartScheduler runs the ad budget sweep and the daily abandoned-room sweep.
func StartScheduler(rooms *RoomService, ads *AdService, emitter RoomEmitter) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every 10 minutes: retire spent ads
	if _, err := sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			n, err := ads.ExhaustSpentAds(ctx)
			if err != nil {
				log.Printf("[Scheduler] ad sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[Scheduler] ✅ Marked %d ads exhausted", n)
			}
		}),
	); err != nil {
		return nil, err
	}

	// Daily at 00:05: close rooms nobody finished
	if _, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			closed, err := rooms.CloseAbandonedRooms(ctx, time.Now().Add(-abandonedRoomAge))
			if err != nil {
				log.Printf("[Scheduler] room sweep failed: %v", err)
				return
			}
			for _, id := range closed {
				emitter.EmitToRoom(id, "room_closed", map[string]string{"room_id": id, "reason": "abandoned"})
			}
			log.Printf("[Scheduler] ✅ Closed %d abandoned rooms", len(closed))
		}),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
