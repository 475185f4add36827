package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/config"
)

// RosterEvent describes a roster change on a class, published for live
// observers (instructor roster streams).
type RosterEvent struct {
	CourseNumber string    `json:"course_number"`
	Action       string    `json:"action"` // "enroll", "drop" or "delete"
	StudentID    int       `json:"student_id,omitempty"`
	StudentName  string    `json:"student_name,omitempty"`
	SeatsLeft    int       `json:"seats_left"`
	At           time.Time `json:"at"`
}

// RepairTask asks the reconciliation worker to remove one side of a
// two-sided reference that a compensating write failed to clean up.
type RepairTask struct {
	// Side names the aggregate still holding the dangling reference:
	// "user" (enrolled-class entry) or "class" (roster entry).
	Side         string `json:"side"`
	StudentID    int    `json:"student_id"`
	CourseNumber string `json:"course_number"`
}

// RosterEvents publishes roster changes and queues repair tasks.
// A nil RosterEvents disables both (used in unit tests).
type RosterEvents interface {
	PublishChange(ctx context.Context, ev RosterEvent)
	EnqueueRepair(ctx context.Context, task RepairTask)
}

// redisRosterEvents is the Redis-backed RosterEvents used in production:
// changes go out over PubSub, repair tasks onto the reconcile queue.
type redisRosterEvents struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisRosterEvents creates a RosterEvents backed by Redis.
func NewRedisRosterEvents(rdb *redis.Client, log zerolog.Logger) RosterEvents {
	return &redisRosterEvents{
		rdb: rdb,
		log: log.With().Str("component", "roster_events").Logger(),
	}
}

func (e *redisRosterEvents) PublishChange(ctx context.Context, ev RosterEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		e.log.Error().Err(err).Msg("marshal roster event")
		return
	}
	if err := e.rdb.Publish(ctx, config.CacheKey.RosterChannel(ev.CourseNumber), raw).Err(); err != nil {
		e.log.Warn().Err(err).Str("course_number", ev.CourseNumber).Msg("publish roster event failed")
	}
}

func (e *redisRosterEvents) EnqueueRepair(ctx context.Context, task RepairTask) {
	raw, err := json.Marshal(task)
	if err != nil {
		e.log.Error().Err(err).Msg("marshal repair task")
		return
	}
	if err := e.rdb.RPush(ctx, config.WorkerKey.ReconcileQueue, raw).Err(); err != nil {
		// The task is lost if this fails too; the periodic audit sweep in the
		// reconciliation worker is the backstop.
		e.log.Error().Err(err).
			Str("course_number", task.CourseNumber).
			Int("student_id", task.StudentID).
			Msg("enqueue repair task failed")
	}
}
