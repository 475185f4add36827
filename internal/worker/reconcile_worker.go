package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/config"
	"github.com/courseworks/registrar-backend/internal/repository"
	"github.com/courseworks/registrar-backend/internal/service"
)

const (
	ReconcilePollTimeout = 1 * time.Second
	// AuditInterval is how often the full consistency sweep runs.
	AuditInterval = 10 * time.Minute
)

// ReconcileWorker drains the repair queue left behind by failed
// compensating writes and periodically audits the whole store for
// one-sided enrollment references.
type ReconcileWorker struct {
	users   service.UserStore
	classes service.ClassStore
	rdb     *redis.Client
	log     zerolog.Logger
}

func NewReconcileWorker(users service.UserStore, classes service.ClassStore, rdb *redis.Client, log zerolog.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		users:   users,
		classes: classes,
		rdb:     rdb,
		log:     log.With().Str("component", "reconcile_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

func (w *ReconcileWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ReconcileWorker started")

	audit := time.NewTicker(AuditInterval)
	defer audit.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested")
			return

		case <-audit.C:
			w.auditSafe(ctx)

		default:
			item, err := w.rdb.BLPop(ctx, ReconcilePollTimeout, config.WorkerKey.ReconcileQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var task service.RepairTask
			if err := json.Unmarshal([]byte(item[1]), &task); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			if err := w.apply(ctx, task); err != nil {
				w.log.Error().Err(err).
					Str("side", task.Side).
					Int("student_id", task.StudentID).
					Str("course_number", task.CourseNumber).
					Msg("repair failed, requeueing")
				raw, _ := json.Marshal(task)
				w.rdb.RPush(ctx, config.WorkerKey.ReconcileQueue, raw)
				// Back off before the next attempt hits the same fault.
				time.Sleep(time.Second)
			}
		}
	}
}

// apply removes the dangling side named by the task. A missing record means
// the reference is already gone, which is success.
func (w *ReconcileWorker) apply(ctx context.Context, task service.RepairTask) error {
	var err error
	switch task.Side {
	case "user":
		err = w.users.RemoveEnrolledClass(ctx, task.StudentID, task.CourseNumber)
	case "class":
		err = w.classes.RemoveRosterStudent(ctx, task.CourseNumber, task.StudentID)
	default:
		w.log.Warn().Str("side", task.Side).Msg("unknown repair side, dropping task")
		return nil
	}

	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	w.log.Info().
		Str("side", task.Side).
		Int("student_id", task.StudentID).
		Str("course_number", task.CourseNumber).
		Msg("dangling reference repaired")
	return nil
}

// ----------------------------------------------------------------
// Periodic audit sweep
// ----------------------------------------------------------------

func (w *ReconcileWorker) auditSafe(ctx context.Context) {
	if err := w.audit(ctx); err != nil {
		w.log.Error().Err(err).Msg("audit sweep failed")
	}
}

// audit walks every user and class looking for one-sided references.
// References to classes that no longer exist are repaired in place; an
// asymmetric membership (one side present, the other missing) is logged
// for operators since the intended direction cannot be inferred here.
func (w *ReconcileWorker) audit(ctx context.Context) error {
	users, err := w.users.List(ctx)
	if err != nil {
		return err
	}

	classes, err := w.classes.List(ctx, false)
	if err != nil {
		return err
	}

	byCourse := make(map[string]int, len(classes))
	for i := range classes {
		byCourse[classes[i].CourseNumber] = i
	}

	repaired, flagged := 0, 0

	for _, u := range users {
		for _, ref := range u.EnrolledClasses {
			idx, ok := byCourse[ref.CourseNumber]
			if !ok {
				// Class record is gone: the reference is unambiguously dead.
				if err := w.users.RemoveEnrolledClass(ctx, u.ID, ref.CourseNumber); err != nil && !errors.Is(err, repository.ErrNotFound) {
					w.log.Error().Err(err).Int("user_id", u.ID).Str("course_number", ref.CourseNumber).
						Msg("audit repair failed")
					continue
				}
				repaired++
				continue
			}

			// The owner's list entry marks ownership, not enrollment; only
			// other users must appear on the roster.
			if classes[idx].InstructorID == u.ID {
				continue
			}
			if !classes[idx].HasStudent(u.ID) {
				flagged++
				w.log.Warn().Int("user_id", u.ID).Str("course_number", ref.CourseNumber).
					Msg("user lists class but roster misses them")
			}
		}
	}

	for _, cl := range classes {
		for _, entry := range cl.Roster {
			u, err := w.users.GetByID(ctx, entry.StudentID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					flagged++
					w.log.Warn().Int("student_id", entry.StudentID).Str("course_number", cl.CourseNumber).
						Msg("roster references missing user")
				}
				continue
			}
			found := false
			for _, ref := range u.EnrolledClasses {
				if ref.CourseNumber == cl.CourseNumber {
					found = true
					break
				}
			}
			if !found {
				// User-side entry is gone, so the roster entry is the
				// leftover: finish the drop.
				if err := w.classes.RemoveRosterStudent(ctx, cl.CourseNumber, entry.StudentID); err != nil && !errors.Is(err, repository.ErrNotFound) {
					w.log.Error().Err(err).Int("student_id", entry.StudentID).Str("course_number", cl.CourseNumber).
						Msg("audit repair failed")
					continue
				}
				repaired++
			}
		}
	}

	if repaired > 0 || flagged > 0 {
		w.log.Info().Int("repaired", repaired).Int("flagged", flagged).Msg("audit sweep finished")
	} else {
		w.log.Debug().Msg("audit sweep clean")
	}
	return nil
}
