package main

import (
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/taskhall/engine/internal/queue/tasks"
	"github.com/taskhall/engine/pkg/logger"
)

type enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// startScheduler enqueues the maintenance tasks on fixed intervals. Tasks
// are unique for one interval, so several workers sharing a queue do not
// duplicate the work.
func startScheduler(client enqueuer, expireEvery, auditEvery time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(expireEvery),
		gocron.NewTask(func() {
			task, err := tasks.NewSurveyExpireTask(time.Time{}, expireEvery)
			if err != nil {
				logger.L().Error("build expire task", zap.Error(err))
				return
			}
			enqueue(client, task)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(auditEvery),
		gocron.NewTask(func() {
			enqueue(client, tasks.NewLedgerAuditTask(auditEvery))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}

func enqueue(client enqueuer, task *asynq.Task) {
	info, err := client.Enqueue(task)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask):
		logger.L().Debug("task already queued", zap.String("type", task.Type()))
	case err != nil:
		logger.L().Error("enqueue failed", zap.String("type", task.Type()), zap.Error(err))
	default:
		logger.L().Debug("task enqueued", zap.String("type", task.Type()), zap.String("task_id", info.ID))
	}
}
