package services

import (
	"context"
	"time"

	"field-review/backend/internal/models"
	"field-review/backend/internal/worker"

	log "github.com/sirupsen/logrus"
)

// Archiver hands completed work to durable storage. Failures are logged; the
// in-memory ledger and register stay authoritative for the running process.
type Archiver interface {
	ArchiveReview(ctx context.Context, rec models.ReviewRecord)
	ArchiveAttendance(ctx context.Context, rec models.AttendanceRecord)
	RequestPasswordReset(ctx context.Context, email string)
}

// Enqueuer is the producer side of the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType worker.JobType, payload interface{}) (string, error)
}

// QueueArchiver enqueues archive jobs and falls back to running the job
// handler inline when the queue is unavailable or not configured.
type QueueArchiver struct {
	queue    Enqueuer
	handlers *worker.ArchiveHandlers
	logger   *log.Logger
}

func NewQueueArchiver(queue Enqueuer, handlers *worker.ArchiveHandlers, logger *log.Logger) *QueueArchiver {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &QueueArchiver{queue: queue, handlers: handlers, logger: logger}
}

func (a *QueueArchiver) ArchiveReview(ctx context.Context, rec models.ReviewRecord) {
	a.dispatch(ctx, worker.JobTypeReviewArchive, rec, func(ctx context.Context) error {
		return a.handlers.Reviews.Save(ctx, &rec)
	})
}

func (a *QueueArchiver) ArchiveAttendance(ctx context.Context, rec models.AttendanceRecord) {
	a.dispatch(ctx, worker.JobTypeAttendanceArchive, rec, func(ctx context.Context) error {
		return a.handlers.Attendance.Save(ctx, &rec)
	})
}

func (a *QueueArchiver) RequestPasswordReset(ctx context.Context, email string) {
	payload := worker.PasswordResetPayload{Email: email, RequestedAt: time.Now()}
	a.dispatch(ctx, worker.JobTypePasswordReset, payload, func(ctx context.Context) error {
		return a.handlers.Notifier.SendPasswordReset(ctx, email)
	})
}

func (a *QueueArchiver) dispatch(ctx context.Context, jobType worker.JobType, payload interface{}, inline func(context.Context) error) {
	entry := a.logger.WithField("job_type", jobType)

	if a.queue != nil {
		id, err := a.queue.Enqueue(ctx, jobType, payload)
		if err == nil {
			entry.WithField("job_id", id).Debug("job enqueued")
			return
		}
		entry.WithError(err).Warn("enqueue failed, running inline")
	}

	// The request may already be finishing; inline work gets its own deadline.
	inlineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := inline(inlineCtx); err != nil {
		entry.WithError(err).Error("inline job failed")
	}
}
