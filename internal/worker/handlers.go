package worker

import (
	"context"
	"time"

	"field-review/backend/internal/models"
	"field-review/backend/internal/repositories"

	log "github.com/sirupsen/logrus"
)

// PasswordResetPayload is the notice queued by a forgotten-password request.
type PasswordResetPayload struct {
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requested_at"`
}

// Notifier delivers password reset notices to the user.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email string) error
}

// LogNotifier writes notices to the log. Used until a mail gateway exists.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) SendPasswordReset(ctx context.Context, email string) error {
	n.Logger.WithField("email", email).Info("password reset notice sent")
	return nil
}

// ArchiveHandlers persists committed reviews and attendance marks.
type ArchiveHandlers struct {
	Reviews    repositories.ReviewRepository
	Attendance repositories.AttendanceRepository
	Notifier   Notifier
}

// Register wires every job type onto w.
func (h *ArchiveHandlers) Register(w *Worker) {
	w.RegisterHandler(JobTypeReviewArchive, h.HandleReviewArchive)
	w.RegisterHandler(JobTypeAttendanceArchive, h.HandleAttendanceArchive)
	w.RegisterHandler(JobTypePasswordReset, h.HandlePasswordReset)
}

func (h *ArchiveHandlers) HandleReviewArchive(ctx context.Context, job *Job) error {
	var rec models.ReviewRecord
	if err := job.Decode(&rec); err != nil {
		return err
	}
	return h.Reviews.Save(ctx, &rec)
}

func (h *ArchiveHandlers) HandleAttendanceArchive(ctx context.Context, job *Job) error {
	var rec models.AttendanceRecord
	if err := job.Decode(&rec); err != nil {
		return err
	}
	return h.Attendance.Save(ctx, &rec)
}

func (h *ArchiveHandlers) HandlePasswordReset(ctx context.Context, job *Job) error {
	var payload PasswordResetPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	return h.Notifier.SendPasswordReset(ctx, payload.Email)
}
