// Package attendance records the daily present/leave mark a worker makes
// right after passing verification.
package attendance

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"field-review/backend/internal/models"
	"field-review/backend/internal/session"

	"github.com/gofrs/uuid"
)

var (
	ErrNotVerified    = errors.New("session is not verified")
	ErrAlreadyMarked  = errors.New("attendance already marked for today")
	ErrInvalidStatus  = errors.New("attendance status must be present or leave")
	ErrNotMarkedToday = errors.New("attendance not marked today")
)

// Register holds one mark per user per calendar day.
type Register struct {
	mu      sync.RWMutex
	records map[string]models.AttendanceRecord
	now     func() time.Time
	loc     *time.Location
}

type Option func(*Register)

func WithClock(now func() time.Time) Option {
	return func(r *Register) {
		r.now = now
	}
}

// WithLocation sets the zone whose calendar day a mark belongs to.
func WithLocation(loc *time.Location) Option {
	return func(r *Register) {
		r.loc = loc
	}
}

func NewRegister(opts ...Option) *Register {
	r := &Register{
		records: make(map[string]models.AttendanceRecord),
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mark records today's status for the session's user.
func (r *Register) Mark(sess session.Session, status models.AttendanceStatus) (models.AttendanceRecord, error) {
	if !sess.Verified {
		return models.AttendanceRecord{}, ErrNotVerified
	}
	if !status.Valid() {
		return models.AttendanceRecord{}, ErrInvalidStatus
	}

	now := r.now().In(r.loc)
	email := models.NormalizeEmail(sess.Identity.Email)
	day := now.Format(models.AttendanceDayLayout)
	key := email + "|" + day

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[key]; ok {
		return existing, fmt.Errorf("%s on %s: %w", existing.Status, day, ErrAlreadyMarked)
	}

	rec := models.AttendanceRecord{
		ID:       uuid.Must(uuid.NewV4()),
		Email:    email,
		Day:      day,
		Status:   status,
		MarkedAt: now,
	}
	r.records[key] = rec
	return rec, nil
}

// Today returns the user's mark for the current day.
func (r *Register) Today(email string) (models.AttendanceRecord, error) {
	day := r.Day()

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[models.NormalizeEmail(email)+"|"+day]
	if !ok {
		return models.AttendanceRecord{}, ErrNotMarkedToday
	}
	return rec, nil
}

// Day is the register's current calendar day key.
func (r *Register) Day() string {
	return r.now().In(r.loc).Format(models.AttendanceDayLayout)
}

// Seed loads a mark recorded elsewhere, e.g. read back from the archive after
// a restart. An existing mark for the same user and day is kept.
func (r *Register) Seed(rec models.AttendanceRecord) {
	key := models.NormalizeEmail(rec.Email) + "|" + rec.Day

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; !ok {
		r.records[key] = rec
	}
}
