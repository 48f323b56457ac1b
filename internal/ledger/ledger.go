// Package ledger holds the pending and reviewed task collections built from
// the immutable catalog, and derives dashboard aggregates from them.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"field-review/backend/internal/models"
)

// ErrTaskNotFound is returned when a commit names a task that is not pending.
var ErrTaskNotFound = errors.New("task not found")

// Ledger is safe for concurrent use. Every mutation happens under one write
// lock, so readers never observe a task in both collections or in neither.
type Ledger struct {
	mu       sync.RWMutex
	catalog  []models.Task
	pending  []models.Task
	reviewed []models.Task
	now      func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the wall clock used for reviewed timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New copies the catalog; the caller's slice is never aliased.
func New(catalog []models.Task, opts ...Option) *Ledger {
	l := &Ledger{
		catalog:  append([]models.Task(nil), catalog...),
		pending:  append([]models.Task(nil), catalog...),
		reviewed: []models.Task{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListPending returns pending tasks in catalog order. An empty category
// matches every task.
func (l *Ledger) ListPending(category string) []models.Task {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return filter(l.pending, category)
}

// ListReviewed returns reviewed tasks, most recently reviewed first. Ties
// keep their relative order in the reviewed collection.
func (l *Ledger) ListReviewed(category string) []models.Task {
	l.mu.RLock()
	out := filter(l.reviewed, category)
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return reviewedAt(out[i]).After(reviewedAt(out[j]))
	})
	return out
}

// Get finds a task in either collection.
func (l *Ledger) Get(id models.TaskID) (models.Task, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := indexOf(l.pending, id); i >= 0 {
		return l.pending[i], nil
	}
	if i := indexOf(l.reviewed, id); i >= 0 {
		return l.reviewed[i], nil
	}
	return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
}

// CommitReview moves a pending task to the front of the reviewed collection,
// stamping it with the comment and the current time. A task that is not
// pending is reported as ErrTaskNotFound and nothing changes.
func (l *Ledger) CommitReview(id models.TaskID, comment string) (models.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.pending, id)
	if i < 0 {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}

	reviewedTime := l.now()
	task := l.pending[i]
	task.Complete = true
	task.Comment = comment
	task.ReviewedAt = &reviewedTime

	pending := make([]models.Task, 0, len(l.pending)-1)
	pending = append(pending, l.pending[:i]...)
	pending = append(pending, l.pending[i+1:]...)

	reviewed := make([]models.Task, 0, len(l.reviewed)+1)
	reviewed = append(reviewed, task)
	reviewed = append(reviewed, l.reviewed...)

	l.pending = pending
	l.reviewed = reviewed

	return task, nil
}

// Catalog returns a copy of the immutable catalog.
func (l *Ledger) Catalog() []models.Task {
	return append([]models.Task(nil), l.catalog...)
}

func filter(tasks []models.Task, category string) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

func indexOf(tasks []models.Task, id models.TaskID) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func reviewedAt(t models.Task) time.Time {
	if t.ReviewedAt == nil {
		return time.Time{}
	}
	return *t.ReviewedAt
}
