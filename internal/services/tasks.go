package services

import (
	"context"
	"strings"

	"field-review/backend/internal/ledger"
	"field-review/backend/internal/models"
	"field-review/backend/internal/repositories"
	"field-review/backend/internal/review"
	"field-review/backend/internal/session"

	log "github.com/sirupsen/logrus"
)

type Dashboard struct {
	Overall    models.CategoryAggregate   `json:"overall"`
	Categories []models.CategoryAggregate `json:"categories"`
}

type ReviewRequest struct {
	Action  review.Action `json:"action"`
	Rating  int           `json:"rating,omitempty"`
	Comment string        `json:"comment,omitempty"`
}

type TaskService interface {
	Dashboard() Dashboard
	Categories() []string
	Pending(category string) []models.Task
	Reviewed(category string) []models.Task
	Get(id models.TaskID) (models.Task, error)
	Review(ctx context.Context, reviewer session.Session, id models.TaskID, req ReviewRequest) (models.Task, error)
	History(ctx context.Context, reviewer session.Session, limit int) ([]models.ReviewRecord, error)
}

type TaskServiceImpl struct {
	ledger   *ledger.Ledger
	reviews  repositories.ReviewRepository
	archiver Archiver
	logger   *log.Logger
}

func NewTaskService(l *ledger.Ledger, reviews repositories.ReviewRepository, archiver Archiver, logger *log.Logger) *TaskServiceImpl {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TaskServiceImpl{ledger: l, reviews: reviews, archiver: archiver, logger: logger}
}

func (s *TaskServiceImpl) Dashboard() Dashboard {
	categories := s.ledger.ListCategories()
	aggregates := make([]models.CategoryAggregate, 0, len(categories))
	for _, c := range categories {
		aggregates = append(aggregates, s.ledger.CategoryAggregate(c))
	}
	return Dashboard{Overall: s.ledger.Overall(), Categories: aggregates}
}

func (s *TaskServiceImpl) Categories() []string {
	return s.ledger.ListCategories()
}

func (s *TaskServiceImpl) Pending(category string) []models.Task {
	return s.ledger.ListPending(strings.TrimSpace(category))
}

func (s *TaskServiceImpl) Reviewed(category string) []models.Task {
	return s.ledger.ListReviewed(strings.TrimSpace(category))
}

func (s *TaskServiceImpl) Get(id models.TaskID) (models.Task, error) {
	return s.ledger.Get(id)
}

// Review drives one review flow from a single request: choose, fill inputs,
// submit. The committed task is archived for the reviewer.
func (s *TaskServiceImpl) Review(ctx context.Context, reviewer session.Session, id models.TaskID, req ReviewRequest) (models.Task, error) {
	task, err := s.ledger.Get(id)
	if err != nil {
		return models.Task{}, err
	}

	flow, err := review.NewFlow(task, s.ledger)
	if err != nil {
		return models.Task{}, err
	}
	if err := flow.Choose(req.Action); err != nil {
		return models.Task{}, err
	}
	if err := flow.SetRating(req.Rating); err != nil {
		return models.Task{}, err
	}
	if err := flow.SetComment(req.Comment); err != nil {
		return models.Task{}, err
	}

	committed, err := flow.Submit(ctx)
	if err != nil {
		return models.Task{}, err
	}

	s.logger.WithFields(log.Fields{
		"task_id":  committed.ID,
		"category": committed.Category,
		"reviewer": reviewer.Identity.Email,
	}).Info("task reviewed")

	s.archiver.ArchiveReview(ctx, models.NewReviewRecord(committed, reviewer.Identity.Email))
	return committed, nil
}

// History lists the reviewer's archived reviews, newest first.
func (s *TaskServiceImpl) History(ctx context.Context, reviewer session.Session, limit int) ([]models.ReviewRecord, error) {
	return s.reviews.ListByReviewer(ctx, reviewer.Identity.Email, limit)
}
