package repositories

import (
	"context"
	"errors"

	"field-review/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRecordNotFound = errors.New("record not found")

// DefaultListLimit caps list queries that pass a non-positive limit.
const DefaultListLimit = 50

type ReviewRepository interface {
	Save(ctx context.Context, rec *models.ReviewRecord) error
	ListByReviewer(ctx context.Context, email string, limit int) ([]models.ReviewRecord, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

type AttendanceRepository interface {
	Save(ctx context.Context, rec *models.AttendanceRecord) error
	Find(ctx context.Context, email, day string) (*models.AttendanceRecord, error)
	ListByEmail(ctx context.Context, email string, limit int) ([]models.AttendanceRecord, error)
}

// Migrate creates or updates the archive tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ReviewRecord{}, &models.AttendanceRecord{})
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Save is idempotent on task id so retried archive jobs do not duplicate rows.
func (r *reviewRepository) Save(ctx context.Context, rec *models.ReviewRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "task_id"}}, DoNothing: true}).
		Create(rec).Error
}

func (r *reviewRepository) ListByReviewer(ctx context.Context, email string, limit int) ([]models.ReviewRecord, error) {
	var records []models.ReviewRecord
	err := r.db.WithContext(ctx).
		Where("reviewer_email = ?", models.NormalizeEmail(email)).
		Order("reviewed_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&records).Error
	return records, err
}

func (r *reviewRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Category string
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ReviewRecord{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Save(ctx context.Context, rec *models.AttendanceRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}, {Name: "day"}},
			DoNothing: true,
		}).
		Create(rec).Error
}

func (r *attendanceRepository) Find(ctx context.Context, email, day string) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("email = ? AND day = ?", models.NormalizeEmail(email), day).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepository) ListByEmail(ctx context.Context, email string, limit int) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("email = ?", models.NormalizeEmail(email)).
		Order("day DESC").
		Limit(normalizeLimit(limit)).
		Find(&records).Error
	return records, err
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
