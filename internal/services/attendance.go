package services

import (
	"context"
	"errors"

	"field-review/backend/internal/attendance"
	"field-review/backend/internal/models"
	"field-review/backend/internal/repositories"
	"field-review/backend/internal/session"

	log "github.com/sirupsen/logrus"
)

type AttendanceService interface {
	Mark(ctx context.Context, sess session.Session, status models.AttendanceStatus) (models.AttendanceRecord, error)
	Today(ctx context.Context, sess session.Session) (models.AttendanceRecord, error)
	History(ctx context.Context, sess session.Session, limit int) ([]models.AttendanceRecord, error)
}

type AttendanceServiceImpl struct {
	register *attendance.Register
	records  repositories.AttendanceRepository
	archiver Archiver
	logger   *log.Logger
}

func NewAttendanceService(register *attendance.Register, records repositories.AttendanceRepository, archiver Archiver, logger *log.Logger) *AttendanceServiceImpl {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AttendanceServiceImpl{register: register, records: records, archiver: archiver, logger: logger}
}

func (s *AttendanceServiceImpl) Mark(ctx context.Context, sess session.Session, status models.AttendanceStatus) (models.AttendanceRecord, error) {
	if sess.Verified && s.records != nil {
		archived, err := s.records.Find(ctx, sess.Identity.Email, s.register.Day())
		if err == nil {
			s.register.Seed(*archived)
		} else if !errors.Is(err, repositories.ErrRecordNotFound) {
			s.logger.WithError(err).Warn("attendance archive lookup failed")
		}
	}

	rec, err := s.register.Mark(sess, status)
	if err != nil {
		return rec, err
	}

	s.logger.WithFields(log.Fields{
		"email":  rec.Email,
		"day":    rec.Day,
		"status": rec.Status,
	}).Info("attendance marked")

	s.archiver.ArchiveAttendance(ctx, rec)
	return rec, nil
}

// Today checks the in-process register first and then the archive, so a mark
// made before a restart is still reported.
func (s *AttendanceServiceImpl) Today(ctx context.Context, sess session.Session) (models.AttendanceRecord, error) {
	rec, err := s.register.Today(sess.Identity.Email)
	if err == nil || !errors.Is(err, attendance.ErrNotMarkedToday) || s.records == nil {
		return rec, err
	}

	archived, findErr := s.records.Find(ctx, sess.Identity.Email, s.register.Day())
	if errors.Is(findErr, repositories.ErrRecordNotFound) {
		return models.AttendanceRecord{}, attendance.ErrNotMarkedToday
	}
	if findErr != nil {
		return models.AttendanceRecord{}, findErr
	}
	s.register.Seed(*archived)
	return *archived, nil
}

func (s *AttendanceServiceImpl) History(ctx context.Context, sess session.Session, limit int) ([]models.AttendanceRecord, error) {
	return s.records.ListByEmail(ctx, sess.Identity.Email, limit)
}
