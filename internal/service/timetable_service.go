package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
)

type timetableRepository interface {
	List(ctx context.Context, semester string) ([]models.TimetableEntry, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Delete(ctx context.Context, id string) (bool, error)
}

// TimetableEntryRequest creates or replaces a weekly class slot.
type TimetableEntryRequest struct {
	Day       string `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Subject   string `json:"subject" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Location  string `json:"location"`
	Semester  string `json:"semester"`
}

// TimetableService manages the weekly class schedule.
type TimetableService struct {
	entries   timetableRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs TimetableService.
func NewTimetableService(entries timetableRepository, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{entries: entries, validator: validate, logger: logger}
}

// List returns timetable entries, optionally scoped to a semester.
func (s *TimetableService) List(ctx context.Context, semester string) ([]models.TimetableEntry, error) {
	entries, err := s.entries.List(ctx, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable")
	}
	return entries, nil
}

// Create adds a class slot.
func (s *TimetableService) Create(ctx context.Context, req TimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	entry := &models.TimetableEntry{
		Day:       req.Day,
		Subject:   req.Subject,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Location:  req.Location,
		Semester:  req.Semester,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable entry")
	}
	return entry, nil
}

// Update replaces a class slot.
func (s *TimetableService) Update(ctx context.Context, id string, req TimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}

	entry.Day = req.Day
	entry.Subject = req.Subject
	entry.StartTime = req.StartTime
	entry.EndTime = req.EndTime
	entry.Location = req.Location
	entry.Semester = req.Semester

	if err := s.entries.Update(ctx, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable entry")
	}
	return entry, nil
}

// Delete removes a class slot.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	deleted, err := s.entries.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable entry")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	}
	return nil
}
