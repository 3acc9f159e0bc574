package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/institute-service/internal/config"
	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/repository"
	"github.com/sirupsen/logrus"
)

// Notifier receives ledger and certificate events. Implementations must not
// block the caller and must not report delivery failures back.
type Notifier interface {
	Notify(evt models.Event)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(evt models.Event)

func (f NotifierFunc) Notify(evt models.Event) { f(evt) }

// Service handles business logic
type Service struct {
	repo       repository.Store
	log        *logrus.Logger
	notifier   Notifier
	certSecret string
	now        func() time.Time
}

// NewService initializes a new service
func NewService(repo repository.Store, log *logrus.Logger, notifier Notifier, cfg *config.Config) *Service {
	if notifier == nil {
		notifier = NotifierFunc(func(models.Event) {})
	}
	return &Service{
		repo:       repo,
		log:        log,
		notifier:   notifier,
		certSecret: cfg.CertificateSecret,
		now:        time.Now,
	}
}

// visibleStudent loads a student. Students outside scope are reported as not
// found so a caller learns nothing about other centers.
func (s *Service) visibleStudent(ctx context.Context, scope models.ActorScope, studentID int64) (*models.Student, error) {
	student, err := s.repo.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(student.CenterID) {
		return nil, fmt.Errorf("student %d: %w", studentID, repository.ErrNotFound)
	}
	return student, nil
}

func (s *Service) emit(evt models.Event) {
	s.log.WithFields(logrus.Fields{
		"event_id":   evt.ID.String(),
		"event_type": evt.Type,
		"student_id": evt.StudentID,
	}).Debug("Dispatching event")
	s.notifier.Notify(evt)
}
