package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrScheduleExists is returned when a student already has installments
	ErrScheduleExists = errors.New("installment schedule already exists")
)

// InstallmentMutator changes an installment read under lock. Returning false
// leaves the row untouched.
type InstallmentMutator func(inst *models.Installment) (bool, error)

// Store is the persistence contract of the ledger and certificate engine
type Store interface {
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	ListStudents(ctx context.Context, scope models.ActorScope) ([]models.Student, error)
	UpdateStudentFees(ctx context.Context, id int64, courseFee, downPayment decimal.Decimal) error

	// CreateSchedule stores the fee terms and the installments of a student
	// atomically and returns the installments with ids assigned.
	CreateSchedule(ctx context.Context, studentID int64, courseFee, downPayment decimal.Decimal, items []models.Installment) ([]models.Installment, error)
	GetInstallment(ctx context.Context, id int64) (*models.Installment, error)
	ListInstallments(ctx context.Context, studentID int64) ([]models.Installment, error)
	// ListOverdueCandidates returns ids of pending or partial installments due
	// before today that are not fully paid.
	ListOverdueCandidates(ctx context.Context, today time.Time) ([]int64, error)
	// UpdateInstallment runs fn on the current row while holding that row
	// exclusively and persists the result when fn reports a change.
	UpdateInstallment(ctx context.Context, id int64, fn InstallmentMutator) (*models.Installment, bool, error)

	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	ListExamResults(ctx context.Context, studentID, courseID int64) ([]models.ExamResult, error)

	GetCertificate(ctx context.Context, studentID, courseID int64) (*models.Certificate, error)
	SaveCertificate(ctx context.Context, cert *models.Certificate) error
}
