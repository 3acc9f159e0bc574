package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/repository"
	"github.com/Dan9191/institute-service/internal/utils"
	"github.com/shopspring/decimal"
)

var (
	defaultAutoPassing = decimal.NewFromInt(80)
	manualPassing      = decimal.NewFromInt(50)
)

var gradeBands = []struct {
	min   decimal.Decimal
	grade string
}{
	{decimal.NewFromInt(90), "A+"},
	{decimal.NewFromInt(80), "A"},
	{decimal.NewFromInt(70), "B"},
	{decimal.NewFromInt(60), "C"},
	{decimal.NewFromInt(50), "D"},
}

// Grade maps a percentage to its letter. Exam results and certificates both use it.
func Grade(pct decimal.Decimal) string {
	for _, band := range gradeBands {
		if pct.GreaterThanOrEqual(band.min) {
			return band.grade
		}
	}
	return "F"
}

// PassingPercentage is the threshold of a course: its configured passing
// percentage (80 when unset) for auto-certificate courses, 50 otherwise.
func PassingPercentage(course models.Course) decimal.Decimal {
	if !course.AutoCertificate {
		return manualPassing
	}
	if course.PassingPercentage.Valid && course.PassingPercentage.Decimal.IsPositive() {
		return course.PassingPercentage.Decimal
	}
	return defaultAutoPassing
}

// Resolve decides certificate eligibility from a course policy and an
// aggregated score. Auto-certificate courses without results are eligible at
// their passing percentage, issued on the enrollment date.
func Resolve(course models.Course, summary models.ScoreSummary, enrolledOn time.Time) models.Eligibility {
	threshold := PassingPercentage(course)

	if !summary.HasResults {
		if !course.AutoCertificate {
			return models.Eligibility{Percentage: decimal.Zero}
		}
		issued := enrolledOn
		return models.Eligibility{
			Eligible:   true,
			IsPassed:   true,
			Percentage: threshold,
			Grade:      Grade(threshold),
			IssuedOn:   &issued,
			Basis:      models.BasisPolicy,
		}
	}

	passed := summary.OverallPercentage.GreaterThanOrEqual(threshold)
	return models.Eligibility{
		Eligible:   passed,
		IsPassed:   passed,
		Percentage: summary.OverallPercentage,
		Grade:      Grade(summary.OverallPercentage),
		IssuedOn:   summary.IssuedOn,
		Basis:      models.BasisMeasured,
	}
}

func (s *Service) resolveCertificate(ctx context.Context, scope models.ActorScope, studentID, courseID int64) (*models.Certificate, *models.Student, error) {
	student, err := s.visibleStudent(ctx, scope, studentID)
	if err != nil {
		return nil, nil, err
	}
	course, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.repo.GetCertificate(ctx, studentID, courseID)
	switch {
	case err == nil:
		stored.StudentName, stored.CourseName = student.Name, course.Name
		return stored, student, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, nil, err
	}

	results, err := s.repo.ListExamResults(ctx, studentID, courseID)
	if err != nil {
		return nil, nil, err
	}

	cert := &models.Certificate{
		Eligibility: Resolve(*course, AggregateResults(results), student.EnrolledOn),
		StudentID:   student.ID,
		StudentName: student.Name,
		CourseID:    course.ID,
		CourseName:  course.Name,
	}
	if cert.Eligible {
		code, err := utils.GenerateCertificateCode(student.ID, course.ID, cert.Percentage, *cert.IssuedOn, s.certSecret)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate verification code: %w", err)
		}
		cert.VerificationCode = code
	}
	return cert, student, nil
}

// CertificateFor resolves the certificate of a student in a course and emits
// certificate_eligible when one can be issued.
func (s *Service) CertificateFor(ctx context.Context, scope models.ActorScope, studentID, courseID int64) (*models.Certificate, error) {
	cert, student, err := s.resolveCertificate(ctx, scope, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if cert.Eligible && !cert.ManuallyIssued {
		s.emitEligible(cert, student.Email)
	}
	return cert, nil
}

// IssueCertificate stores a manually issued certificate. Issuing twice
// returns the first record.
func (s *Service) IssueCertificate(ctx context.Context, scope models.ActorScope, studentID, courseID int64) (*models.Certificate, error) {
	cert, student, err := s.resolveCertificate(ctx, scope, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if cert.ManuallyIssued {
		return cert, nil
	}
	if !cert.Eligible {
		return nil, &NotEligibleError{StudentID: studentID, CourseID: courseID}
	}

	name, courseName := cert.StudentName, cert.CourseName
	if err := s.repo.SaveCertificate(ctx, cert); err != nil {
		return nil, err
	}
	cert.StudentName, cert.CourseName = name, courseName

	s.log.Infof("Certificate %d issued to student %d for course %d at %s%%",
		cert.ID, studentID, courseID, cert.Percentage.StringFixed(2))
	s.emitEligible(cert, student.Email)
	return cert, nil
}

func (s *Service) emitEligible(cert *models.Certificate, email string) {
	s.emit(models.NewEvent(models.EventCertificateEligible, cert.StudentID,
		fmt.Sprintf("%d:%s", cert.CourseID, cert.Percentage.StringFixed(2)),
		map[string]interface{}{
			"course_id":         cert.CourseID,
			"course_name":       cert.CourseName,
			"student_name":      cert.StudentName,
			"student_email":     email,
			"percentage":        cert.Percentage.StringFixed(2),
			"grade":             cert.Grade,
			"verification_code": cert.VerificationCode,
		}, s.now()))
}
