package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/utils/money"
)

// SweepReport summarizes one overdue sweep
type SweepReport struct {
	Day          string  `json:"day"`
	Scanned      int     `json:"scanned"`
	Transitioned []int64 `json:"transitioned"`
	Failed       int     `json:"failed"`
}

// markOverdue moves a pending, uncovered, past-due installment to overdue.
// Partial installments are left alone.
func markOverdue(inst *models.Installment, today time.Time) bool {
	if inst.Status != models.StatusPending || inst.IsCovered() || !inst.IsPastDue(today) {
		return false
	}
	next, ok := inst.Status.Next(models.EventDuePassed)
	if !ok {
		return false
	}
	inst.Status = next
	return true
}

// Sweep transitions stale pending installments to overdue. Each candidate is
// re-checked under its own row lock, so a payment that lands between listing
// and updating wins. Running it again on the same day changes nothing.
func (s *Service) Sweep(ctx context.Context, today time.Time) (*SweepReport, error) {
	ids, err := s.repo.ListOverdueCandidates(ctx, today)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{
		Day:          models.DateOf(today).Format("2006-01-02"),
		Scanned:      len(ids),
		Transitioned: make([]int64, 0),
	}
	students := make(map[int64]*models.Student)
	var errs []error

	for _, id := range ids {
		inst, changed, err := s.repo.UpdateInstallment(ctx, id, func(inst *models.Installment) (bool, error) {
			return markOverdue(inst, today), nil
		})
		if err != nil {
			s.log.Errorf("Sweep failed for installment %d: %v", id, err)
			report.Failed++
			errs = append(errs, fmt.Errorf("installment %d: %w", id, err))
			continue
		}
		if !changed {
			continue
		}
		report.Transitioned = append(report.Transitioned, inst.ID)

		student, ok := students[inst.StudentID]
		if !ok {
			student, err = s.repo.GetStudent(ctx, inst.StudentID)
			if err != nil {
				s.log.Errorf("Installment %d is overdue but student %d could not be loaded: %v", inst.ID, inst.StudentID, err)
				student = &models.Student{ID: inst.StudentID}
			}
			students[inst.StudentID] = student
		}

		s.emit(models.NewEvent(models.EventInstallmentOverdue, inst.StudentID, fmt.Sprintf("%d", inst.ID),
			map[string]interface{}{
				"student_name":   student.Name,
				"student_email":  student.Email,
				"installment_id": inst.ID,
				"number":         inst.Number,
				"due_date":       inst.DueDate.Format("2006-01-02"),
				"amount":         money.Format(inst.Amount),
				"outstanding":    money.Format(inst.Outstanding()),
			}, s.now()))
	}

	s.log.Infof("Overdue sweep for %s: scanned %d, transitioned %d, failed %d",
		report.Day, report.Scanned, len(report.Transitioned), report.Failed)
	return report, errors.Join(errs...)
}
