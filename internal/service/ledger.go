package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/repository"
	"github.com/Dan9191/institute-service/internal/utils"
	"github.com/Dan9191/institute-service/internal/utils/money"
	"github.com/shopspring/decimal"
)

// PaymentOutcome is the result of a recorded payment. Warning is set when the
// payment was stored but pushed the ledger past the course fee.
type PaymentOutcome struct {
	Installment models.Installment   `json:"installment"`
	Summary     models.LedgerSummary `json:"summary"`
	Warning     error                `json:"-"`
}

// FeeAdjustment is the result of changing a student's fee terms
type FeeAdjustment struct {
	Summary models.LedgerSummary `json:"summary"`
	Warning error                `json:"-"`
}

func isWholePaise(d decimal.Decimal) bool {
	return d.Equal(d.Round(money.Scale))
}

func validateFeeTerms(feeTotal, downPayment decimal.Decimal) error {
	switch {
	case feeTotal.IsNegative():
		return &InvalidScheduleError{Reason: "course fee must not be negative"}
	case downPayment.IsNegative():
		return &InvalidScheduleError{Reason: "down payment must not be negative"}
	case downPayment.GreaterThan(feeTotal):
		return &InvalidScheduleError{Reason: "down payment exceeds course fee"}
	case !isWholePaise(feeTotal) || !isWholePaise(downPayment):
		return &InvalidScheduleError{Reason: "amounts must be whole paise"}
	}
	return nil
}

// PlanInstallments splits feeTotal-downPayment into count pending
// installments due monthly after startDate. Every installment but the last
// gets the truncated even share; the last one absorbs the remainder.
func PlanInstallments(feeTotal, downPayment decimal.Decimal, count int, startDate time.Time) ([]models.Installment, error) {
	if count < 0 {
		return nil, &InvalidScheduleError{Reason: fmt.Sprintf("installment count %d is negative", count)}
	}
	if err := validateFeeTerms(feeTotal, downPayment); err != nil {
		return nil, err
	}

	items := make([]models.Installment, 0, count)
	if count == 0 {
		return items, nil
	}

	remaining := feeTotal.Sub(downPayment)
	base := remaining.Div(decimal.NewFromInt(int64(count))).Truncate(money.Scale)
	last := remaining.Sub(base.Mul(decimal.NewFromInt(int64(count - 1))))

	for i := 1; i <= count; i++ {
		amount := base
		if i == count {
			amount = last
		}
		items = append(items, models.Installment{
			Number:     i,
			DueDate:    models.DateOf(utils.AddMonths(startDate, i)),
			Amount:     amount,
			PaidAmount: decimal.Zero,
			Status:     models.StatusPending,
		})
	}
	return items, nil
}

// ScheduleInstallments generates and stores the installment plan of a student
func (s *Service) ScheduleInstallments(ctx context.Context, scope models.ActorScope, studentID int64, feeTotal, downPayment decimal.Decimal, count int, startDate time.Time) ([]models.Installment, error) {
	items, err := PlanInstallments(feeTotal, downPayment, count, startDate)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleStudent(ctx, scope, studentID); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateSchedule(ctx, studentID, feeTotal, downPayment, items)
	if errors.Is(err, repository.ErrScheduleExists) {
		return nil, &InvalidScheduleError{Reason: fmt.Sprintf("student %d already has an installment schedule", studentID)}
	}
	if err != nil {
		return nil, err
	}

	s.log.Infof("Scheduled %d installments for student %d (fee %s, down payment %s)",
		len(created), studentID, money.Format(feeTotal), money.Format(downPayment))
	return created, nil
}

// AdjustFees is the explicit fee-adjustment action. It keeps the schedule as
// is and warns when existing payments now exceed the new fee.
func (s *Service) AdjustFees(ctx context.Context, scope models.ActorScope, studentID int64, courseFee, downPayment decimal.Decimal) (*FeeAdjustment, error) {
	if err := validateFeeTerms(courseFee, downPayment); err != nil {
		return nil, err
	}
	if _, err := s.visibleStudent(ctx, scope, studentID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStudentFees(ctx, studentID, courseFee, downPayment); err != nil {
		return nil, err
	}

	student, items, err := s.ledger(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	summary := Summarize(student, items)
	s.log.Infof("Fees adjusted for student %d: fee %s, down payment %s", studentID, money.Format(courseFee), money.Format(downPayment))
	return &FeeAdjustment{Summary: summary, Warning: checkConsistency(student, items)}, nil
}

func validatePayment(installmentID int64, amount decimal.Decimal, method models.PaymentMethod) error {
	if !amount.IsPositive() {
		return &InvalidPaymentError{InstallmentID: installmentID, Reason: "amount must be positive"}
	}
	if !isWholePaise(amount) {
		return &InvalidPaymentError{InstallmentID: installmentID, Reason: "amount must be whole paise"}
	}
	switch method.Kind {
	case models.PaymentCash:
	case models.PaymentCheque:
		if method.ChequeNumber == "" {
			return &InvalidPaymentError{InstallmentID: installmentID, Reason: "cheque payments need a cheque number"}
		}
	default:
		return &InvalidPaymentError{InstallmentID: installmentID, Reason: fmt.Sprintf("unknown payment method %q", method.Kind)}
	}
	return nil
}

// applyPayment adds amount to inst and advances its status
func applyPayment(inst *models.Installment, amount decimal.Decimal, method models.PaymentMethod, paidOn time.Time) error {
	if inst.Status == models.StatusPaid || inst.IsCovered() {
		return &InvalidPaymentError{InstallmentID: inst.ID, Reason: "installment is already fully paid"}
	}

	paid := money.Add(inst.PaidAmount, amount)
	event := models.EventPartialPayment
	if paid.GreaterThanOrEqual(inst.Amount) {
		event = models.EventFullPayment
	}
	next, ok := inst.Status.Next(event)
	if !ok {
		return &InvalidPaymentError{InstallmentID: inst.ID, Reason: fmt.Sprintf("cannot apply %s to a %s installment", event, inst.Status)}
	}

	day := models.DateOf(paidOn)
	inst.PaidAmount = paid
	inst.PaidDate = &day
	inst.Method = method
	inst.Status = next
	return nil
}

// RecordPayment adds a payment to an installment under a per-installment
// lock and emits payment_recorded once the change is stored.
func (s *Service) RecordPayment(ctx context.Context, scope models.ActorScope, installmentID int64, amount decimal.Decimal, method models.PaymentMethod, paidOn time.Time) (*PaymentOutcome, error) {
	if method.Kind == "" {
		method.Kind = models.PaymentCash
	}
	if err := validatePayment(installmentID, amount, method); err != nil {
		return nil, err
	}

	current, err := s.repo.GetInstallment(ctx, installmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &InvalidPaymentError{InstallmentID: installmentID, Reason: "installment does not exist"}
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleStudent(ctx, scope, current.StudentID); err != nil {
		return nil, err
	}

	inst, _, err := s.repo.UpdateInstallment(ctx, installmentID, func(inst *models.Installment) (bool, error) {
		if err := applyPayment(inst, amount, method, paidOn); err != nil {
			return false, err
		}
		return true, nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &InvalidPaymentError{InstallmentID: installmentID, Reason: "installment does not exist"}
	}
	if err != nil {
		return nil, err
	}

	student, items, err := s.ledger(ctx, scope, inst.StudentID)
	if err != nil {
		return nil, fmt.Errorf("payment recorded but ledger reload failed: %w", err)
	}
	outcome := &PaymentOutcome{
		Installment: *inst,
		Summary:     Summarize(student, items),
		Warning:     checkConsistency(student, items),
	}
	if outcome.Warning != nil {
		s.log.Warnf("Ledger inconsistency after payment on installment %d: %v", inst.ID, outcome.Warning)
	}

	s.log.Infof("Payment of %s recorded on installment %d (student %d), status %s",
		money.Format(amount), inst.ID, inst.StudentID, inst.Status)
	s.emit(models.NewEvent(models.EventPaymentRecorded, student.ID,
		fmt.Sprintf("%d:%s", inst.ID, money.Format(inst.PaidAmount)),
		map[string]interface{}{
			"student_name":   student.Name,
			"student_email":  student.Email,
			"installment_id": inst.ID,
			"number":         inst.Number,
			"amount":         money.Format(amount),
			"paid_amount":    money.Format(inst.PaidAmount),
			"status":         string(inst.Status),
			"remaining":      money.Format(outcome.Summary.Remaining),
			"paid_on":        inst.PaidDate.Format("2006-01-02"),
		}, s.now()))
	return outcome, nil
}

// ledger loads a student visible to scope with their installments
func (s *Service) ledger(ctx context.Context, scope models.ActorScope, studentID int64) (*models.Student, []models.Installment, error) {
	student, err := s.visibleStudent(ctx, scope, studentID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repo.ListInstallments(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	return student, items, nil
}

func totalPaid(student *models.Student, items []models.Installment) decimal.Decimal {
	paid := make([]decimal.Decimal, 0, len(items)+1)
	paid = append(paid, student.DownPayment)
	for _, inst := range items {
		paid = append(paid, inst.PaidAmount)
	}
	return money.Sum(paid...)
}

func checkConsistency(student *models.Student, items []models.Installment) error {
	paid := totalPaid(student, items)
	if paid.GreaterThan(money.Add(student.CourseFee, money.Tolerance)) {
		return &InconsistentLedgerError{StudentID: student.ID, CourseFee: student.CourseFee, TotalPaid: paid}
	}
	return nil
}

// Summarize derives the ledger summary of a student
func Summarize(student *models.Student, items []models.Installment) models.LedgerSummary {
	paid := totalPaid(student, items)
	remaining := money.ClampNonNegative(money.Sub(student.CourseFee, paid))
	return models.LedgerSummary{
		StudentID:   student.ID,
		TotalFees:   student.CourseFee,
		TotalPaid:   paid,
		Remaining:   remaining,
		IsFullyPaid: remaining.IsZero(),
	}
}

// Summarize returns {totalFees, totalPaid, remaining, isFullyPaid} for a student
func (s *Service) Summarize(ctx context.Context, scope models.ActorScope, studentID int64) (*models.LedgerSummary, error) {
	student, items, err := s.ledger(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	summary := Summarize(student, items)
	return &summary, nil
}

// Installments returns the schedule of a student
func (s *Service) Installments(ctx context.Context, scope models.ActorScope, studentID int64) ([]models.Installment, error) {
	if _, err := s.visibleStudent(ctx, scope, studentID); err != nil {
		return nil, err
	}
	return s.repo.ListInstallments(ctx, studentID)
}

func describeMethod(m models.PaymentMethod) string {
	if m.Kind == models.PaymentCheque {
		desc := "Cheque No. " + m.ChequeNumber
		if m.ClearanceDate != nil {
			desc += " (cleared " + m.ClearanceDate.Format("2006-01-02") + ")"
		}
		return desc
	}
	return "Cash"
}

// BuildReceipt derives the receipt of an installment payment. It only reads,
// so it can be rebuilt any number of times.
func (s *Service) BuildReceipt(ctx context.Context, scope models.ActorScope, installmentID int64) (*models.Receipt, error) {
	inst, err := s.repo.GetInstallment(ctx, installmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &InvalidPaymentError{InstallmentID: installmentID, Reason: "installment does not exist"}
	}
	if err != nil {
		return nil, err
	}
	student, items, err := s.ledger(ctx, scope, inst.StudentID)
	if err != nil {
		return nil, err
	}
	if !inst.PaidAmount.IsPositive() {
		return nil, &InvalidPaymentError{InstallmentID: installmentID, Reason: "no payment recorded"}
	}

	others := make([]decimal.Decimal, 0, len(items)+1)
	others = append(others, student.DownPayment)
	for _, other := range items {
		if other.ID != inst.ID {
			others = append(others, other.PaidAmount)
		}
	}
	previous := money.Sum(others...)
	after := money.Add(previous, inst.PaidAmount)

	paidOn := inst.UpdatedAt
	if inst.PaidDate != nil {
		paidOn = *inst.PaidDate
	}

	return &models.Receipt{
		ReceiptNumber:        money.ReceiptNumber(money.ReceiptInstallment, inst.ID, paidOn.Year()),
		TotalFees:            student.CourseFee,
		TotalPreviousPaid:    previous,
		CurrentPaymentAmount: inst.PaidAmount,
		TotalPaidAfter:       after,
		BalanceAmount:        money.ClampNonNegative(money.Sub(student.CourseFee, after)),
		AmountInWords:        money.AmountInWords(inst.PaidAmount),
		PaymentMethod:        describeMethod(inst.Method),
		PaymentType:          fmt.Sprintf("Installment %d of %d", inst.Number, len(items)),
		StudentName:          student.Name,
		PaymentDate:          paidOn.Format("2006-01-02"),
	}, nil
}

// BuildDownPaymentReceipt derives the receipt of a student's down payment
func (s *Service) BuildDownPaymentReceipt(ctx context.Context, scope models.ActorScope, studentID int64) (*models.Receipt, error) {
	student, err := s.visibleStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	if !student.DownPayment.IsPositive() {
		return nil, &InvalidPaymentError{Reason: fmt.Sprintf("student %d has no down payment", studentID)}
	}

	paidOn := student.EnrolledOn
	if student.DownPaymentDate != nil {
		paidOn = *student.DownPaymentDate
	}
	method := student.DownPaymentMethod
	if method.Kind == "" {
		method.Kind = models.PaymentCash
	}

	return &models.Receipt{
		ReceiptNumber:        money.ReceiptNumber(money.ReceiptDownPayment, student.ID, paidOn.Year()),
		TotalFees:            student.CourseFee,
		TotalPreviousPaid:    decimal.Zero,
		CurrentPaymentAmount: student.DownPayment,
		TotalPaidAfter:       student.DownPayment,
		BalanceAmount:        money.ClampNonNegative(money.Sub(student.CourseFee, student.DownPayment)),
		AmountInWords:        money.AmountInWords(student.DownPayment),
		PaymentMethod:        describeMethod(method),
		PaymentType:          "Down Payment",
		StudentName:          student.Name,
		PaymentDate:          paidOn.Format("2006-01-02"),
	}, nil
}

// FeesOverview reports ledgers of the students visible to scope
func (s *Service) FeesOverview(ctx context.Context, scope models.ActorScope) (*models.FeesOverview, error) {
	students, err := s.repo.ListStudents(ctx, scope)
	if err != nil {
		return nil, err
	}

	overview := &models.FeesOverview{
		Students:       make([]models.StudentLedger, 0, len(students)),
		TotalFees:      decimal.Zero,
		TotalCollected: decimal.Zero,
		TotalRemaining: decimal.Zero,
	}
	for i := range students {
		student := &students[i]
		items, err := s.repo.ListInstallments(ctx, student.ID)
		if err != nil {
			return nil, err
		}
		summary := Summarize(student, items)
		overdue := 0
		for _, inst := range items {
			if inst.Status == models.StatusOverdue {
				overdue++
			}
		}

		overview.Students = append(overview.Students, models.StudentLedger{
			StudentID:    student.ID,
			StudentName:  student.Name,
			CenterID:     student.CenterID,
			Summary:      summary,
			OverdueCount: overdue,
		})
		overview.TotalFees = money.Add(overview.TotalFees, summary.TotalFees)
		overview.TotalCollected = money.Add(overview.TotalCollected, summary.TotalPaid)
		overview.TotalRemaining = money.Add(overview.TotalRemaining, summary.Remaining)
		overview.OverdueCount += overdue
		if summary.IsFullyPaid {
			overview.FullyPaid++
		}
	}
	return overview, nil
}
