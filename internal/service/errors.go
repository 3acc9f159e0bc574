package service

import (
	"fmt"

	"github.com/Dan9191/institute-service/internal/utils/money"
	"github.com/shopspring/decimal"
)

// InvalidScheduleError rejects installment plan parameters before anything is stored
type InvalidScheduleError struct {
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return "invalid installment schedule: " + e.Reason
}

// InvalidPaymentError rejects a payment without mutating the ledger
type InvalidPaymentError struct {
	InstallmentID int64
	Reason        string
}

func (e *InvalidPaymentError) Error() string {
	if e.InstallmentID == 0 {
		return "invalid payment: " + e.Reason
	}
	return fmt.Sprintf("invalid payment for installment %d: %s", e.InstallmentID, e.Reason)
}

// InconsistentLedgerError reports payments exceeding the course fee. The
// mutation that revealed it has already been stored.
type InconsistentLedgerError struct {
	StudentID int64
	CourseFee decimal.Decimal
	TotalPaid decimal.Decimal
}

func (e *InconsistentLedgerError) Error() string {
	return fmt.Sprintf("student %d has paid %s against a course fee of %s (excess %s)",
		e.StudentID, money.Format(e.TotalPaid), money.Format(e.CourseFee), money.Format(e.Excess()))
}

// Excess is the amount paid beyond the course fee
func (e *InconsistentLedgerError) Excess() decimal.Decimal {
	return money.ClampNonNegative(money.Sub(e.TotalPaid, e.CourseFee))
}

// NotEligibleError is returned when a certificate is requested for a student who has not passed
type NotEligibleError struct {
	StudentID int64
	CourseID  int64
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("student %d is not eligible for a certificate in course %d", e.StudentID, e.CourseID)
}
