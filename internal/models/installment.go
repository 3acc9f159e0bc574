package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the lifecycle state of a scheduled installment
type InstallmentStatus string

const (
	StatusPending InstallmentStatus = "pending"
	StatusPartial InstallmentStatus = "partial"
	StatusPaid    InstallmentStatus = "paid"
	StatusOverdue InstallmentStatus = "overdue"
)

// StatusEvent is something that happens to an installment and may move its status
type StatusEvent string

const (
	EventPartialPayment StatusEvent = "partial_payment"
	EventFullPayment    StatusEvent = "full_payment"
	EventDuePassed      StatusEvent = "due_passed"
)

// statusTransitions is the complete set of allowed moves. A partial
// installment stays partial after its due date passes.
var statusTransitions = map[InstallmentStatus]map[StatusEvent]InstallmentStatus{
	StatusPending: {
		EventPartialPayment: StatusPartial,
		EventFullPayment:    StatusPaid,
		EventDuePassed:      StatusOverdue,
	},
	StatusPartial: {
		EventPartialPayment: StatusPartial,
		EventFullPayment:    StatusPaid,
	},
	StatusOverdue: {
		EventPartialPayment: StatusPartial,
		EventFullPayment:    StatusPaid,
	},
	StatusPaid: {},
}

// Next returns the status reached from s on event e, and false if the
// transition is not in the table.
func (s InstallmentStatus) Next(e StatusEvent) (InstallmentStatus, bool) {
	next, ok := statusTransitions[s][e]
	return next, ok
}

func (s InstallmentStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Scan implements sql.Scanner
func (s *InstallmentStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into InstallmentStatus", src)
	}
	st := InstallmentStatus(raw)
	if !st.Valid() {
		return fmt.Errorf("unknown installment status %q", raw)
	}
	*s = st
	return nil
}

// Value implements driver.Valuer
func (s InstallmentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown installment status %q", string(s))
	}
	return string(s), nil
}

// PaymentKind is how a payment was made
type PaymentKind string

const (
	PaymentCash   PaymentKind = "cash"
	PaymentCheque PaymentKind = "cheque"
)

// PaymentMethod carries optional payment metadata
type PaymentMethod struct {
	Kind          PaymentKind `json:"kind"`
	ChequeNumber  string      `json:"cheque_number,omitempty"`
	ClearanceDate *time.Time  `json:"clearance_date,omitempty"`
}

// Installment represents one scheduled fee payment of a student
type Installment struct {
	ID         int64             `json:"id"`
	StudentID  int64             `json:"student_id"`
	Number     int               `json:"number"`
	DueDate    time.Time         `json:"due_date"`
	Amount     decimal.Decimal   `json:"amount"`
	PaidAmount decimal.Decimal   `json:"paid_amount"`
	PaidDate   *time.Time        `json:"paid_date,omitempty"`
	Status     InstallmentStatus `json:"status"`
	Method     PaymentMethod     `json:"method"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Outstanding is the part of the expected amount not yet paid, never negative
func (i *Installment) Outstanding() decimal.Decimal {
	rest := i.Amount.Sub(i.PaidAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// IsCovered reports whether payments reach the expected amount
func (i *Installment) IsCovered() bool {
	return i.PaidAmount.GreaterThanOrEqual(i.Amount)
}

// IsPastDue reports whether the due date lies strictly before the day of today.
// Only calendar days are compared; the locations of the two times are ignored.
func (i *Installment) IsPastDue(today time.Time) bool {
	return civilDay(i.DueDate).Before(civilDay(today))
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to midnight in its own location
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
