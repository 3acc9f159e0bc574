package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Student holds the fee terms a student enrolled under
type Student struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	CenterID          int64           `json:"center_id"`
	CourseID          int64           `json:"course_id"`
	CourseFee         decimal.Decimal `json:"course_fee"`
	DownPayment       decimal.Decimal `json:"down_payment"`
	DownPaymentDate   *time.Time      `json:"down_payment_date,omitempty"`
	DownPaymentMethod PaymentMethod   `json:"down_payment_method"`
	EnrolledOn        time.Time       `json:"enrolled_on"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// LedgerSummary is the derived financial state of one student
type LedgerSummary struct {
	StudentID   int64           `json:"student_id"`
	TotalFees   decimal.Decimal `json:"total_fees"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Remaining   decimal.Decimal `json:"remaining"`
	IsFullyPaid bool            `json:"is_fully_paid"`
}

// FeesOverview aggregates ledger summaries across the students an actor can see
type FeesOverview struct {
	Students       []StudentLedger `json:"students"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	FullyPaid      int             `json:"fully_paid"`
	OverdueCount   int             `json:"overdue_count"`
}

// StudentLedger pairs a student with their summary for reporting
type StudentLedger struct {
	StudentID    int64         `json:"student_id"`
	StudentName  string        `json:"student_name"`
	CenterID     int64         `json:"center_id"`
	Summary      LedgerSummary `json:"summary"`
	OverdueCount int           `json:"overdue_count"`
}

// ActorScope limits which students a reporting query may see
type ActorScope struct {
	Admin    bool   `json:"admin"`
	CenterID *int64 `json:"center_id,omitempty"`
}

// Allows reports whether a student of the given center is visible
func (s ActorScope) Allows(centerID int64) bool {
	if s.Admin {
		return true
	}
	return s.CenterID != nil && *s.CenterID == centerID
}
