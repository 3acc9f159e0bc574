package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a notification emitted by the ledger or the certificate engine
type EventType string

const (
	EventPaymentRecorded     EventType = "payment_recorded"
	EventInstallmentOverdue  EventType = "installment_overdue"
	EventCertificateEligible EventType = "certificate_eligible"
)

// eventNamespace seeds name-based event ids
var eventNamespace = uuid.MustParse("6f1c2a4e-3b7d-4c1e-9a52-0d8e7f3b2c11")

// Event is handed to the notification collaborator
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       EventType              `json:"type"`
	StudentID  int64                  `json:"student_id"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewEvent builds an event whose id is derived from its type, student and
// key, so a redelivered event keeps the id of the original. key only has to
// be unique per student.
func NewEvent(t EventType, studentID int64, key string, payload map[string]interface{}, at time.Time) Event {
	name := fmt.Sprintf("%s:%d:%s", t, studentID, key)
	return Event{
		ID:         uuid.NewSHA1(eventNamespace, []byte(name)),
		Type:       t,
		StudentID:  studentID,
		Payload:    payload,
		OccurredAt: at,
	}
}
