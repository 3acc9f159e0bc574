package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CertificateBasis tells where a certificate percentage came from
type CertificateBasis string

const (
	// BasisMeasured means the percentage was aggregated from exam results
	BasisMeasured CertificateBasis = "measured"
	// BasisPolicy means an auto-certificate course had no results and the
	// passing percentage is shown instead
	BasisPolicy CertificateBasis = "policy"
)

// Eligibility is the decision of the certificate resolver
type Eligibility struct {
	Eligible   bool             `json:"eligible"`
	IsPassed   bool             `json:"is_passed"`
	Percentage decimal.Decimal  `json:"percentage"`
	Grade      string           `json:"grade"`
	IssuedOn   *time.Time       `json:"issued_on,omitempty"`
	Basis      CertificateBasis `json:"basis,omitempty"`
}

// Certificate is the data handed to the certificate renderer
type Certificate struct {
	Eligibility
	ID               int64     `json:"id,omitempty"`
	StudentID        int64     `json:"student_id"`
	StudentName      string    `json:"student_name"`
	CourseID         int64     `json:"course_id"`
	CourseName       string    `json:"course_name"`
	VerificationCode string    `json:"verification_code,omitempty"`
	ManuallyIssued   bool      `json:"manually_issued"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}
