package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course carries the certificate policy of a course
type Course struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	AutoCertificate   bool                `json:"auto_certificate"`
	PassingPercentage decimal.NullDecimal `json:"passing_percentage"`
}

// ExamResult is one submitted exam attempt of a student
type ExamResult struct {
	ID           int64               `json:"id"`
	StudentID    int64               `json:"student_id"`
	ExamID       int64               `json:"exam_id"`
	CourseID     int64               `json:"course_id"`
	CategoryID   *int64              `json:"category_id,omitempty"`
	TotalPoints  decimal.NullDecimal `json:"total_points"`
	PointsEarned decimal.NullDecimal `json:"points_earned"`
	Score        decimal.NullDecimal `json:"score"`
	Percentage   decimal.NullDecimal `json:"percentage"`
	SubmittedAt  time.Time           `json:"submitted_at"`
}

// ScoreSummary is the aggregated score of a student in a course
type ScoreSummary struct {
	OverallPercentage decimal.Decimal `json:"overall_percentage"`
	IssuedOn          *time.Time      `json:"issued_on,omitempty"`
	HasResults        bool            `json:"has_results"`
}

// GradedResult is an exam result as shown on the results page
type GradedResult struct {
	ExamResult
	ComputedPercentage decimal.Decimal `json:"computed_percentage"`
	Grade              string          `json:"grade"`
}
