package service

import (
	"context"
	"sort"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/utils/money"
	"github.com/shopspring/decimal"
)

var defaultTotalPoints = decimal.NewFromInt(100)

// resultTotal is total_points, or 100 when missing or not positive
func resultTotal(res models.ExamResult) decimal.Decimal {
	if res.TotalPoints.Valid && res.TotalPoints.Decimal.IsPositive() {
		return res.TotalPoints.Decimal
	}
	return defaultTotalPoints
}

// resultEarned is points_earned, falling back to score, then zero
func resultEarned(res models.ExamResult) decimal.Decimal {
	switch {
	case res.PointsEarned.Valid:
		return res.PointsEarned.Decimal
	case res.Score.Valid:
		return res.Score.Decimal
	}
	return decimal.Zero
}

type categoryKey struct {
	set bool
	id  int64
}

func keyOf(res models.ExamResult) categoryKey {
	if res.CategoryID == nil {
		return categoryKey{}
	}
	return categoryKey{set: true, id: *res.CategoryID}
}

// sortNewestFirst orders results by submission time, then id, descending
func sortNewestFirst(results []models.ExamResult) []models.ExamResult {
	sorted := make([]models.ExamResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].SubmittedAt.Equal(sorted[j].SubmittedAt) {
			return sorted[i].SubmittedAt.After(sorted[j].SubmittedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted
}

// AggregateResults keeps the latest attempt per category and combines them
// into one percentage. The input order does not matter.
func AggregateResults(results []models.ExamResult) models.ScoreSummary {
	if len(results) == 0 {
		return models.ScoreSummary{OverallPercentage: decimal.Zero}
	}

	sorted := sortNewestFirst(results)
	seen := make(map[categoryKey]bool)
	total, earned := decimal.Zero, decimal.Zero
	for _, res := range sorted {
		key := keyOf(res)
		if seen[key] {
			continue
		}
		seen[key] = true
		total = total.Add(resultTotal(res))
		earned = earned.Add(resultEarned(res))
	}

	issued := sorted[0].SubmittedAt
	return models.ScoreSummary{
		OverallPercentage: money.Percentage(earned, total),
		IssuedOn:          &issued,
		HasResults:        true,
	}
}

// Aggregate computes the overall score of a student in a course
func (s *Service) Aggregate(ctx context.Context, scope models.ActorScope, studentID, courseID int64) (*models.ScoreSummary, error) {
	if _, err := s.visibleStudent(ctx, scope, studentID); err != nil {
		return nil, err
	}
	results, err := s.repo.ListExamResults(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	summary := AggregateResults(results)
	return &summary, nil
}

// ExamResults lists every attempt of a student in a course with its grade
func (s *Service) ExamResults(ctx context.Context, scope models.ActorScope, studentID, courseID int64) ([]models.GradedResult, error) {
	if _, err := s.visibleStudent(ctx, scope, studentID); err != nil {
		return nil, err
	}
	results, err := s.repo.ListExamResults(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}

	graded := make([]models.GradedResult, 0, len(results))
	for _, res := range sortNewestFirst(results) {
		pct := money.Percentage(resultEarned(res), resultTotal(res))
		if res.Percentage.Valid {
			pct = res.Percentage.Decimal.Round(2)
		}
		graded = append(graded, models.GradedResult{
			ExamResult:         res,
			ComputedPercentage: pct,
			Grade:              Grade(pct),
		})
	}
	return graded, nil
}
