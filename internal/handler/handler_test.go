package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/institute-service/internal/config"
	"github.com/Dan9191/institute-service/internal/integrations/docrender"
	"github.com/Dan9191/institute-service/internal/middleware"
	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/repository"
	"github.com/Dan9191/institute-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-secret"

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(_ context.Context, r *models.Receipt) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF " + r.ReceiptNumber), nil
}

type fixture struct {
	router   *mux.Router
	repo     *repository.MemoryRepository
	renderer *fakeRenderer
	admin    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{JWTSecret: secret, CertificateSecret: "cert-secret"}
	repo := repository.NewMemoryRepository()
	svc := service.NewService(repo, logger, nil, cfg)
	renderer := &fakeRenderer{}
	h := NewHandler(svc, renderer, logger)
	h.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }

	router := mux.NewRouter()
	api := router.PathPrefix("/").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))
	h.Register(api)

	admin, err := middleware.IssueToken(secret, "admin", middleware.RoleAdmin, nil, time.Hour)
	require.NoError(t, err)
	return &fixture{router: router, repo: repo, renderer: renderer, admin: admin}
}

func (f *fixture) do(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func (f *fixture) enroll(t *testing.T) (models.Student, []models.Installment) {
	t.Helper()
	student := f.repo.AddStudent(models.Student{Name: "Ravi Kumar", CenterID: 3, EnrolledOn: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	rec := f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/students/%d/schedule", student.ID), map[string]interface{}{
		"course_fee":   "12000",
		"down_payment": "2000",
		"installments": 5,
		"start_date":   "2024-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var items []models.Installment
	decodeBody(t, rec, &items)
	require.Len(t, items, 5)
	return student, items
}

func TestRequiresToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "", http.MethodGet, "/fees/overview", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScheduleAndPay(t *testing.T) {
	f := newFixture(t)
	student, items := f.enroll(t)

	rec := f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/installments/%d/payments", items[0].ID), map[string]interface{}{
		"amount":  "2000",
		"method":  "cash",
		"paid_on": "2024-02-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paid struct {
		Installment models.Installment   `json:"installment"`
		Summary     models.LedgerSummary `json:"summary"`
		Warning     string               `json:"warning"`
	}
	decodeBody(t, rec, &paid)
	assert.Equal(t, models.StatusPaid, paid.Installment.Status)
	assert.True(t, paid.Summary.Remaining.Equal(decimal.NewFromInt(8000)))
	assert.Empty(t, paid.Warning)

	rec = f.do(t, f.admin, http.MethodGet, fmt.Sprintf("/students/%d/ledger", student.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ledger struct {
		Summary      models.LedgerSummary `json:"summary"`
		Installments []models.Installment `json:"installments"`
	}
	decodeBody(t, rec, &ledger)
	assert.True(t, ledger.Summary.TotalPaid.Equal(decimal.NewFromInt(4000)))
	assert.Len(t, ledger.Installments, 5)

	rec = f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/students/%d/schedule", student.ID), map[string]interface{}{
		"course_fee": "12000", "down_payment": "2000", "installments": 5,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPaymentErrors(t *testing.T) {
	f := newFixture(t)
	_, items := f.enroll(t)
	path := fmt.Sprintf("/installments/%d/payments", items[0].ID)

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"negative amount", path, map[string]interface{}{"amount": "-5"}, http.StatusUnprocessableEntity},
		{"cheque without number", path, map[string]interface{}{"amount": "5", "method": "cheque"}, http.StatusBadRequest},
		{"unknown method", path, map[string]interface{}{"amount": "5", "method": "upi"}, http.StatusBadRequest},
		{"bad date", path, map[string]interface{}{"amount": "5", "paid_on": "01/02/2024"}, http.StatusBadRequest},
		{"unknown field", path, map[string]interface{}{"amount": "5", "tip": "1"}, http.StatusBadRequest},
		{"missing installment", "/installments/9999/payments", map[string]interface{}{"amount": "5"}, http.StatusUnprocessableEntity},
		{"non-numeric amount", path, map[string]interface{}{"amount": "five"}, http.StatusBadRequest},
		{"missing amount", path, map[string]interface{}{"method": "cash"}, http.StatusBadRequest},
		{"sub-paisa amount", path, map[string]interface{}{"amount": "5.005"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, f.admin, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestOverpaymentWarning(t *testing.T) {
	f := newFixture(t)
	student, items := f.enroll(t)

	rec := f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/students/%d/fees", student.ID), map[string]interface{}{
		"course_fee": "3000", "down_payment": "2000",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/installments/%d/payments", items[0].ID), map[string]interface{}{
		"amount": "2000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Warning string `json:"warning"`
	}
	decodeBody(t, rec, &out)
	assert.Contains(t, out.Warning, "excess 1000.00")
}

func TestReceiptFormats(t *testing.T) {
	f := newFixture(t)
	student, items := f.enroll(t)
	rec := f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/installments/%d/payments", items[0].ID), map[string]interface{}{
		"amount": "2000", "paid_on": "2024-02-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	receiptPath := fmt.Sprintf("/installments/%d/receipt", items[0].ID)

	rec = f.do(t, f.admin, http.MethodGet, receiptPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var receipt models.Receipt
	decodeBody(t, rec, &receipt)
	assert.Equal(t, fmt.Sprintf("RCP-2024-%06d", items[0].ID), receipt.ReceiptNumber)
	assert.Equal(t, "Two Thousand", receipt.AmountInWords)

	rec = f.do(t, f.admin, http.MethodGet, receiptPath+"?format=xml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Receipt number=")

	rec = f.do(t, f.admin, http.MethodGet, receiptPath+"?format=pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF "+receipt.ReceiptNumber, rec.Body.String())

	f.renderer.err = docrender.ErrNotConfigured
	rec = f.do(t, f.admin, http.MethodGet, receiptPath+"?format=pdf", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = f.do(t, f.admin, http.MethodGet, receiptPath+"?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, f.admin, http.MethodGet, fmt.Sprintf("/installments/%d/receipt", items[1].ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, f.admin, http.MethodGet, fmt.Sprintf("/students/%d/down-payment/receipt", student.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &receipt)
	assert.Equal(t, fmt.Sprintf("RCP-DP-2024-%06d", student.ID), receipt.ReceiptNumber)
}

func TestOverviewAndSweepScope(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	f.repo.AddStudent(models.Student{Name: "Other Center", CenterID: 9})

	center := int64(3)
	staff, err := middleware.IssueToken(secret, "staff", "staff", &center, time.Hour)
	require.NoError(t, err)

	rec := f.do(t, staff, http.MethodGet, "/fees/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var overview models.FeesOverview
	decodeBody(t, rec, &overview)
	require.Len(t, overview.Students, 1)
	assert.Equal(t, "Ravi Kumar", overview.Students[0].StudentName)

	rec = f.do(t, f.admin, http.MethodGet, "/fees/overview", nil)
	decodeBody(t, rec, &overview)
	assert.Len(t, overview.Students, 2)

	rec = f.do(t, staff, http.MethodPost, "/sweep", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, f.admin, http.MethodPost, "/sweep?day=2024-03-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report service.SweepReport
	decodeBody(t, rec, &report)
	assert.Equal(t, "2024-03-15", report.Day)
	assert.Len(t, report.Transitioned, 2)

	rec = f.do(t, f.admin, http.MethodPost, "/sweep?day=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResultsAndCertificate(t *testing.T) {
	f := newFixture(t)
	student := f.repo.AddStudent(models.Student{Name: "Kiran", EnrolledOn: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)})
	auto := f.repo.AddCourse(models.Course{Name: "DTP", AutoCertificate: true, PassingPercentage: decimal.NewNullDecimal(decimal.NewFromInt(80))})
	manual := f.repo.AddCourse(models.Course{Name: "Hardware"})
	category := int64(1)
	f.repo.AddExamResult(models.ExamResult{
		StudentID: student.ID, CourseID: auto.ID, CategoryID: &category,
		TotalPoints:  decimal.NewNullDecimal(decimal.NewFromInt(50)),
		PointsEarned: decimal.NewNullDecimal(decimal.NewFromInt(45)),
		SubmittedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	})

	rec := f.do(t, f.admin, http.MethodGet, fmt.Sprintf("/students/%d/courses/%d/results", student.ID, auto.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results struct {
		Summary models.ScoreSummary   `json:"summary"`
		Results []models.GradedResult `json:"results"`
	}
	decodeBody(t, rec, &results)
	assert.True(t, results.Summary.OverallPercentage.Equal(decimal.NewFromInt(90)))
	require.Len(t, results.Results, 1)
	assert.Equal(t, "A+", results.Results[0].Grade)

	rec = f.do(t, f.admin, http.MethodGet, fmt.Sprintf("/students/%d/courses/%d/certificate", student.ID, auto.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cert models.Certificate
	decodeBody(t, rec, &cert)
	assert.True(t, cert.Eligible)
	assert.Equal(t, "DTP", cert.CourseName)

	rec = f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/students/%d/courses/%d/certificate", student.ID, manual.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, f.admin, http.MethodGet, fmt.Sprintf("/students/%d/courses/%d/certificate", student.ID, 9999), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBadFeeAmounts(t *testing.T) {
	f := newFixture(t)
	student := f.repo.AddStudent(models.Student{Name: "Asha", CenterID: 3, EnrolledOn: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})

	rec := f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/students/%d/schedule", student.ID), map[string]interface{}{
		"course_fee": "12k", "installments": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "course_fee")

	rec = f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/students/%d/fees", student.ID), map[string]interface{}{
		"course_fee": "5000", "down_payment": "1,000",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "down_payment")

	rec = f.do(t, f.admin, http.MethodPost, fmt.Sprintf("/students/%d/schedule", student.ID), map[string]interface{}{
		"course_fee": "3000", "installments": 3,
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestOtherCenterGetsNotFound(t *testing.T) {
	f := newFixture(t)
	student, items := f.enroll(t)
	course := f.repo.AddCourse(models.Course{Name: "DTP", AutoCertificate: true})
	score := decimal.NewNullDecimal(decimal.NewFromInt(90))
	f.repo.AddExamResult(models.ExamResult{StudentID: student.ID, CourseID: course.ID, TotalPoints: decimal.NewNullDecimal(decimal.NewFromInt(100)), PointsEarned: score, SubmittedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})

	center := int64(99)
	outsider, err := middleware.IssueToken(secret, "staff-99", "staff", &center, time.Hour)
	require.NoError(t, err)

	payment := map[string]interface{}{"amount": "100"}
	tests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, fmt.Sprintf("/students/%d/ledger", student.ID), nil},
		{http.MethodPost, fmt.Sprintf("/installments/%d/payments", items[0].ID), payment},
		{http.MethodGet, fmt.Sprintf("/installments/%d/receipt", items[0].ID), nil},
		{http.MethodGet, fmt.Sprintf("/students/%d/down-payment/receipt", student.ID), nil},
		{http.MethodPost, fmt.Sprintf("/students/%d/fees", student.ID), map[string]interface{}{"course_fee": "1"}},
		{http.MethodGet, fmt.Sprintf("/students/%d/courses/%d/results", student.ID, course.ID), nil},
		{http.MethodGet, fmt.Sprintf("/students/%d/courses/%d/certificate", student.ID, course.ID), nil},
		{http.MethodPost, fmt.Sprintf("/students/%d/courses/%d/certificate", student.ID, course.ID), nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := f.do(t, outsider, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		})
	}

	stored, err := f.repo.GetInstallment(context.Background(), items[0].ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.IsZero())
	assert.Equal(t, models.StatusPending, stored.Status)

	home := int64(3)
	staff, err := middleware.IssueToken(secret, "staff-3", "staff", &home, time.Hour)
	require.NoError(t, err)
	rec := f.do(t, staff, http.MethodPost, fmt.Sprintf("/installments/%d/payments", items[0].ID), payment)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
