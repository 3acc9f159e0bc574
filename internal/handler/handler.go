package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/institute-service/internal/integrations/docrender"
	"github.com/Dan9191/institute-service/internal/middleware"
	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/repository"
	"github.com/Dan9191/institute-service/internal/service"
	"github.com/Dan9191/institute-service/internal/utils/money"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// Renderer turns a receipt into a printable document
type Renderer interface {
	Render(ctx context.Context, r *models.Receipt) ([]byte, error)
}

type Handler struct {
	svc      *service.Service
	renderer Renderer
	validate *validator.Validate
	log      *logrus.Logger
	now      func() time.Time
}

func NewHandler(svc *service.Service, renderer Renderer, log *logrus.Logger) *Handler {
	return &Handler{
		svc:      svc,
		renderer: renderer,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

// Register mounts every route on r
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/students/{id:[0-9]+}/schedule", h.ScheduleInstallments).Methods(http.MethodPost)
	r.HandleFunc("/students/{id:[0-9]+}/fees", h.AdjustFees).Methods(http.MethodPost)
	r.HandleFunc("/students/{id:[0-9]+}/ledger", h.Ledger).Methods(http.MethodGet)
	r.HandleFunc("/students/{id:[0-9]+}/down-payment/receipt", h.DownPaymentReceipt).Methods(http.MethodGet)
	r.HandleFunc("/installments/{id:[0-9]+}/payments", h.RecordPayment).Methods(http.MethodPost)
	r.HandleFunc("/installments/{id:[0-9]+}/receipt", h.Receipt).Methods(http.MethodGet)
	r.HandleFunc("/fees/overview", h.FeesOverview).Methods(http.MethodGet)
	r.HandleFunc("/sweep", h.Sweep).Methods(http.MethodPost)
	r.HandleFunc("/students/{id:[0-9]+}/courses/{courseId:[0-9]+}/results", h.ExamResults).Methods(http.MethodGet)
	r.HandleFunc("/students/{id:[0-9]+}/courses/{courseId:[0-9]+}/certificate", h.Certificate).Methods(http.MethodGet)
	r.HandleFunc("/students/{id:[0-9]+}/courses/{courseId:[0-9]+}/certificate", h.IssueCertificate).Methods(http.MethodPost)
}

// Amounts travel as decimal strings, e.g. "1250.50"
type scheduleRequest struct {
	CourseFee    string `json:"course_fee" validate:"required"`
	DownPayment  string `json:"down_payment"`
	Installments int    `json:"installments" validate:"gte=0,lte=120"`
	StartDate    string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

type feesRequest struct {
	CourseFee   string `json:"course_fee" validate:"required"`
	DownPayment string `json:"down_payment"`
}

type paymentRequest struct {
	Amount        string `json:"amount" validate:"required"`
	Method        string `json:"method" validate:"omitempty,oneof=cash cheque"`
	ChequeNumber  string `json:"cheque_number" validate:"required_if=Method cheque,max=32"`
	ClearanceDate string `json:"clearance_date" validate:"omitempty,datetime=2006-01-02"`
	PaidOn        string `json:"paid_on" validate:"omitempty,datetime=2006-01-02"`
}

type paymentResponse struct {
	Installment models.Installment   `json:"installment"`
	Summary     models.LedgerSummary `json:"summary"`
	Warning     string               `json:"warning,omitempty"`
}

type feesResponse struct {
	Summary models.LedgerSummary `json:"summary"`
	Warning string               `json:"warning,omitempty"`
}

type ledgerResponse struct {
	Summary      *models.LedgerSummary `json:"summary"`
	Installments []models.Installment  `json:"installments"`
}

type resultsResponse struct {
	Summary *models.ScoreSummary  `json:"summary"`
	Results []models.GradedResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to write response: %v", err)
	}
}

// writeError maps domain errors to HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		schedErr    *service.InvalidScheduleError
		payErr      *service.InvalidPaymentError
		notEligible *service.NotEligibleError
		validation  validator.ValidationErrors
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &schedErr), errors.As(err, &payErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &notEligible):
		status = http.StatusConflict
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, docrender.ErrNotConfigured):
		status = http.StatusNotImplemented
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Errorf("Request failed: %v", err)
		msg = "internal error"
	}
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) badRequest(w http.ResponseWriter, format string, args ...interface{}) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(format, args...)})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return h.validate.Struct(dst)
}

// amount parses a money field; an empty optional field is zero
func amount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

// feeTerms parses the course fee and down payment of a request
func feeTerms(courseFee, downPayment string) (decimal.Decimal, decimal.Decimal, error) {
	fee, err := amount("course_fee", courseFee)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	dp, err := amount("down_payment", downPayment)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return fee, dp, nil
}

func (h *Handler) dateOr(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return models.DateOf(fallback)
	}
	// validated by the datetime tag
	t, _ := time.Parse(dateLayout, raw)
	return t
}

// ScheduleInstallments handles POST /students/{id}/schedule
func (h *Handler) ScheduleInstallments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	var req scheduleRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	fee, dp, err := feeTerms(req.CourseFee, req.DownPayment)
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}

	scope := middleware.ScopeFromContext(r.Context())
	items, err := h.svc.ScheduleInstallments(r.Context(), scope, id, fee, dp, req.Installments, h.dateOr(req.StartDate, h.now()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, items)
}

// AdjustFees handles POST /students/{id}/fees
func (h *Handler) AdjustFees(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	var req feesRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	fee, dp, err := feeTerms(req.CourseFee, req.DownPayment)
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}

	adj, err := h.svc.AdjustFees(r.Context(), middleware.ScopeFromContext(r.Context()), id, fee, dp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := feesResponse{Summary: adj.Summary}
	if adj.Warning != nil {
		resp.Warning = adj.Warning.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Ledger handles GET /students/{id}/ledger
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	scope := middleware.ScopeFromContext(r.Context())
	summary, err := h.svc.Summarize(r.Context(), scope, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.svc.Installments(r.Context(), scope, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ledgerResponse{Summary: summary, Installments: items})
}

// RecordPayment handles POST /installments/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	var req paymentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	paid, err := amount("amount", req.Amount)
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}

	method := models.PaymentMethod{Kind: models.PaymentKind(req.Method), ChequeNumber: req.ChequeNumber}
	if req.ClearanceDate != "" {
		cleared := h.dateOr(req.ClearanceDate, h.now())
		method.ClearanceDate = &cleared
	}

	out, err := h.svc.RecordPayment(r.Context(), middleware.ScopeFromContext(r.Context()), id, paid, method, h.dateOr(req.PaidOn, h.now()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := paymentResponse{Installment: out.Installment, Summary: out.Summary}
	if out.Warning != nil {
		resp.Warning = out.Warning.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Receipt handles GET /installments/{id}/receipt
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	receipt, err := h.svc.BuildReceipt(r.Context(), middleware.ScopeFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeReceipt(w, r, receipt)
}

// DownPaymentReceipt handles GET /students/{id}/down-payment/receipt
func (h *Handler) DownPaymentReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.badRequest(w, "%v", err)
		return
	}
	receipt, err := h.svc.BuildDownPaymentReceipt(r.Context(), middleware.ScopeFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeReceipt(w, r, receipt)
}

func (h *Handler) writeReceipt(w http.ResponseWriter, r *http.Request, receipt *models.Receipt) {
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		h.writeJSON(w, http.StatusOK, receipt)
		return
	case "xml":
		body, err = docrender.EncodeReceipt(receipt)
		contentType = "application/xml"
	case "pdf":
		body, err = h.renderer.Render(r.Context(), receipt)
		contentType = "application/pdf"
	default:
		h.badRequest(w, "unknown receipt format %q", format)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", receipt.ReceiptNumber+"."+r.URL.Query().Get("format")))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.log.Errorf("Failed to write receipt %s: %v", receipt.ReceiptNumber, err)
	}
}

// FeesOverview handles GET /fees/overview for the caller's scope
func (h *Handler) FeesOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.FeesOverview(r.Context(), middleware.ScopeFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, overview)
}

// Sweep handles POST /sweep[?day=YYYY-MM-DD]; admin only
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	if !middleware.ScopeFromContext(r.Context()).Admin {
		h.writeJSON(w, http.StatusForbidden, errorResponse{Error: "sweep requires an admin token"})
		return
	}
	day := models.DateOf(h.now())
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			h.badRequest(w, "invalid day %q", raw)
			return
		}
		day = parsed
	}

	report, err := h.svc.Sweep(r.Context(), day)
	if err != nil && report == nil {
		h.writeError(w, err)
		return
	}
	if err != nil {
		h.log.Warnf("Manual sweep for %s had failures: %v", report.Day, err)
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ExamResults handles GET /students/{id}/courses/{courseId}/results
func (h *Handler) ExamResults(w http.ResponseWriter, r *http.Request) {
	studentID, courseID, ok := h.studentCourse(w, r)
	if !ok {
		return
	}
	scope := middleware.ScopeFromContext(r.Context())
	summary, err := h.svc.Aggregate(r.Context(), scope, studentID, courseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	results, err := h.svc.ExamResults(r.Context(), scope, studentID, courseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resultsResponse{Summary: summary, Results: results})
}

// Certificate handles GET /students/{id}/courses/{courseId}/certificate
func (h *Handler) Certificate(w http.ResponseWriter, r *http.Request) {
	studentID, courseID, ok := h.studentCourse(w, r)
	if !ok {
		return
	}
	cert, err := h.svc.CertificateFor(r.Context(), middleware.ScopeFromContext(r.Context()), studentID, courseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cert)
}

// IssueCertificate handles POST /students/{id}/courses/{courseId}/certificate
func (h *Handler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	studentID, courseID, ok := h.studentCourse(w, r)
	if !ok {
		return
	}
	cert, err := h.svc.IssueCertificate(r.Context(), middleware.ScopeFromContext(r.Context()), studentID, courseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, cert)
}

func (h *Handler) studentCourse(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	studentID, err := pathID(r, "id")
	if err != nil {
		h.badRequest(w, "%v", err)
		return 0, 0, false
	}
	courseID, err := pathID(r, "courseId")
	if err != nil {
		h.badRequest(w, "%v", err)
		return 0, 0, false
	}
	return studentID, courseID, true
}

func (h *Handler) writeDecodeError(w http.ResponseWriter, err error) {
	var validation validator.ValidationErrors
	if errors.As(err, &validation) {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Error()})
		return
	}
	h.badRequest(w, "%v", err)
}
