package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint failure
const pgUniqueViolation = "23505"

// Repository provides PostgreSQL storage
type Repository struct {
	db *sql.DB
}

var _ Store = (*Repository)(nil)

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

const studentColumns = `id, name, email, center_id, course_id, course_fee, down_payment,
	down_payment_date, down_payment_method, down_payment_cheque, enrolled_on, created_at, updated_at`

func scanStudent(row scanner) (*models.Student, error) {
	s := &models.Student{}
	var dpDate sql.NullTime
	var method string
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.CenterID, &s.CourseID, &s.CourseFee, &s.DownPayment,
		&dpDate, &method, &s.DownPaymentMethod.ChequeNumber, &s.EnrolledOn, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dpDate.Valid {
		s.DownPaymentDate = &dpDate.Time
	}
	s.DownPaymentMethod.Kind = models.PaymentKind(method)
	return s, nil
}

const installmentColumns = `id, student_id, number, due_date, amount, paid_amount, paid_date, status,
	payment_method, cheque_number, cheque_clearance_date, created_at, updated_at`

func scanInstallment(row scanner) (*models.Installment, error) {
	inst := &models.Installment{}
	var paidDate, clearance sql.NullTime
	var method string
	err := row.Scan(&inst.ID, &inst.StudentID, &inst.Number, &inst.DueDate, &inst.Amount, &inst.PaidAmount,
		&paidDate, &inst.Status, &method, &inst.Method.ChequeNumber, &clearance, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paidDate.Valid {
		inst.PaidDate = &paidDate.Time
	}
	if clearance.Valid {
		inst.Method.ClearanceDate = &clearance.Time
	}
	inst.Method.Kind = models.PaymentKind(method)
	return inst, nil
}

// GetStudent retrieves a student by id
func (r *Repository) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM institute.students WHERE id = $1`
	s, err := scanStudent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find student: %w", err)
	}
	return s, nil
}

// ListStudents returns the students visible to scope
func (r *Repository) ListStudents(ctx context.Context, scope models.ActorScope) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM institute.students`
	var args []interface{}
	switch {
	case scope.Admin:
	case scope.CenterID != nil:
		query += ` WHERE center_id = $1`
		args = append(args, *scope.CenterID)
	default:
		return []models.Student{}, nil
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	students := make([]models.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

// UpdateStudentFees stores new fee terms of a student
func (r *Repository) UpdateStudentFees(ctx context.Context, id int64, courseFee, downPayment decimal.Decimal) error {
	query := `
		UPDATE institute.students
		SET course_fee = $1, down_payment = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, courseFee, downPayment, id)
	if err != nil {
		return fmt.Errorf("failed to update student fees: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	return nil
}

// CreateSchedule stores fee terms and installments in one transaction
func (r *Repository) CreateSchedule(ctx context.Context, studentID int64, courseFee, downPayment decimal.Decimal, items []models.Installment) ([]models.Installment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM institute.students WHERE id = $1 FOR UPDATE`, studentID).Scan(&locked)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock student: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM institute.installments WHERE student_id = $1)`, studentID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check schedule: %w", err)
	}
	if exists {
		return nil, ErrScheduleExists
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE institute.students
		SET course_fee = $1, down_payment = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`, courseFee, downPayment, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to update student fees: %w", err)
	}

	insert := `
		INSERT INTO institute.installments (student_id, number, due_date, amount, paid_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	created := make([]models.Installment, 0, len(items))
	for _, item := range items {
		item.StudentID = studentID
		err := tx.QueryRowContext(ctx, insert, studentID, item.Number, item.DueDate, item.Amount, item.PaidAmount, item.Status).
			Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
				return nil, ErrScheduleExists
			}
			return nil, fmt.Errorf("failed to create installment: %w", err)
		}
		created = append(created, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit schedule: %w", err)
	}
	return created, nil
}

// GetInstallment retrieves an installment by id
func (r *Repository) GetInstallment(ctx context.Context, id int64) (*models.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM institute.installments WHERE id = $1`
	inst, err := scanInstallment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("installment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find installment: %w", err)
	}
	return inst, nil
}

// ListInstallments returns the schedule of a student ordered by number
func (r *Repository) ListInstallments(ctx context.Context, studentID int64) ([]models.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM institute.installments WHERE student_id = $1 ORDER BY number`
	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	defer rows.Close()

	items := make([]models.Installment, 0)
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		items = append(items, *inst)
	}
	return items, rows.Err()
}

// ListOverdueCandidates returns ids the overdue sweep has to look at
func (r *Repository) ListOverdueCandidates(ctx context.Context, today time.Time) ([]int64, error) {
	query := `
		SELECT id FROM institute.installments
		WHERE status = ANY($1) AND due_date < $2::date AND paid_amount < amount
		ORDER BY id`
	statuses := []string{string(models.StatusPending), string(models.StatusPartial)}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(statuses), today.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan installment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateInstallment applies fn to the row locked with SELECT ... FOR UPDATE
func (r *Repository) UpdateInstallment(ctx context.Context, id int64, fn InstallmentMutator) (*models.Installment, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + installmentColumns + ` FROM institute.installments WHERE id = $1 FOR UPDATE`
	inst, err := scanInstallment(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, false, fmt.Errorf("installment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock installment: %w", err)
	}

	changed, err := fn(inst)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return inst, false, tx.Commit()
	}

	update := `
		UPDATE institute.installments
		SET paid_amount = $1, paid_date = $2, status = $3, payment_method = $4,
			cheque_number = $5, cheque_clearance_date = $6, updated_at = CURRENT_TIMESTAMP
		WHERE id = $7
		RETURNING updated_at`
	err = tx.QueryRowContext(ctx, update, inst.PaidAmount, inst.PaidDate, inst.Status, string(inst.Method.Kind),
		inst.Method.ChequeNumber, inst.Method.ClearanceDate, inst.ID).Scan(&inst.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update installment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit installment: %w", err)
	}
	return inst, true, nil
}

// GetCourse retrieves a course and its certificate policy
func (r *Repository) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	c := &models.Course{}
	query := `SELECT id, name, auto_certificate, passing_percentage FROM institute.courses WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.AutoCertificate, &c.PassingPercentage)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("course %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	return c, nil
}

// ListExamResults returns results of a student in a course, newest first
func (r *Repository) ListExamResults(ctx context.Context, studentID, courseID int64) ([]models.ExamResult, error) {
	query := `
		SELECT id, student_id, exam_id, course_id, category_id, total_points, points_earned, score, percentage, submitted_at
		FROM institute.exam_results
		WHERE student_id = $1 AND course_id = $2
		ORDER BY submitted_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exam results: %w", err)
	}
	defer rows.Close()

	results := make([]models.ExamResult, 0)
	for rows.Next() {
		var res models.ExamResult
		var category sql.NullInt64
		err := rows.Scan(&res.ID, &res.StudentID, &res.ExamID, &res.CourseID, &category,
			&res.TotalPoints, &res.PointsEarned, &res.Score, &res.Percentage, &res.SubmittedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exam result: %w", err)
		}
		if category.Valid {
			res.CategoryID = &category.Int64
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// GetCertificate retrieves a manually issued certificate
func (r *Repository) GetCertificate(ctx context.Context, studentID, courseID int64) (*models.Certificate, error) {
	c := &models.Certificate{ManuallyIssued: true}
	var issuedOn time.Time
	var basis string
	query := `
		SELECT id, student_id, course_id, percentage, grade, is_passed, basis, issued_on, verification_code, created_at
		FROM institute.certificates
		WHERE student_id = $1 AND course_id = $2`
	err := r.db.QueryRowContext(ctx, query, studentID, courseID).Scan(&c.ID, &c.StudentID, &c.CourseID,
		&c.Percentage, &c.Grade, &c.IsPassed, &basis, &issuedOn, &c.VerificationCode, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("certificate for student %d course %d: %w", studentID, courseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find certificate: %w", err)
	}
	c.Eligible = true
	c.Basis = models.CertificateBasis(basis)
	c.IssuedOn = &issuedOn
	return c, nil
}

// SaveCertificate stores a manually issued certificate once per student and course
func (r *Repository) SaveCertificate(ctx context.Context, cert *models.Certificate) error {
	if cert.IssuedOn == nil {
		return fmt.Errorf("certificate has no issue date")
	}
	query := `
		INSERT INTO institute.certificates (student_id, course_id, percentage, grade, is_passed, basis, issued_on, verification_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		ON CONFLICT (student_id, course_id) DO NOTHING
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, cert.StudentID, cert.CourseID, cert.Percentage, cert.Grade,
		cert.IsPassed, string(cert.Basis), *cert.IssuedOn, cert.VerificationCode).Scan(&cert.ID, &cert.CreatedAt)
	if err == sql.ErrNoRows {
		existing, err := r.GetCertificate(ctx, cert.StudentID, cert.CourseID)
		if err != nil {
			return err
		}
		*cert = *existing
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	cert.ManuallyIssued = true
	return nil
}
