package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/shopspring/decimal"
)

type certKey struct {
	studentID int64
	courseID  int64
}

// MemoryRepository keeps everything in process memory. It is used for local
// runs without a database and by tests.
type MemoryRepository struct {
	mutex        sync.RWMutex
	seq          int64
	students     map[int64]*models.Student
	installments map[int64]*models.Installment
	courses      map[int64]*models.Course
	results      map[int64]*models.ExamResult
	certificates map[certKey]*models.Certificate
}

var _ Store = (*MemoryRepository)(nil)

// NewMemoryRepository initializes an empty in-memory store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		students:     make(map[int64]*models.Student),
		installments: make(map[int64]*models.Installment),
		courses:      make(map[int64]*models.Course),
		results:      make(map[int64]*models.ExamResult),
		certificates: make(map[certKey]*models.Certificate),
	}
}

func (r *MemoryRepository) nextID() int64 {
	r.seq++
	return r.seq
}

// AddStudent stores a student, assigning an id when it has none
func (r *MemoryRepository) AddStudent(s models.Student) models.Student {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if s.ID == 0 {
		s.ID = r.nextID()
	}
	s.CreatedAt, s.UpdatedAt = time.Now(), time.Now()
	r.students[s.ID] = &s
	return s
}

// AddCourse stores a course, assigning an id when it has none
func (r *MemoryRepository) AddCourse(c models.Course) models.Course {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if c.ID == 0 {
		c.ID = r.nextID()
	}
	r.courses[c.ID] = &c
	return c
}

// AddExamResult stores an exam result, assigning an id when it has none
func (r *MemoryRepository) AddExamResult(res models.ExamResult) models.ExamResult {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if res.ID == 0 {
		res.ID = r.nextID()
	}
	r.results[res.ID] = &res
	return res
}

func (r *MemoryRepository) GetStudent(_ context.Context, id int64) (*models.Student, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.students[id]
	if !ok {
		return nil, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListStudents(_ context.Context, scope models.ActorScope) ([]models.Student, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	students := make([]models.Student, 0, len(r.students))
	for _, s := range r.students {
		if scope.Allows(s.CenterID) {
			students = append(students, *s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (r *MemoryRepository) UpdateStudentFees(_ context.Context, id int64, courseFee, downPayment decimal.Decimal) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, ok := r.students[id]
	if !ok {
		return fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	s.CourseFee, s.DownPayment, s.UpdatedAt = courseFee, downPayment, time.Now()
	return nil
}

func (r *MemoryRepository) CreateSchedule(_ context.Context, studentID int64, courseFee, downPayment decimal.Decimal, items []models.Installment) ([]models.Installment, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, ok := r.students[studentID]
	if !ok {
		return nil, fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}
	for _, inst := range r.installments {
		if inst.StudentID == studentID {
			return nil, ErrScheduleExists
		}
	}

	s.CourseFee, s.DownPayment, s.UpdatedAt = courseFee, downPayment, time.Now()
	created := make([]models.Installment, 0, len(items))
	for _, item := range items {
		item.ID = r.nextID()
		item.StudentID = studentID
		item.CreatedAt, item.UpdatedAt = time.Now(), time.Now()
		stored := item
		r.installments[item.ID] = &stored
		created = append(created, item)
	}
	return created, nil
}

func (r *MemoryRepository) GetInstallment(_ context.Context, id int64) (*models.Installment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	inst, ok := r.installments[id]
	if !ok {
		return nil, fmt.Errorf("installment %d: %w", id, ErrNotFound)
	}
	cp := *inst
	return &cp, nil
}

func (r *MemoryRepository) ListInstallments(_ context.Context, studentID int64) ([]models.Installment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	items := make([]models.Installment, 0)
	for _, inst := range r.installments {
		if inst.StudentID == studentID {
			items = append(items, *inst)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
	return items, nil
}

func (r *MemoryRepository) ListOverdueCandidates(_ context.Context, today time.Time) ([]int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]int64, 0)
	for id, inst := range r.installments {
		if inst.Status != models.StatusPending && inst.Status != models.StatusPartial {
			continue
		}
		if inst.IsPastDue(today) && !inst.IsCovered() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// UpdateInstallment holds the store lock across the read-modify-write and
// hands fn a copy, so a failing fn leaves the row as it was.
func (r *MemoryRepository) UpdateInstallment(_ context.Context, id int64, fn InstallmentMutator) (*models.Installment, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored, ok := r.installments[id]
	if !ok {
		return nil, false, fmt.Errorf("installment %d: %w", id, ErrNotFound)
	}
	cp := *stored
	changed, err := fn(&cp)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return &cp, false, nil
	}
	cp.UpdatedAt = time.Now()
	*stored = cp
	out := cp
	return &out, true, nil
}

func (r *MemoryRepository) GetCourse(_ context.Context, id int64) (*models.Course, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, ok := r.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %d: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) ListExamResults(_ context.Context, studentID, courseID int64) ([]models.ExamResult, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	results := make([]models.ExamResult, 0)
	for _, res := range r.results {
		if res.StudentID == studentID && res.CourseID == courseID {
			results = append(results, *res)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].SubmittedAt.Equal(results[j].SubmittedAt) {
			return results[i].SubmittedAt.After(results[j].SubmittedAt)
		}
		return results[i].ID > results[j].ID
	})
	return results, nil
}

func (r *MemoryRepository) GetCertificate(_ context.Context, studentID, courseID int64) (*models.Certificate, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, ok := r.certificates[certKey{studentID, courseID}]
	if !ok {
		return nil, fmt.Errorf("certificate for student %d course %d: %w", studentID, courseID, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) SaveCertificate(_ context.Context, cert *models.Certificate) error {
	if cert.IssuedOn == nil {
		return fmt.Errorf("certificate has no issue date")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := certKey{cert.StudentID, cert.CourseID}
	if existing, ok := r.certificates[key]; ok {
		*cert = *existing
		return nil
	}
	cert.ID = r.nextID()
	cert.ManuallyIssued = true
	cert.CreatedAt = time.Now()
	stored := *cert
	r.certificates[key] = &stored
	return nil
}
