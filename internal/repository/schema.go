package repository

import (
	"context"
	"fmt"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS institute;

CREATE TABLE IF NOT EXISTS institute.courses (
	id                 BIGSERIAL PRIMARY KEY,
	name               TEXT NOT NULL,
	auto_certificate   BOOLEAN NOT NULL DEFAULT FALSE,
	passing_percentage NUMERIC(5,2)
);

CREATE TABLE IF NOT EXISTS institute.students (
	id                    BIGSERIAL PRIMARY KEY,
	name                  TEXT NOT NULL,
	email                 TEXT NOT NULL DEFAULT '',
	center_id             BIGINT NOT NULL,
	course_id             BIGINT NOT NULL REFERENCES institute.courses(id),
	course_fee            NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (course_fee >= 0),
	down_payment          NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (down_payment >= 0),
	down_payment_date     DATE,
	down_payment_method   TEXT NOT NULL DEFAULT 'cash',
	down_payment_cheque   TEXT NOT NULL DEFAULT '',
	enrolled_on           DATE NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (down_payment <= course_fee)
);

CREATE TABLE IF NOT EXISTS institute.installments (
	id                    BIGSERIAL PRIMARY KEY,
	student_id            BIGINT NOT NULL REFERENCES institute.students(id),
	number                INT NOT NULL CHECK (number >= 1),
	due_date              DATE NOT NULL,
	amount                NUMERIC(12,2) NOT NULL,
	paid_amount           NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (paid_amount >= 0),
	paid_date             DATE,
	status                TEXT NOT NULL DEFAULT 'pending',
	payment_method        TEXT NOT NULL DEFAULT '',
	cheque_number         TEXT NOT NULL DEFAULT '',
	cheque_clearance_date DATE,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (student_id, number)
);

CREATE INDEX IF NOT EXISTS installments_status_due_idx ON institute.installments (status, due_date);

CREATE TABLE IF NOT EXISTS institute.exam_results (
	id            BIGSERIAL PRIMARY KEY,
	student_id    BIGINT NOT NULL REFERENCES institute.students(id),
	exam_id       BIGINT NOT NULL,
	course_id     BIGINT NOT NULL REFERENCES institute.courses(id),
	category_id   BIGINT,
	total_points  NUMERIC(10,2),
	points_earned NUMERIC(10,2),
	score         NUMERIC(10,2),
	percentage    NUMERIC(5,2),
	submitted_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS institute.certificates (
	id                BIGSERIAL PRIMARY KEY,
	student_id        BIGINT NOT NULL REFERENCES institute.students(id),
	course_id         BIGINT NOT NULL REFERENCES institute.courses(id),
	percentage        NUMERIC(5,2) NOT NULL,
	grade             TEXT NOT NULL,
	is_passed         BOOLEAN NOT NULL,
	basis             TEXT NOT NULL,
	issued_on         DATE NOT NULL,
	verification_code TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (student_id, course_id)
);
`

// EnsureSchema creates the tables used by the repository when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
