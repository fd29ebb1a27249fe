package schooldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"registrar/internal/school"
)

// StudentStore persists students and enrollments in Postgres.
type StudentStore struct {
	db *sql.DB
}

// NewStudentStore constructs a StudentStore backed by Postgres.
func NewStudentStore(db *sql.DB) *StudentStore {
	return &StudentStore{db: db}
}

// NewStudentStoreWithSchema initializes the schema then returns the store.
func NewStudentStoreWithSchema(ctx context.Context, db *sql.DB) (*StudentStore, error) {
	store := NewStudentStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the school tables if they do not exist.
func (s *StudentStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS students (
			student_id BIGSERIAL PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			birth_date TIMESTAMPTZ,
			created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			payment_status BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS courses (
			course_id BIGSERIAL PRIMARY KEY,
			course_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS student_courses (
			student_id BIGINT NOT NULL REFERENCES students(student_id) ON DELETE CASCADE,
			course_id BIGINT NOT NULL REFERENCES courses(course_id),
			PRIMARY KEY (student_id, course_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// GetByID loads a student and their enrolled courses.
func (s *StudentStore) GetByID(ctx context.Context, id int) (school.Student, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT student_id, first_name, last_name, email, phone, birth_date,
			created, updated, is_active, payment_status
		FROM students
		WHERE student_id = $1`,
		id,
	)

	var student school.Student
	err := row.Scan(
		&student.StudentID, &student.FirstName, &student.LastName,
		&student.Email, &student.Phone, &student.BirthDate,
		&student.Created, &student.Updated, &student.IsActive,
		&student.PaymentStatus,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return school.Student{}, school.ErrStudentNotFound
		}
		return school.Student{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.course_id, c.course_name, c.description
		FROM courses c
		JOIN student_courses sc ON sc.course_id = c.course_id
		WHERE sc.student_id = $1
		ORDER BY c.course_id`,
		id,
	)
	if err != nil {
		return school.Student{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var course school.Course
		if err := rows.Scan(&course.CourseID, &course.CourseName, &course.Description); err != nil {
			return school.Student{}, err
		}
		student.Courses = append(student.Courses, course)
	}
	if err := rows.Err(); err != nil {
		return school.Student{}, err
	}

	return student, nil
}

// Create inserts a student and returns the record with its assigned id.
func (s *StudentStore) Create(ctx context.Context, student school.Student) (school.Student, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO students (first_name, last_name, email, phone, birth_date, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING student_id, created, updated`,
		student.FirstName, student.LastName, student.Email, student.Phone, student.BirthDate,
	)
	if err := row.Scan(&student.StudentID, &student.Created, &student.Updated); err != nil {
		return school.Student{}, err
	}
	student.IsActive = true
	return student, nil
}

// ReplaceCourses swaps the student's enrollment set in one transaction.
func (s *StudentStore) ReplaceCourses(ctx context.Context, id int, courses []school.Course) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE students SET updated = NOW() WHERE student_id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return school.ErrStudentNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM student_courses WHERE student_id = $1`,
		id,
	); err != nil {
		return err
	}

	for _, course := range courses {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO student_courses (student_id, course_id)
			VALUES ($1, $2)`,
			id, course.CourseID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MarkPaid flips the student's payment flag.
func (s *StudentStore) MarkPaid(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE students
		SET payment_status = TRUE, updated = NOW()
		WHERE student_id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return school.ErrStudentNotFound
	}
	return nil
}

// Delete removes the student; enrollment rows cascade.
func (s *StudentStore) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM students WHERE student_id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return school.ErrStudentNotFound
	}
	return nil
}

var _ school.StudentStore = (*StudentStore)(nil)

// CourseStore resolves catalog entries from Postgres.
type CourseStore struct {
	db *sql.DB
}

// NewCourseStore constructs a CourseStore backed by Postgres.
func NewCourseStore(db *sql.DB) *CourseStore {
	return &CourseStore{db: db}
}

// GetByID loads one course.
func (s *CourseStore) GetByID(ctx context.Context, id int) (school.Course, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT course_id, course_name, description
		FROM courses
		WHERE course_id = $1`,
		id,
	)

	var course school.Course
	if err := row.Scan(&course.CourseID, &course.CourseName, &course.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return school.Course{}, school.ErrCourseNotFound
		}
		return school.Course{}, fmt.Errorf("load course %d: %w", id, err)
	}
	return course, nil
}

var _ school.CourseStore = (*CourseStore)(nil)
