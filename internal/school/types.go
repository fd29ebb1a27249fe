package school

import (
	"context"
	"errors"
	"time"
)

// ErrStudentNotFound signals a lookup for a student that does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrCourseNotFound signals a lookup for a course that does not exist.
var ErrCourseNotFound = errors.New("course not found")

// Student mirrors the record persisted by the student service. JSON tags
// match the wire form produced by that service.
type Student struct {
	StudentID     int        `json:"StudentId"`
	FirstName     string     `json:"FirstName"`
	LastName      string     `json:"LastName"`
	Email         string     `json:"Email"`
	Phone         string     `json:"Phone"`
	BirthDate     *time.Time `json:"BirthDate,omitempty"`
	Created       time.Time  `json:"Created"`
	Updated       time.Time  `json:"Updated"`
	IsActive      bool       `json:"IsActive"`
	Courses       []Course   `json:"Courses"`
	PaymentStatus bool       `json:"PaymentStatus"`
}

// Course is a catalog entry a student can enroll in.
type Course struct {
	CourseID    int    `json:"CourseId"`
	CourseName  string `json:"CourseName"`
	Description string `json:"Description"`
}

// StudentStore persists students and their enrollments.
type StudentStore interface {
	GetByID(ctx context.Context, id int) (Student, error)
	Create(ctx context.Context, s Student) (Student, error)
	ReplaceCourses(ctx context.Context, id int, courses []Course) error
	MarkPaid(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

// CourseStore resolves catalog entries.
type CourseStore interface {
	GetByID(ctx context.Context, id int) (Course, error)
}
