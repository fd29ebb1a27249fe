package enroll

import (
	"context"
	"errors"
	"fmt"

	"registrar/internal/school"
)

// StepService executes one saga step per call against the school
// stores. A false return is a business failure the caller turns into
// the "failed" sibling event; a non-nil error is an infrastructure
// fault the caller may retry. Every operation is a single atomic write;
// no transaction spans two broker round-trips.
type StepService struct {
	students school.StudentStore
	courses  school.CourseStore
	gateway  PaymentGateway
}

// NewStepService constructs a StepService. A nil gateway defaults to
// ApproveAll.
func NewStepService(students school.StudentStore, courses school.CourseStore, gateway PaymentGateway) *StepService {
	if gateway == nil {
		gateway = ApproveAll{}
	}
	return &StepService{
		students: students,
		courses:  courses,
		gateway:  gateway,
	}
}

// EnrollCourses resolves every course id and replaces the student's
// course set. Any unresolved id fails the whole step with no partial
// assignment.
func (s *StepService) EnrollCourses(ctx context.Context, studentID int, courseIDs []int) (bool, error) {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, school.ErrStudentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load student %d: %w", studentID, err)
	}

	courses := make([]school.Course, 0, len(courseIDs))
	for _, id := range courseIDs {
		course, err := s.courses.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, school.ErrCourseNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("load course %d: %w", id, err)
		}
		courses = append(courses, course)
	}

	if err := s.students.ReplaceCourses(ctx, studentID, courses); err != nil {
		return false, fmt.Errorf("replace courses for student %d: %w", studentID, err)
	}
	return true, nil
}

// UpdatePaymentStatus charges through the gateway and, on approval,
// flips the student's payment flag.
func (s *StepService) UpdatePaymentStatus(ctx context.Context, studentID int) (bool, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, school.ErrStudentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load student %d: %w", studentID, err)
	}

	approved, err := s.gateway.Charge(ctx, student)
	if err != nil {
		return false, fmt.Errorf("charge student %d: %w", studentID, err)
	}
	if !approved {
		return false, nil
	}

	if err := s.students.MarkPaid(ctx, studentID); err != nil {
		return false, fmt.Errorf("mark student %d paid: %w", studentID, err)
	}
	return true, nil
}

// DeleteStudent removes the student record. A student that is already
// gone still counts as success so the compensation can be repeated.
func (s *StepService) DeleteStudent(ctx context.Context, studentID int) (bool, error) {
	if err := s.students.Delete(ctx, studentID); err != nil {
		if errors.Is(err, school.ErrStudentNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("delete student %d: %w", studentID, err)
	}
	return true, nil
}
