package school

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStudentStore_CreateAssignsID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStudentStore()

	created, err := store.Create(context.Background(), Student{FirstName: "Ada"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.StudentID == 0 {
		t.Fatalf("expected assigned student id")
	}
	if !created.IsActive {
		t.Fatalf("expected created student to be active")
	}

	got, err := store.GetByID(context.Background(), created.StudentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FirstName != "Ada" {
		t.Fatalf("unexpected student: %+v", got)
	}
}

func TestMemoryStudentStore_NotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryStudentStore()

	if _, err := store.GetByID(context.Background(), 42); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
	if err := store.MarkPaid(context.Background(), 42); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
	if err := store.Delete(context.Background(), 42); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestMemoryStudentStore_ReplaceCoursesCopiesInput(t *testing.T) {
	t.Parallel()

	store := NewMemoryStudentStore()
	created, err := store.Create(context.Background(), Student{StudentID: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	courses := []Course{{CourseID: 1, CourseName: "Algebra"}}
	if err := store.ReplaceCourses(context.Background(), created.StudentID, courses); err != nil {
		t.Fatalf("replace courses: %v", err)
	}
	courses[0].CourseName = "mutated"

	got, err := store.GetByID(context.Background(), created.StudentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Courses) != 1 || got.Courses[0].CourseName != "Algebra" {
		t.Fatalf("expected stored course set untouched by caller mutation: %+v", got.Courses)
	}
}

func TestMemoryStudentStore_MarkPaidAndDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStudentStore()
	created, err := store.Create(context.Background(), Student{StudentID: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.MarkPaid(context.Background(), created.StudentID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	got, err := store.GetByID(context.Background(), created.StudentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.PaymentStatus {
		t.Fatalf("expected payment status set")
	}

	if err := store.Delete(context.Background(), created.StudentID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(context.Background(), created.StudentID); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected student gone, got %v", err)
	}
}

func TestMemoryCourseStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryCourseStore(Course{CourseID: 10, CourseName: "Physics"})

	got, err := store.GetByID(context.Background(), 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CourseName != "Physics" {
		t.Fatalf("unexpected course: %+v", got)
	}

	if _, err := store.GetByID(context.Background(), 99); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}

	store.Add(Course{CourseID: 11, CourseName: "Chemistry"})
	if _, err := store.GetByID(context.Background(), 11); err != nil {
		t.Fatalf("expected added course resolvable: %v", err)
	}
}
