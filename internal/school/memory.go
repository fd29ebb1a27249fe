package school

import (
	"context"
	"sync"
	"time"
)

// NewMemoryStudentStore constructs an in-memory student store.
func NewMemoryStudentStore() *MemoryStudentStore {
	return &MemoryStudentStore{students: make(map[int]Student)}
}

// MemoryStudentStore keeps students in a map. Used in tests and as the
// fallback when no database is configured.
type MemoryStudentStore struct {
	mu       sync.Mutex
	students map[int]Student
	nextID   int
}

func (s *MemoryStudentStore) GetByID(_ context.Context, id int) (Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return Student{}, ErrStudentNotFound
	}
	return cloneStudent(student), nil
}

func (s *MemoryStudentStore) Create(_ context.Context, student Student) (Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if student.StudentID == 0 {
		s.nextID++
		student.StudentID = s.nextID
	} else if student.StudentID > s.nextID {
		s.nextID = student.StudentID
	}
	now := time.Now()
	if student.Created.IsZero() {
		student.Created = now
	}
	student.Updated = now
	student.IsActive = true
	s.students[student.StudentID] = cloneStudent(student)
	return cloneStudent(student), nil
}

func (s *MemoryStudentStore) ReplaceCourses(_ context.Context, id int, courses []Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return ErrStudentNotFound
	}
	student.Courses = append([]Course(nil), courses...)
	student.Updated = time.Now()
	s.students[id] = student
	return nil
}

func (s *MemoryStudentStore) MarkPaid(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return ErrStudentNotFound
	}
	student.PaymentStatus = true
	student.Updated = time.Now()
	s.students[id] = student
	return nil
}

func (s *MemoryStudentStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return ErrStudentNotFound
	}
	delete(s.students, id)
	return nil
}

func cloneStudent(s Student) Student {
	s.Courses = append([]Course(nil), s.Courses...)
	return s
}

// NewMemoryCourseStore constructs an in-memory catalog seeded with the
// given courses.
func NewMemoryCourseStore(courses ...Course) *MemoryCourseStore {
	store := &MemoryCourseStore{courses: make(map[int]Course, len(courses))}
	for _, c := range courses {
		store.courses[c.CourseID] = c
	}
	return store
}

// MemoryCourseStore keeps the course catalog in a map.
type MemoryCourseStore struct {
	mu      sync.Mutex
	courses map[int]Course
}

func (s *MemoryCourseStore) GetByID(_ context.Context, id int) (Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	course, ok := s.courses[id]
	if !ok {
		return Course{}, ErrCourseNotFound
	}
	return course, nil
}

// Add inserts or replaces a catalog entry.
func (s *MemoryCourseStore) Add(course Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[course.CourseID] = course
}
