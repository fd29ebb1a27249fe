package enroll

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	schooldb "registrar/internal/db/school"
	"registrar/internal/school"
)

// BuildStepService wires a StepService from a Postgres DSN. If the DSN
// is empty or initialization fails, it falls back to in-memory stores.
// The returned cleanup closes any external resources.
func BuildStepService(ctx context.Context, dsn string, gateway PaymentGateway, logger *slog.Logger) (*StepService, func()) {
	if logger == nil {
		logger = slog.Default()
	}

	cleanup := func() {}
	var students school.StudentStore = school.NewMemoryStudentStore()
	var courses school.CourseStore = school.NewMemoryCourseStore()

	if dsn != "" {
		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			logger.Warn("postgres open failed, falling back to in-memory stores", "error", err)
		} else {
			setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			studentStore, err := schooldb.NewStudentStoreWithSchema(setupCtx, sqlDB)
			if err != nil {
				logger.Warn("postgres init failed, falling back to in-memory stores", "error", err)
				_ = sqlDB.Close()
			} else {
				logger.Info("postgres school stores enabled")
				students = studentStore
				courses = schooldb.NewCourseStore(sqlDB)
				cleanup = func() {
					if err := sqlDB.Close(); err != nil {
						logger.Warn("close postgres", "error", err)
					}
				}
			}
		}
	}

	return NewStepService(students, courses, gateway), cleanup
}
