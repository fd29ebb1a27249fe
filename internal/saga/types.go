// Package saga advances the student enrollment workflow. Each incoming
// event carries the full enrollment state, so the orchestrator keeps no
// state of its own between messages.
package saga

import (
	"context"
	"errors"

	"registrar/internal/school"
)

// EnrollmentPayload is the content carried by every saga event. The
// JSON field names follow the wire format of the existing services.
type EnrollmentPayload struct {
	Student   school.Student `json:"Student"`
	CourseIDs []int          `json:"CourseIds"`
}

// Publisher sends an encoded event to the bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Notifier pushes saga progress to live observers. Implementations
// must not block.
type Notifier interface {
	Notify(eventType string, studentID int, detail string)
}

// ErrBadMessage marks a delivery that can never be processed. Retrying
// it is pointless; consumers dead-letter it immediately.
var ErrBadMessage = errors.New("unprocessable saga message")
