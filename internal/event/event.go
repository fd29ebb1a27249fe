package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Type tags every message on the bus. The values are the wire contract
// shared with the student and user services; the "sucess" spellings are
// part of that contract.
type Type string

const (
	StudentCreated              Type = "student.created"
	StudentCourseEnrolled       Type = "student.courseenrolled"
	StudentCourseEnrolledFailed Type = "student.courseenrolledfailed"
	StudentPaymentSucess        Type = "student.paymentsucess"
	StudentPaymentFailed        Type = "student.paymentfailed"
	StudentCreateSucess         Type = "rollback.createsucess"
	StudentCreateFailed         Type = "rollback.createfailed"
	StudentUpdated              Type = "student.updated"
	StudentDeleted              Type = "student.deleted"
)

var registry = map[Type]struct{}{
	StudentCreated:              {},
	StudentCourseEnrolled:       {},
	StudentCourseEnrolledFailed: {},
	StudentPaymentSucess:        {},
	StudentPaymentFailed:        {},
	StudentCreateSucess:         {},
	StudentCreateFailed:         {},
	StudentUpdated:              {},
	StudentDeleted:              {},
}

// Known reports whether t belongs to the closed registry of event types.
func (t Type) Known() bool {
	_, ok := registry[t]
	return ok
}

// RoutingKey returns the broker routing key for the type.
func (t Type) RoutingKey() string {
	return string(t)
}

func (t Type) String() string {
	return string(t)
}

// SagaRoutingKeys lists the bindings for the saga work queue.
func SagaRoutingKeys() []string {
	return []string{
		StudentCreated.RoutingKey(),
		StudentCourseEnrolled.RoutingKey(),
		StudentCourseEnrolledFailed.RoutingKey(),
		StudentPaymentSucess.RoutingKey(),
		StudentPaymentFailed.RoutingKey(),
		StudentUpdated.RoutingKey(),
		StudentDeleted.RoutingKey(),
	}
}

// ResultRoutingKeys lists the bindings for the terminal result queue.
func ResultRoutingKeys() []string {
	return []string{
		StudentCreateSucess.RoutingKey(),
		StudentCreateFailed.RoutingKey(),
	}
}

// Event wraps a payload with a fresh id and a type tag. The JSON field
// names follow the wire format of the existing services.
type Event[T any] struct {
	EventID   uuid.UUID `json:"EventId"`
	EventType Type      `json:"EventType"`
	Content   T         `json:"Content"`
}

// New constructs an envelope with a freshly generated event id.
func New[T any](t Type, content T) Event[T] {
	return Event[T]{
		EventID:   uuid.New(),
		EventType: t,
		Content:   content,
	}
}

// Encode serializes the envelope for publication.
func (e Event[T]) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a raw message into a typed envelope.
func Decode[T any](raw []byte) (Event[T], error) {
	var ev Event[T]
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event[T]{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// PeekType extracts only the type tag from a raw message, so a consumer
// can choose the payload type before a full decode.
func PeekType(raw []byte) (Type, error) {
	var head struct {
		EventType Type `json:"EventType"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("peek event type: %w", err)
	}
	return head.EventType, nil
}
