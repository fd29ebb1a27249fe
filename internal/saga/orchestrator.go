package saga

import (
	"context"
	"fmt"
	"log/slog"

	"registrar/internal/enroll"
	"registrar/internal/event"
	"registrar/internal/mail"
	"registrar/internal/observability"
)

const defaultMailFrom = "noreply@studentportal.local"

// Config wires an Orchestrator. Steps and Publisher are required; the
// rest default to safe no-ops.
type Config struct {
	Steps     *enroll.StepService
	Publisher Publisher
	Mailer    mail.Sender
	MailFrom  string
	Metrics   *observability.Metrics
	Notifier  Notifier
	Logger    *slog.Logger
}

// Orchestrator consumes saga events and publishes the next step's
// event. All enrollment state travels inside the message payload, so
// any replica can pick up any message.
type Orchestrator struct {
	steps    *enroll.StepService
	pub      Publisher
	mailer   mail.Sender
	mailFrom string
	metrics  *observability.Metrics
	notifier Notifier
	logger   *slog.Logger
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mailer == nil {
		cfg.Mailer = mail.LogSender{Logger: cfg.Logger}
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = defaultMailFrom
	}
	return &Orchestrator{
		steps:    cfg.Steps,
		pub:      cfg.Publisher,
		mailer:   cfg.Mailer,
		mailFrom: cfg.MailFrom,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
}

// HandleMessage dispatches one delivery. A returned ErrBadMessage
// means the message can never succeed; any other error is retryable.
func (o *Orchestrator) HandleMessage(ctx context.Context, body []byte) error {
	eventType, err := event.PeekType(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if !eventType.Known() {
		return fmt.Errorf("%w: unknown event type %q", ErrBadMessage, eventType)
	}

	span := o.metrics.Start(eventType.String())
	err = o.dispatch(ctx, eventType, body)
	span.End(err)
	return err
}

func (o *Orchestrator) dispatch(ctx context.Context, eventType event.Type, body []byte) error {
	switch eventType {
	case event.StudentCreated:
		return o.onStudentCreated(ctx, body)
	case event.StudentCourseEnrolled:
		return o.onCourseEnrolled(ctx, body)
	case event.StudentCourseEnrolledFailed:
		return o.onEnrollmentFailed(ctx, body)
	case event.StudentPaymentSucess:
		return o.onPaymentSucceeded(ctx, body)
	case event.StudentPaymentFailed:
		return o.onPaymentFailed(ctx, body)
	case event.StudentUpdated, event.StudentDeleted:
		// Informational events from the student service. Nothing to
		// advance.
		o.logger.Debug("student change event observed", "event_type", eventType)
		return nil
	default:
		o.logger.Warn("event type not handled on this queue", "event_type", eventType)
		return nil
	}
}

func (o *Orchestrator) onStudentCreated(ctx context.Context, body []byte) error {
	ev, err := decodePayload(body)
	if err != nil {
		return err
	}
	payload := ev.Content
	studentID := payload.Student.StudentID

	ok, err := o.steps.EnrollCourses(ctx, studentID, payload.CourseIDs)
	if err != nil {
		return fmt.Errorf("enroll student %d: %w", studentID, err)
	}

	next := event.StudentCourseEnrolled
	if !ok {
		next = event.StudentCourseEnrolledFailed
		o.logger.Warn("course enrollment rejected", "student_id", studentID, "course_ids", payload.CourseIDs)
	}
	return o.publish(ctx, next, payload)
}

func (o *Orchestrator) onCourseEnrolled(ctx context.Context, body []byte) error {
	ev, err := decodePayload(body)
	if err != nil {
		return err
	}
	payload := ev.Content
	studentID := payload.Student.StudentID

	ok, err := o.steps.UpdatePaymentStatus(ctx, studentID)
	if err != nil {
		return fmt.Errorf("charge student %d: %w", studentID, err)
	}

	next := event.StudentPaymentSucess
	if !ok {
		next = event.StudentPaymentFailed
		o.logger.Warn("payment declined", "student_id", studentID)
	}
	return o.publish(ctx, next, payload)
}

// onEnrollmentFailed closes the saga without compensation. Nothing was
// written for the student's courses, so only the terminal failure
// event goes out.
func (o *Orchestrator) onEnrollmentFailed(ctx context.Context, body []byte) error {
	ev, err := decodePayload(body)
	if err != nil {
		return err
	}
	o.logger.Info("saga failed at enrollment", "student_id", ev.Content.Student.StudentID)
	return o.publish(ctx, event.StudentCreateFailed, ev.Content)
}

func (o *Orchestrator) onPaymentSucceeded(ctx context.Context, body []byte) error {
	ev, err := decodePayload(body)
	if err != nil {
		return err
	}
	payload := ev.Content

	if err := o.publish(ctx, event.StudentCreateSucess, payload); err != nil {
		return err
	}

	// Mail failures never fail the saga; the enrollment already
	// completed.
	if err := o.sendCompletionMail(ctx, payload); err != nil {
		o.logger.Error("completion mail failed", "student_id", payload.Student.StudentID, "error", err)
	} else {
		o.metrics.AddEmailSent()
	}

	o.logger.Info("saga completed", "student_id", payload.Student.StudentID)
	return nil
}

// onPaymentFailed compensates by deleting the student record, then
// reports the rollback.
func (o *Orchestrator) onPaymentFailed(ctx context.Context, body []byte) error {
	ev, err := decodePayload(body)
	if err != nil {
		return err
	}
	payload := ev.Content
	studentID := payload.Student.StudentID

	if _, err := o.steps.DeleteStudent(ctx, studentID); err != nil {
		return fmt.Errorf("compensate student %d: %w", studentID, err)
	}

	o.logger.Info("saga rolled back after payment failure", "student_id", studentID)
	return o.publish(ctx, event.StudentCreateFailed, payload)
}

func (o *Orchestrator) publish(ctx context.Context, eventType event.Type, payload EnrollmentPayload) error {
	ev := event.New(eventType, payload)
	body, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	if err := o.pub.Publish(ctx, eventType.RoutingKey(), body); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	if o.notifier != nil {
		o.notifier.Notify(eventType.String(), payload.Student.StudentID, "")
	}
	return nil
}

func (o *Orchestrator) sendCompletionMail(ctx context.Context, payload EnrollmentPayload) error {
	student := payload.Student
	if student.Email == "" {
		o.logger.Warn("student has no email, skipping notification", "student_id", student.StudentID)
		return nil
	}
	return o.mailer.Send(ctx, mail.Message{
		Sender:    o.mailFrom,
		Recipient: student.Email,
		Subject:   "Enrollment completed",
		Content: fmt.Sprintf("Hello %s %s, your enrollment in %d course(s) is confirmed and paid.",
			student.FirstName, student.LastName, len(payload.CourseIDs)),
	})
}

func decodePayload(body []byte) (event.Event[EnrollmentPayload], error) {
	ev, err := event.Decode[EnrollmentPayload](body)
	if err != nil {
		return event.Event[EnrollmentPayload]{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return ev, nil
}
