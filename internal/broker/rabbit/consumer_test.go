package rabbit

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"registrar/internal/observability"
)

type fakeAcknowledger struct {
	acks     int
	nacks    int
	requeued bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, _ bool) error {
	f.nacks++
	return nil
}

type fakePublisher struct {
	err       error
	published []amqp.Publishing
	keys      []string
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _ string, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func testConsumer(t *testing.T, cfg ConsumerConfig) (*Consumer, *observability.Metrics) {
	t.Helper()
	if cfg.Queue == "" {
		cfg.Queue = "saga.steps"
	}
	if cfg.DeadLetter == "" {
		cfg.DeadLetter = "saga.steps.dead"
	}
	metrics := observability.NewMetrics()
	return NewConsumer(cfg, metrics, nil), metrics
}

func TestHandleAcksOnSuccess(t *testing.T) {
	t.Parallel()

	consumer, _ := testConsumer(t, ConsumerConfig{MaxRetries: 3})
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	consumer.handle(context.Background(), pub, amqp.Delivery{Acknowledger: ack}, func(context.Context, []byte) error {
		return nil
	})

	if ack.acks != 1 {
		t.Fatalf("expected 1 ack, got %d", ack.acks)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected no republish on success")
	}
}

func TestHandleRepublishesWithBumpedRetryHeader(t *testing.T) {
	t.Parallel()

	consumer, metrics := testConsumer(t, ConsumerConfig{MaxRetries: 3})
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}
	delivery := amqp.Delivery{
		Acknowledger: ack,
		Headers:      amqp.Table{retryCountHeader: int32(1)},
		Body:         []byte(`{}`),
	}

	consumer.handle(context.Background(), pub, delivery, func(context.Context, []byte) error {
		return errors.New("transient")
	})

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 republish, got %d", len(pub.published))
	}
	if pub.keys[0] != "saga.steps" {
		t.Fatalf("expected republish to the same queue, got %q", pub.keys[0])
	}
	if got := pub.published[0].Headers[retryCountHeader]; got != int32(2) {
		t.Fatalf("expected retry count 2, got %v", got)
	}
	if ack.acks != 1 {
		t.Fatalf("original delivery must be acked after republish, got %d acks", ack.acks)
	}
	if metrics.Snapshot().Retried != 1 {
		t.Fatalf("expected retried counter bump")
	}
}

func TestHandleDeadLettersAfterMaxRetries(t *testing.T) {
	t.Parallel()

	consumer, metrics := testConsumer(t, ConsumerConfig{MaxRetries: 2})
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}
	delivery := amqp.Delivery{
		Acknowledger: ack,
		Headers:      amqp.Table{retryCountHeader: int32(2)},
		Body:         []byte(`{}`),
	}

	consumer.handle(context.Background(), pub, delivery, func(context.Context, []byte) error {
		return errors.New("still broken")
	})

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 dead-letter publish, got %d", len(pub.published))
	}
	if pub.keys[0] != "saga.steps.dead" {
		t.Fatalf("expected dead-letter queue, got %q", pub.keys[0])
	}
	if reason := pub.published[0].Headers[deadReasonHeader]; reason != "still broken" {
		t.Fatalf("expected failure reason header, got %v", reason)
	}
	if ack.acks != 1 {
		t.Fatalf("dead-lettered delivery must be acked, got %d acks", ack.acks)
	}
	if metrics.Snapshot().DeadLettered != 1 {
		t.Fatalf("expected dead-letter counter bump")
	}
}

func TestHandlePermanentErrorSkipsRetries(t *testing.T) {
	t.Parallel()

	bad := errors.New("malformed envelope")
	consumer, _ := testConsumer(t, ConsumerConfig{
		MaxRetries: 5,
		Permanent:  func(err error) bool { return errors.Is(err, bad) },
	})
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	consumer.handle(context.Background(), pub, amqp.Delivery{Acknowledger: ack}, func(context.Context, []byte) error {
		return bad
	})

	if len(pub.keys) != 1 || pub.keys[0] != "saga.steps.dead" {
		t.Fatalf("expected immediate dead-letter, got %v", pub.keys)
	}
	if ack.acks != 1 {
		t.Fatalf("expected ack after dead-letter, got %d", ack.acks)
	}
}

func TestHandleNacksWhenRepublishFails(t *testing.T) {
	t.Parallel()

	consumer, _ := testConsumer(t, ConsumerConfig{MaxRetries: 3})
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{err: errors.New("channel closed")}

	consumer.handle(context.Background(), pub, amqp.Delivery{Acknowledger: ack}, func(context.Context, []byte) error {
		return errors.New("transient")
	})

	if ack.acks != 0 {
		t.Fatalf("delivery must not be acked when republish fails")
	}
	if ack.nacks != 1 || !ack.requeued {
		t.Fatalf("expected a requeueing nack, got nacks=%d requeued=%v", ack.nacks, ack.requeued)
	}
}

func TestRetryCountHeaderShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{"missing", nil, 0},
		{"int32", amqp.Table{retryCountHeader: int32(3)}, 3},
		{"int64", amqp.Table{retryCountHeader: int64(4)}, 4},
		{"int", amqp.Table{retryCountHeader: 5}, 5},
		{"garbage", amqp.Table{retryCountHeader: "nope"}, 0},
	}

	for _, tc := range cases {
		if got := retryCount(tc.headers); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}
