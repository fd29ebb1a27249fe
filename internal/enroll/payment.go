package enroll

import (
	"context"

	"registrar/internal/reliability"
	"registrar/internal/school"
)

// PaymentGateway decides whether a student's enrollment fee goes
// through. Business declines are the bool; errors mean the gateway
// could not be reached.
type PaymentGateway interface {
	Charge(ctx context.Context, student school.Student) (bool, error)
}

// ApproveAll approves every charge. The default until a real gateway is
// wired.
type ApproveAll struct{}

func (ApproveAll) Charge(ctx context.Context, _ school.Student) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// ParityStub declines students with odd ids. A development stand-in for
// a real payment provider, kept for tests and local runs.
type ParityStub struct{}

func (ParityStub) Charge(ctx context.Context, student school.Student) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return student.StudentID%2 == 0, nil
}

// ReliableGateway wraps a PaymentGateway with retry and circuit-breaker
// controls. Only transport errors ride the retry path; declines return
// immediately.
type ReliableGateway struct {
	base    PaymentGateway
	breaker *reliability.CircuitBreaker
	retry   reliability.RetryPolicy
}

// NewReliableGateway constructs a reliability-wrapped payment gateway.
func NewReliableGateway(base PaymentGateway, breaker *reliability.CircuitBreaker, retry reliability.RetryPolicy) *ReliableGateway {
	return &ReliableGateway{
		base:    base,
		breaker: breaker,
		retry:   retry,
	}
}

func (g *ReliableGateway) Charge(ctx context.Context, student school.Student) (bool, error) {
	var approved bool
	attempt := func() error {
		call := func() error {
			ok, err := g.base.Charge(ctx, student)
			if err != nil {
				return err
			}
			approved = ok
			return nil
		}
		if g.breaker != nil {
			return g.breaker.Execute(call)
		}
		return call()
	}
	if err := g.retry.Do(ctx, attempt); err != nil {
		return false, err
	}
	return approved, nil
}
