package deliverable

import (
	"context"
	"time"
)

type NotificationEvent string

const (
	NotifySubmitted NotificationEvent = "SUBMITTED"
	NotifyGraded    NotificationEvent = "GRADED"
	NotifyRejected  NotificationEvent = "REJECTED"
)

type Actors struct {
	SubmitterID string `json:"submitter_id,omitempty"`
	EvaluatorID string `json:"evaluator_id,omitempty"`
}

// Notification describes an actor-visible transition that was committed.
type Notification struct {
	Event       NotificationEvent `json:"event"`
	Deliverable Deliverable       `json:"deliverable"`
	Late        bool              `json:"late"`
	Actors      Actors            `json:"actors"`
	Evaluation  *EvaluationRecord `json:"evaluation,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"` // UTC
}

// Notifier delivers notifications. Delivery is fire-and-forget: Notify must not block on the
// delivery itself, and its failures are the Notifier's own business.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }
