package notifysvc

import (
	"context"
	"errors"
)

var (
	ErrValidation = errors.New("validation error")
	ErrEnqueue    = errors.New("cannot enqueue notification")
)

// Service tells moderators that something waits for review.
// Delivery is asynchronous and best effort, Notify only reports enqueue failures.
type Service interface {
	Notify(ctx context.Context, ev Event) error
}

type Kind string

const (
	KindAppSubmitted Kind = "app_submitted"
	KindReportFiled  Kind = "report_filed"
)

type Event struct {
	Kind    Kind   `validate:"required,oneof=app_submitted report_filed"`
	Subject string `validate:"required"`
	Body    string `validate:"required"`

	// Ref is the id of the app or report the event is about.
	Ref string `validate:"-"`
}

// Noop drops every event, used when no channel is configured.
type Noop struct{}

var _ Service = (*Noop)(nil)

func (Noop) Notify(context.Context, Event) error {
	return nil
}
