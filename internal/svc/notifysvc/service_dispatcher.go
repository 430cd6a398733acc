package notifysvc

import (
	"context"
	"fmt"
	"time"

	"github.com/yusufsyaifudin/katalog/pkg/mailclient"
	"github.com/yusufsyaifudin/katalog/pkg/pushclient"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/katalog/pkg/worker"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

type IDGen interface {
	NextID() (uint64, error)
}

type DispatcherConfig struct {
	Worker worker.Service `validate:"required"`
	IDGen  IDGen          `validate:"required"`

	// Mailer is optional, MailFrom and MailTo are required when it is set.
	Mailer   mailclient.Client `validate:"-"`
	MailFrom string            `validate:"required_with=Mailer,omitempty,email"`
	MailTo   []string          `validate:"required_with=Mailer,omitempty,dive,email"`

	// Pusher is optional, PushTopic is required when it is set.
	Pusher    pushclient.Client `validate:"-"`
	PushTopic string            `validate:"required_with=Pusher"`

	Timeout time.Duration `validate:"min=0"`
}

type Dispatcher struct {
	Config DispatcherConfig
}

var _ Service = (*Dispatcher)(nil)

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Dispatcher{Config: cfg}, nil
}

func (d *Dispatcher) Notify(ctx context.Context, ev Event) error {
	if err := validator.Validate(ev); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	id, err := d.Config.IDGen.NextID()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEnqueue, err)
	}

	job := &notifyJob{
		id: id,
		// the request that raised the event is finished long before delivery
		ctx:   context.WithoutCancel(ctx),
		ev:    ev,
		d:     d,
		start: time.Now(),
	}

	if err = d.Config.Worker.TryAddJob(job); err != nil {
		return fmt.Errorf("%w: %s", ErrEnqueue, err)
	}

	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, jobID uint64, ev Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.Config.Timeout)
	defer cancel()

	if d.Config.Mailer != nil {
		report := d.Config.Mailer.SendEmails(ctx, []mailclient.EmailSingle{{
			TrackingID: fmt.Sprintf("%s-%d", ev.Kind, jobID),
			SenderAddr: d.Config.MailFrom,
			Recipients: d.Config.MailTo,
			Subject:    ev.Subject,
			Body:       ev.Body,
		}})

		if _err := report.Err(); _err != nil {
			err = multierr.Append(err, fmt.Errorf("mail: %w", _err))
		}
	}

	if d.Config.Pusher != nil {
		_, _err := d.Config.Pusher.SendTopic(ctx, d.Config.PushTopic, pushclient.Notification{
			Title: ev.Subject,
			Body:  ev.Body,
			Data: map[string]string{
				"kind": string(ev.Kind),
				"ref":  ev.Ref,
			},
		})
		if _err != nil {
			err = multierr.Append(err, fmt.Errorf("push: %w", _err))
		}
	}

	return err
}

type notifyJob struct {
	id    uint64
	ctx   context.Context
	ev    Event
	d     *Dispatcher
	start time.Time
}

var _ worker.Job = (*notifyJob)(nil)

func (j *notifyJob) ID() uint64 {
	return j.id
}

func (j *notifyJob) Context() context.Context {
	return j.ctx
}

func (j *notifyJob) PreExecute() error {
	return nil
}

func (j *notifyJob) Execute() error {
	return j.d.deliver(j.ctx, j.id, j.ev)
}

func (j *notifyJob) PostExecute(err error) {
	if err != nil {
		ylog.Error(j.ctx, "notification delivery failed",
			ylog.KV("job_id", j.id),
			ylog.KV("kind", j.ev.Kind),
			ylog.KV("ref", j.ev.Ref),
			ylog.KV("error", err),
		)
		return
	}

	ylog.Info(j.ctx, "notification delivered",
		ylog.KV("job_id", j.id),
		ylog.KV("kind", j.ev.Kind),
		ylog.KV("ref", j.ev.Ref),
		ylog.KV("elapsed", time.Since(j.start).String()),
	)
}
