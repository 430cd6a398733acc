package container

import (
	"context"
	"fmt"
	"io"

	"github.com/yusufsyaifudin/katalog/internal/svc/appsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/authsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/notifysvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportsvc"
	"github.com/yusufsyaifudin/katalog/pkg/mailclient"
	"github.com/yusufsyaifudin/katalog/pkg/pushclient"
	"github.com/yusufsyaifudin/katalog/pkg/worker"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

type Services interface {
	io.Closer

	App() appsvc.Service
	Report() reportsvc.Service
	Auth() authsvc.Service
	Notifier() notifysvc.Service
}

type ServicesImpl struct {
	app      appsvc.Service
	report   reportsvc.Service
	auth     authsvc.Service
	notifier notifysvc.Service
	closer   []Closer
}

var _ Services = (*ServicesImpl)(nil)

func SetupServices(svcCfg ConfigServices, repos Repositories) (svc *ServicesImpl, err error) {
	if repos == nil {
		err = fmt.Errorf("nil repositories on services preparation")
		return
	}

	svc = &ServicesImpl{
		closer: make([]Closer, 0),
	}

	defer func() {
		if err == nil {
			return
		}

		if _err := svc.Close(); _err != nil {
			err = multierr.Append(err, _err)
		}

		svc = nil
	}()

	// ** Prepare moderator notification first, app and report service depend on it
	svc.notifier, err = svc.setupNotifier(svcCfg.Notify)
	if err != nil {
		err = fmt.Errorf("services cannot prepare notifier: %w", err)
		return
	}

	// ** Prepare app service at once
	appRepo, err := repos.AppRepo(svcCfg.App.DBLabel)
	if err != nil {
		err = fmt.Errorf("services cannot get app repo: %w", err)
		return
	}

	svc.app, err = appsvc.New(appsvc.DefaultServiceConfig{
		AppRepo:  appRepo,
		Notifier: svc.notifier,
	})
	if err != nil {
		err = fmt.Errorf("services cannot prepare app service: %w", err)
		return
	}

	// ** Prepare report service
	reportRepo, err := repos.ReportRepo(svcCfg.Report.DBLabel)
	if err != nil {
		err = fmt.Errorf("services cannot get report repo: %w", err)
		return
	}

	svc.report, err = reportsvc.New(reportsvc.Config{
		ReportRepo: reportRepo,
		Notifier:   svc.notifier,
	})
	if err != nil {
		err = fmt.Errorf("services cannot prepare report service: %w", err)
		return
	}

	// ** Prepare admin session
	svc.auth, err = authsvc.New(authsvc.Config{
		PasswordHash: svcCfg.Auth.PasswordHash,
		Secret:       []byte(svcCfg.Auth.Secret),
		TTL:          svcCfg.Auth.TTL,
		Issuer:       svcCfg.Auth.Issuer,
	})
	if err != nil {
		err = fmt.Errorf("services cannot prepare auth service: %w", err)
		return
	}

	return svc, nil
}

// setupNotifier returns notifysvc.Noop when neither mail nor push is enabled.
func (s *ServicesImpl) setupNotifier(cfg ConfigServiceNotify) (notifysvc.Service, error) {
	if !cfg.Mail.Enable && !cfg.Push.Enable {
		return notifysvc.Noop{}, nil
	}

	idGen, err := worker.NewIDGen(cfg.MachineID)
	if err != nil {
		return nil, err
	}

	dispatcherCfg := notifysvc.DispatcherConfig{
		IDGen:   idGen,
		Timeout: cfg.Timeout,
	}

	if cfg.Mail.Enable {
		credential := cfg.Mail.Credential
		mailer, err := mailclient.NewSmtp(&mailclient.SmtpMailerConfig{
			EmailCredential: &credential,
		})
		if err != nil {
			return nil, fmt.Errorf("mail client: %w", err)
		}

		s.closer = append(s.closer, NewNamedCloser("smtp", mailer))
		dispatcherCfg.Mailer = mailer
		dispatcherCfg.MailFrom = cfg.Mail.From
		dispatcherCfg.MailTo = cfg.Mail.To
	}

	if cfg.Push.Enable {
		pusher, err := pushclient.NewFCM(pushclient.Config{
			ServerKey: cfg.Push.ServerKey,
		})
		if err != nil {
			return nil, fmt.Errorf("push client: %w", err)
		}

		dispatcherCfg.Pusher = pusher
		dispatcherCfg.PushTopic = cfg.Push.Topic
	}

	pool := worker.NewWorker(cfg.MaxParallel, cfg.MaxBuffer)
	dispatcherCfg.Worker = pool

	// registered after the mailer, Close runs in reverse so queued mails drain before smtp quits
	s.closer = append(s.closer, NewNamedFunc("notify worker", pool.Done))

	return notifysvc.NewDispatcher(dispatcherCfg)
}

func (s *ServicesImpl) App() appsvc.Service {
	return s.app
}

func (s *ServicesImpl) Report() reportsvc.Service {
	return s.report
}

func (s *ServicesImpl) Auth() authsvc.Service {
	return s.auth
}

func (s *ServicesImpl) Notifier() notifysvc.Service {
	return s.notifier
}

// Close drains pending notifications and releases the notification channels.
func (s *ServicesImpl) Close() error {
	if s == nil {
		return nil
	}

	ctx := context.Background()

	var err error
	for i := len(s.closer) - 1; i >= 0; i-- {
		c := s.closer[i]
		if _err := c.Close(); _err != nil {
			err = multierr.Append(err, fmt.Errorf("close %s error: %w", c.Name(), _err))
			continue
		}

		ylog.Debug(ctx, fmt.Sprintf("services: %s success to close", c.Name()))
	}

	s.closer = nil
	return err
}
