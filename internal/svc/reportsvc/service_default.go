package reportsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/satori/uuid"
	"github.com/yusufsyaifudin/katalog/internal/svc/notifysvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportrepo"
	"github.com/yusufsyaifudin/katalog/internal/svc/svcerr"
	"github.com/yusufsyaifudin/katalog/pkg/tracer"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/trace"
)

const reasonTag = "reportreason"

func init() {
	validator.MustRegisterStringSet(reasonTag, Reasons)
}

type Config struct {
	ReportRepo reportrepo.Repo   `validate:"required"`
	Notifier   notifysvc.Service `validate:"required"`

	Now   func() time.Time `validate:"-"`
	NewID func() string    `validate:"-"`
}

type ServiceDefault struct {
	Config Config
}

var _ Service = (*ServiceDefault)(nil)

func New(cfg Config) (svc *ServiceDefault, err error) {
	err = validator.Validate(cfg)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.NewID == nil {
		cfg.NewID = func() string {
			return uuid.NewV4().String()
		}
	}

	svc = &ServiceDefault{
		Config: cfg,
	}

	return
}

func (s *ServiceDefault) List(ctx context.Context) (out OutList, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "reportsvc.List")
	defer span.End()

	outList, err := s.Config.ReportRepo.List(ctx)
	if err != nil {
		err = svcerr.Wrap(ErrPersistence, "Failed to fetch reports", err)
		return
	}

	reports := make([]Report, 0, len(outList.Reports))
	for _, r := range outList.Reports {
		reports = append(reports, ReportFromRepo(r))
	}

	out = OutList{Reports: reports}
	return
}

func (s *ServiceDefault) Create(ctx context.Context, in InputCreate) (out OutCreate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "reportsvc.Create")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = svcerr.Wrap(ErrValidation, MsgMissingFields, err)
		return
	}

	err = validator.Var(in.Reasons, "dive,"+reasonTag)
	if err != nil {
		err = svcerr.Wrap(ErrValidation, MsgInvalidReason, err)
		return
	}

	if _, parseErr := uuid.FromString(in.AppID); parseErr != nil {
		err = svcerr.Wrap(ErrNotFound, MsgAppNotFound, parseErr)
		return
	}

	outCreate, err := s.Config.ReportRepo.Create(ctx, reportrepo.InputCreate{
		Report: reportrepo.Report{
			ID:        s.Config.NewID(),
			AppID:     in.AppID,
			AppName:   in.AppName,
			Reasons:   reportrepo.Reasons(dedupe(in.Reasons)),
			Timestamp: s.Config.Now().UnixMilli(),
		},
	})
	if errors.Is(err, reportrepo.ErrAppNotFound) {
		err = svcerr.Wrap(ErrNotFound, MsgAppNotFound, err)
		return
	}

	if err != nil {
		err = svcerr.Wrap(ErrPersistence, "Failed to create report", err)
		return
	}

	out = OutCreate{Report: ReportFromRepo(outCreate.Report)}

	notifyErr := s.Config.Notifier.Notify(ctx, notifysvc.Event{
		Kind:    notifysvc.KindReportFiled,
		Subject: fmt.Sprintf("New report on %s", out.Report.AppName),
		Body:    fmt.Sprintf("%s was reported for: %s", out.Report.AppName, strings.Join(out.Report.Reasons, ", ")),
		Ref:     out.Report.ID,
	})
	if notifyErr != nil {
		ylog.Error(ctx, "cannot notify moderators of new report", ylog.KV("error", notifyErr), ylog.KV("report_id", out.Report.ID))
	}

	return
}

func (s *ServiceDefault) Delete(ctx context.Context, in InputDelete) (out OutDelete, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "reportsvc.Delete")
	defer span.End()

	if _, parseErr := uuid.FromString(in.ID); parseErr != nil {
		err = svcerr.Wrap(ErrNotFound, MsgNotFound, parseErr)
		return
	}

	_, err = s.Config.ReportRepo.Delete(ctx, reportrepo.InputDelete{ID: in.ID})
	if errors.Is(err, reportrepo.ErrNotFound) {
		err = svcerr.Wrap(ErrNotFound, MsgNotFound, err)
		return
	}

	if err != nil {
		err = svcerr.Wrap(ErrPersistence, "Failed to delete report", err)
		return
	}

	return
}

// DeleteByApp removes every report of the app. An app without reports, or an unknown app, deletes nothing.
func (s *ServiceDefault) DeleteByApp(ctx context.Context, in InputDeleteByApp) (out OutDeleteByApp, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "reportsvc.DeleteByApp")
	defer span.End()

	if _, parseErr := uuid.FromString(in.AppID); parseErr != nil {
		return
	}

	outDel, err := s.Config.ReportRepo.DeleteByApp(ctx, reportrepo.InputDeleteByApp{AppID: in.AppID})
	if err != nil {
		err = svcerr.Wrap(ErrPersistence, "Failed to delete reports", err)
		return
	}

	out = OutDeleteByApp{Deleted: outDel.Deleted}
	return
}

func ReportFromRepo(r reportrepo.Report) Report {
	reasons := make([]string, len(r.Reasons))
	copy(reasons, r.Reasons)

	return Report{
		ID:        r.ID,
		AppID:     r.AppID,
		AppName:   r.AppName,
		Reasons:   reasons,
		Timestamp: time.UnixMilli(r.Timestamp).UTC(),
	}
}

// dedupe keeps the first occurrence of every reason.
func dedupe(reasons []string) []string {
	seen := make(map[string]struct{}, len(reasons))
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}

	return out
}
