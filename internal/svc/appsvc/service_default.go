package appsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/satori/uuid"
	"github.com/yusufsyaifudin/katalog/internal/svc/apprepo"
	"github.com/yusufsyaifudin/katalog/internal/svc/notifysvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/svcerr"
	"github.com/yusufsyaifudin/katalog/pkg/tracer"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/trace"
)

const categoryTag = "appcategory"

func init() {
	validator.MustRegisterStringSet(categoryTag, Categories)
}

type DefaultServiceConfig struct {
	AppRepo  apprepo.Repo      `validate:"required"`
	Notifier notifysvc.Service `validate:"required"`

	// Now and NewID default to the wall clock and random UUID v4.
	Now   func() time.Time `validate:"-"`
	NewID func() string    `validate:"-"`
}

type DefaultService struct {
	Config DefaultServiceConfig
}

var _ Service = (*DefaultService)(nil)

func New(dep DefaultServiceConfig) (*DefaultService, error) {
	if err := validator.Validate(dep); err != nil {
		return nil, err
	}

	if dep.Now == nil {
		dep.Now = time.Now
	}

	if dep.NewID == nil {
		dep.NewID = func() string {
			return uuid.NewV4().String()
		}
	}

	return &DefaultService{
		Config: dep,
	}, nil
}

func (d *DefaultService) ListApproved(ctx context.Context, in InputListApproved) (out OutList, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "appsvc.ListApproved")
	defer span.End()

	outList, err := d.Config.AppRepo.ListApproved(ctx)
	if err != nil {
		err = svcerr.Wrap(ErrPersistence, "Failed to fetch apps", err)
		return
	}

	apps := make([]App, 0, len(outList.Apps))
	for _, app := range outList.Apps {
		// the store filters too, but a cached listing must never leak a rejected app
		if !app.Approved || !matchFilter(app, in.Category, in.Search) {
			continue
		}

		apps = append(apps, AppFromRepo(app))
	}

	out = OutList{Apps: apps}
	return
}

func (d *DefaultService) ListAll(ctx context.Context) (out OutList, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "appsvc.ListAll")
	defer span.End()

	outList, err := d.Config.AppRepo.ListAll(ctx)
	if err != nil {
		err = svcerr.Wrap(ErrPersistence, "Failed to fetch apps", err)
		return
	}

	out = OutList{Apps: appsFromRepo(outList.Apps)}
	return
}

// Create stores a public submission. It waits for review, so it is never approved nor featured.
func (d *DefaultService) Create(ctx context.Context, in InputCreate) (out OutCreate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "appsvc.Create")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = svcerr.Wrap(ErrValidation, MsgMissingFields, err)
		return
	}

	out, err = d.create(ctx, apprepo.App{
		Name:        in.Name,
		Description: in.Description,
		URL:         in.URL,
		Category:    in.Category,
		Tags:        apprepo.Tags(DefaultTags),
	})
	if err != nil {
		return
	}

	notifyErr := d.Config.Notifier.Notify(ctx, notifysvc.Event{
		Kind:    notifysvc.KindAppSubmitted,
		Subject: fmt.Sprintf("New app submission: %s", out.App.Name),
		Body: fmt.Sprintf("%s (%s) was submitted in %s and is waiting for review.\n\n%s",
			out.App.Name, out.App.URL, out.App.Category, out.App.Description),
		Ref: out.App.ID,
	})
	if notifyErr != nil {
		ylog.Error(ctx, "cannot notify moderators of new submission", ylog.KV("error", notifyErr), ylog.KV("app_id", out.App.ID))
	}

	return
}

func (d *DefaultService) AdminCreate(ctx context.Context, in InputAdminCreate) (out OutCreate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "appsvc.AdminCreate")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = svcerr.Wrap(ErrValidation, MsgMissingFields, err)
		return
	}

	tags := in.Tags
	if tags == nil {
		tags = DefaultTags
	}

	return d.create(ctx, apprepo.App{
		Name:        in.Name,
		Description: in.Description,
		URL:         in.URL,
		Category:    in.Category,
		Tags:        apprepo.Tags(tags),
		Featured:    in.Featured,
		Approved:    in.Approved,
	})
}

func (d *DefaultService) create(ctx context.Context, app apprepo.App) (out OutCreate, err error) {
	err = validator.Var(app.Category, categoryTag)
	if err != nil {
		err = svcerr.Wrap(ErrValidation, MsgInvalidCategory, err)
		return
	}

	app.ID = d.Config.NewID()
	app.AddedAt = d.Config.Now().UnixMilli()
	app.Clicks = 0

	outCreate, err := d.Config.AppRepo.Create(ctx, apprepo.InputCreate{
		App: app,
	})
	if err != nil {
		err = svcerr.Wrap(ErrPersistence, "Failed to create app", err)
		return
	}

	out = OutCreate{
		App: AppFromRepo(outCreate.App),
	}
	return
}

func (d *DefaultService) Update(ctx context.Context, in InputUpdate) (out OutUpdate, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "appsvc.Update")
	defer span.End()

	patch := apprepo.Patch{
		Name:        in.Name,
		Description: in.Description,
		URL:         in.URL,
		Category:    in.Category,
		Tags:        in.Tags,
		Featured:    in.Featured,
		Approved:    in.Approved,
	}

	if patch.Empty() {
		err = svcerr.New(ErrNoFields, MsgNoFields)
		return
	}

	if patch.Category != nil {
		if err = validator.Var(*patch.Category, categoryTag); err != nil {
			err = svcerr.Wrap(ErrValidation, MsgInvalidCategory, err)
			return
		}
	}

	if !validID(in.ID) {
		err = svcerr.New(ErrNotFound, MsgNotFound)
		return
	}

	outUpdate, err := d.Config.AppRepo.Update(ctx, apprepo.InputUpdate{
		ID:    in.ID,
		Patch: patch,
	})
	if err != nil {
		err = repoErr(err, "Failed to update app")
		return
	}

	out = OutUpdate{App: AppFromRepo(outUpdate.App)}
	return
}

func (d *DefaultService) Delete(ctx context.Context, in InputDelete) (out OutDelete, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "appsvc.Delete")
	defer span.End()

	if !validID(in.ID) {
		err = svcerr.New(ErrNotFound, MsgNotFound)
		return
	}

	outDelete, err := d.Config.AppRepo.Delete(ctx, apprepo.InputDelete{ID: in.ID})
	if err != nil {
		err = repoErr(err, "Failed to delete app")
		return
	}

	ylog.Info(ctx, "app deleted", ylog.KV("app_id", in.ID), ylog.KV("reports_deleted", outDelete.ReportsDeleted))
	out = OutDelete{ReportsDeleted: outDelete.ReportsDeleted}
	return
}

func (d *DefaultService) IncrementClicks(ctx context.Context, in InputIncrementClicks) (out OutIncrementClicks, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "appsvc.IncrementClicks")
	defer span.End()

	if !validID(in.ID) {
		err = svcerr.New(ErrNotFound, MsgNotFound)
		return
	}

	outClicks, err := d.Config.AppRepo.IncrementClicks(ctx, apprepo.InputIncrementClicks{ID: in.ID})
	if err != nil {
		err = repoErr(err, "Failed to update clicks")
		return
	}

	out = OutIncrementClicks{Clicks: outClicks.Clicks}
	return
}

func (d *DefaultService) SetApproval(ctx context.Context, in InputSetApproval) (out OutSetApproval, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "appsvc.SetApproval")
	defer span.End()

	if !validID(in.ID) {
		err = svcerr.New(ErrNotFound, MsgNotFound)
		return
	}

	outApproval, err := d.Config.AppRepo.SetApproval(ctx, apprepo.InputSetApproval{
		ID:       in.ID,
		Approved: in.Approved,
	})
	if err != nil {
		err = repoErr(err, "Failed to update approval status")
		return
	}

	out = OutSetApproval{App: AppFromRepo(outApproval.App)}
	return
}

// repoErr maps a repository error to the service taxonomy.
func repoErr(err error, failMsg string) error {
	switch {
	case errors.Is(err, apprepo.ErrNotFound):
		return svcerr.Wrap(ErrNotFound, MsgNotFound, err)
	case errors.Is(err, apprepo.ErrEmptyPatch):
		return svcerr.Wrap(ErrNoFields, MsgNoFields, err)
	case errors.Is(err, apprepo.ErrValidation):
		return svcerr.Wrap(ErrValidation, MsgMissingFields, err)
	default:
		return svcerr.Wrap(ErrPersistence, failMsg, err)
	}
}
