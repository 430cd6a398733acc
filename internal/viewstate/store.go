package viewstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yusufsyaifudin/katalog/pkg/apiclient"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/katalog/pkg/worker"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
	"github.com/yusufsyaifudin/ylog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var ErrUnknownApp = errors.New("app is not loaded")

type Config struct {
	Client apiclient.Client `validate:"required"`

	// Worker runs the click increments in background.
	Worker worker.Service `validate:"required"`
	IDGen  *worker.IDGen  `validate:"required"`
	Locale language.Tag   `validate:"-"`
}

// Submission is what a visitor fills in to list a new app.
type Submission struct {
	Name        string
	Description string
	URL         string
	Category    string
}

// Store holds two app caches: apps is the public listing and only ever contains approved apps,
// adminApps holds every app and is filled by LoadAdmin.
// Network calls run without the lock, state changes are applied under it.
type Store struct {
	client apiclient.Client
	worker worker.Service
	idGen  *worker.IDGen

	mu          sync.Mutex
	collator    *collate.Collator
	apps        []App
	adminApps   []App
	adminLoaded bool
	reports     []Report
	filter      Filter

	// seq is bumped by every mutation of an app, a response carrying an older number is dropped.
	seq map[string]uint64
}

func New(cfg Config) (*Store, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("viewstate config: %w", err)
	}

	locale := cfg.Locale
	if locale == language.Und {
		locale = language.English
	}

	return &Store{
		client:   cfg.Client,
		worker:   cfg.Worker,
		idGen:    cfg.IDGen,
		collator: NewCollator(locale),
		apps:     []App{},
		reports:  []Report{},
		filter:   DefaultFilter(),
		seq:      map[string]uint64{},
	}, nil
}

// LoadPublic fetches the public listing and the reports. Report failures leave an empty list.
func (s *Store) LoadPublic(ctx context.Context) error {
	apps, err := s.client.ListApproved(ctx, apiclient.Filter{})
	if err != nil {
		return fmt.Errorf("could not load apps: %w", err)
	}

	reports := s.client.GetReports(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.apps = approvedOnly(apps)
	s.reports = append([]Report{}, reports...)
	return nil
}

// LoadAdmin fetches every app for the admin view.
func (s *Store) LoadAdmin(ctx context.Context) error {
	apps, err := s.client.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("could not load admin apps: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.adminApps = append([]App{}, apps...)
	s.adminLoaded = true
	return nil
}

// ReloadReports refreshes the reports cache, failures leave an empty list.
func (s *Store) ReloadReports(ctx context.Context) {
	reports := s.client.GetReports(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append([]Report{}, reports...)
}

func (s *Store) Apps() []App {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]App{}, s.apps...)
}

func (s *Store) AdminApps() []App {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]App{}, s.adminApps...)
}

func (s *Store) AdminLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminLoaded
}

func (s *Store) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report{}, s.reports...)
}

func (s *Store) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *Store) SetCategory(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Category = category
}

func (s *Store) SetSearch(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Search = term
}

func (s *Store) SetSort(mode Sort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Sort = mode
}

// ResetFilter restores DefaultFilter.
func (s *Store) ResetFilter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = DefaultFilter()
}

// Visible is the public listing under the current filter and sort.
func (s *Store) Visible() []App {
	s.mu.Lock()
	defer s.mu.Unlock()

	apps := FilterApps(s.apps, s.filter)
	SortApps(apps, s.filter.Sort, s.collator)
	return apps
}

// Sorted returns a sorted copy of apps using the store locale.
func (s *Store) Sorted(apps []App, mode Sort) []App {
	out := append([]App{}, apps...)

	s.mu.Lock()
	defer s.mu.Unlock()

	SortApps(out, mode, s.collator)
	return out
}

// Click counts an outbound visit. The local counter moves at once and the server increment runs in background.
// A failed increment is only logged, the local value is kept.
func (s *Store) Click(ctx context.Context, id string) {
	s.mu.Lock()
	found := updateApp(s.apps, id, func(app *App) { app.Clicks++ })
	if updateApp(s.adminApps, id, func(app *App) { app.Clicks++ }) {
		found = true
	}
	s.mu.Unlock()

	if !found {
		return
	}

	jobID, err := s.idGen.NextID()
	if err != nil {
		ylog.Error(ctx, "click not sent, no job id", ylog.KV("app_id", id), ylog.KV("error", err))
		return
	}

	job := &clickJob{
		id:     jobID,
		ctx:    context.WithoutCancel(ctx),
		appID:  id,
		client: s.client,
	}

	if err = s.worker.TryAddJob(job); err != nil {
		ylog.Error(ctx, "click not sent", ylog.KV("app_id", id), ylog.KV("error", err))
	}
}

// Submit sends a new listing for review. The created app is unapproved so it never enters the public cache.
// On success the filter goes back to all categories sorted by newest.
func (s *Store) Submit(ctx context.Context, sub Submission) (App, error) {
	app, err := s.client.CreateApp(ctx, httptyped.AppCreateReq{
		Name:        strings.TrimSpace(sub.Name),
		Description: strings.TrimSpace(sub.Description),
		URL:         NormalizeURL(sub.URL),
		Category:    sub.Category,
	})
	if err != nil {
		return App{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = Filter{Category: CategoryAll, Search: "", Sort: SortNewest}
	if s.adminLoaded {
		s.adminApps = append([]App{app}, s.adminApps...)
	}

	return app, nil
}

// AdminCreate adds a listing from the console. A pre-approved app enters the public cache at once.
func (s *Store) AdminCreate(ctx context.Context, in httptyped.AppAdminCreateReq) (App, error) {
	in.URL = NormalizeURL(in.URL)

	app, err := s.client.AdminCreateApp(ctx, in)
	if err != nil {
		return App{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adminLoaded {
		s.adminApps = append([]App{app}, s.adminApps...)
	}

	if app.Approved {
		s.apps = upsertApp(s.apps, app)
	}

	return app, nil
}

// Report files reasons against app. State is only touched on success.
func (s *Store) Report(ctx context.Context, app App, reasons []string) (Report, error) {
	report, err := s.client.CreateReport(ctx, httptyped.ReportCreateReq{
		AppID:   app.ID,
		AppName: app.Name,
		Reasons: reasons,
	})
	if err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append([]Report{report}, s.reports...)
	return report, nil
}

// Delete removes the reports of an app, then the app. Both caches and the local reports are purged on success.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.bump(id)

	if err := s.client.DeleteReportsByApp(ctx, id); err != nil {
		return fmt.Errorf("delete reports of app: %w", err)
	}

	if err := s.client.DeleteApp(ctx, id); err != nil {
		return fmt.Errorf("delete app: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.apps = removeApp(s.apps, id)
	s.adminApps = removeApp(s.adminApps, id)
	s.reports = removeReports(s.reports, func(r Report) bool { return r.AppID == id })
	return nil
}

// SetApproval approves or rejects an app. Approving reloads the public cache so the app shows up at once,
// un-approving drops it from the public cache.
func (s *Store) SetApproval(ctx context.Context, id string, approved bool) error {
	seq := s.bump(id)

	app, err := s.client.SetApproval(ctx, id, approved)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.current(ctx, id, seq, "approve") {
		s.mu.Unlock()
		return nil
	}

	replaceApp(s.adminApps, app)
	if !app.Approved {
		s.apps = removeApp(s.apps, id)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	public, err := s.client.ListApproved(ctx, apiclient.Filter{})
	if err != nil {
		ylog.Error(ctx, "public listing refresh failed after approval", ylog.KV("app_id", id), ylog.KV("error", err))

		s.mu.Lock()
		defer s.mu.Unlock()
		s.apps = upsertApp(s.apps, app)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = keepLocalClicks(approvedOnly(public), s.apps)
	return nil
}

// ToggleFeatured flips the featured flag locally and then on the server. A failure reverts the flag.
func (s *Store) ToggleFeatured(ctx context.Context, id string) error {
	s.mu.Lock()
	prev, ok := findApp(s.apps, id)
	if !ok {
		prev, ok = findApp(s.adminApps, id)
	}
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}

	next := !prev.Featured
	s.seq[id]++
	seq := s.seq[id]
	s.setFeatured(id, next)
	s.mu.Unlock()

	app, err := s.client.UpdateApp(ctx, id, httptyped.AppUpdateReq{Featured: &next})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if s.current(ctx, id, seq, "feature rollback") {
			s.setFeatured(id, prev.Featured)
		}
		return err
	}

	if s.current(ctx, id, seq, "feature") {
		s.applyServerApp(app)
	}

	return nil
}

// Edit applies an admin patch and replaces the entity in both caches with the server answer.
func (s *Store) Edit(ctx context.Context, id string, patch httptyped.AppUpdateReq) (App, error) {
	seq := s.bump(id)

	app, err := s.client.UpdateApp(ctx, id, patch)
	if err != nil {
		return App{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current(ctx, id, seq, "edit") {
		s.applyServerApp(app)
	}

	return app, nil
}

// Dismiss deletes one report.
func (s *Store) Dismiss(ctx context.Context, reportID string) error {
	if err := s.client.DeleteReport(ctx, reportID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = removeReports(s.reports, func(r Report) bool { return r.ID == reportID })
	return nil
}

func (s *Store) bump(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[id]++
	return s.seq[id]
}

// current must be called with the lock held.
func (s *Store) current(ctx context.Context, id string, seq uint64, op string) bool {
	if s.seq[id] == seq {
		return true
	}

	ylog.Info(ctx, "stale response dropped",
		ylog.KV("op", op),
		ylog.KV("app_id", id),
		ylog.KV("seq", seq),
		ylog.KV("latest_seq", s.seq[id]),
	)
	return false
}

// setFeatured must be called with the lock held.
func (s *Store) setFeatured(id string, featured bool) {
	updateApp(s.apps, id, func(app *App) { app.Featured = featured })
	updateApp(s.adminApps, id, func(app *App) { app.Featured = featured })
}

// applyServerApp must be called with the lock held. The public cache only keeps approved entities.
func (s *Store) applyServerApp(app App) {
	replaceApp(s.adminApps, app)

	if !app.Approved {
		s.apps = removeApp(s.apps, app.ID)
		return
	}

	replaceApp(s.apps, app)
}

// NormalizeURL adds https:// when the url has no http or https scheme.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}

	return "https://" + u
}

func approvedOnly(apps []App) []App {
	out := make([]App, 0, len(apps))
	for _, app := range apps {
		if app.Approved {
			out = append(out, app)
		}
	}

	return out
}

// keepLocalClicks keeps the higher click count of each app, a click whose
// background increment has not reached the server yet stays counted.
func keepLocalClicks(fresh, local []App) []App {
	for i := range fresh {
		if prev, ok := findApp(local, fresh[i].ID); ok && prev.Clicks > fresh[i].Clicks {
			fresh[i].Clicks = prev.Clicks
		}
	}

	return fresh
}

func findApp(apps []App, id string) (App, bool) {
	for _, app := range apps {
		if app.ID == id {
			return app, true
		}
	}

	return App{}, false
}

func updateApp(apps []App, id string, fn func(app *App)) bool {
	for i := range apps {
		if apps[i].ID == id {
			fn(&apps[i])
			return true
		}
	}

	return false
}

func replaceApp(apps []App, app App) bool {
	return updateApp(apps, app.ID, func(dst *App) { *dst = app })
}

func upsertApp(apps []App, app App) []App {
	if replaceApp(apps, app) {
		return apps
	}

	return append([]App{app}, apps...)
}

func removeApp(apps []App, id string) []App {
	out := apps[:0:0]
	for _, app := range apps {
		if app.ID != id {
			out = append(out, app)
		}
	}

	return out
}

func removeReports(reports []Report, drop func(r Report) bool) []Report {
	out := make([]Report, 0, len(reports))
	for _, r := range reports {
		if !drop(r) {
			out = append(out, r)
		}
	}

	return out
}
