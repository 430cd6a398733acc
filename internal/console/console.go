// Package console is the moderation view over the client store: the pending queue,
// the approved listing with its report counts and the report queue.
package console

import (
	"context"
	"fmt"
	"sort"

	"github.com/yusufsyaifudin/katalog/internal/viewstate"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
)

type Tab string

const (
	TabPending Tab = "pending"
	TabManage  Tab = "manage"
	TabReports Tab = "reports"
)

// SortReported orders by report count, ties go to the most clicked app.
const SortReported viewstate.Sort = "REPORTED"

// ManageSorts are the orders offered on the manage tab.
var ManageSorts = []viewstate.Sort{
	viewstate.SortNewest,
	viewstate.SortPopular,
	viewstate.SortFeatured,
	viewstate.SortAlphabetical,
	SortReported,
}

// DefaultCategory preselects the category of a new listing form.
const DefaultCategory = "DeFi"

// Store is the part of viewstate.Store the console drives.
type Store interface {
	LoadAdmin(ctx context.Context) error
	ReloadReports(ctx context.Context)
	AdminApps() []viewstate.App
	Reports() []viewstate.Report
	Sorted(apps []viewstate.App, mode viewstate.Sort) []viewstate.App

	AdminCreate(ctx context.Context, in httptyped.AppAdminCreateReq) (viewstate.App, error)
	Edit(ctx context.Context, id string, patch httptyped.AppUpdateReq) (viewstate.App, error)
	SetApproval(ctx context.Context, id string, approved bool) error
	ToggleFeatured(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Dismiss(ctx context.Context, reportID string) error
}

var _ Store = (*viewstate.Store)(nil)

type Console struct {
	store Store
}

func New(store Store) (*Console, error) {
	if store == nil {
		return nil, fmt.Errorf("console needs a store")
	}

	return &Console{store: store}, nil
}

// Load fills the admin cache and the reports.
func (c *Console) Load(ctx context.Context) error {
	if err := c.store.LoadAdmin(ctx); err != nil {
		return err
	}

	c.store.ReloadReports(ctx)
	return nil
}

// Pending lists unapproved apps, newest first.
func (c *Console) Pending() []viewstate.App {
	return Pending(c.store.AdminApps())
}

// Manage lists approved apps in mode, which is one of ManageSorts.
func (c *Console) Manage(mode viewstate.Sort) []viewstate.App {
	approved := make([]viewstate.App, 0)
	for _, app := range c.store.AdminApps() {
		if app.Approved {
			approved = append(approved, app)
		}
	}

	if mode == SortReported {
		SortByReports(approved, ReportCounts(c.store.Reports()))
		return approved
	}

	return c.store.Sorted(approved, mode)
}

// Reports lists every report, newest first.
func (c *Console) Reports() []viewstate.Report {
	return NewestReports(c.store.Reports())
}

// ReportCounts is computed from the current reports on each call.
func (c *Console) ReportCounts() map[string]int {
	return ReportCounts(c.store.Reports())
}

func (c *Console) Approve(ctx context.Context, id string) error {
	return c.store.SetApproval(ctx, id, true)
}

// Reject deletes a pending submission.
func (c *Console) Reject(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

// Unpublish moves an approved app back to the pending queue.
func (c *Console) Unpublish(ctx context.Context, id string) error {
	return c.store.SetApproval(ctx, id, false)
}

func (c *Console) ToggleFeatured(ctx context.Context, id string) error {
	return c.store.ToggleFeatured(ctx, id)
}

func (c *Console) Edit(ctx context.Context, id string, patch httptyped.AppUpdateReq) (viewstate.App, error) {
	return c.store.Edit(ctx, id, patch)
}

func (c *Console) Dismiss(ctx context.Context, reportID string) error {
	return c.store.Dismiss(ctx, reportID)
}

// Ban deletes the reported app together with all of its reports.
func (c *Console) Ban(ctx context.Context, appID string) error {
	return c.store.Delete(ctx, appID)
}

// NewForm is an empty listing form.
func NewForm() httptyped.AppAdminCreateReq {
	return httptyped.AppAdminCreateReq{Category: DefaultCategory}
}

// Create adds a listing. An empty category falls back to DefaultCategory.
func (c *Console) Create(ctx context.Context, form httptyped.AppAdminCreateReq) (viewstate.App, error) {
	if form.Category == "" {
		form.Category = DefaultCategory
	}

	return c.store.AdminCreate(ctx, form)
}

func Pending(apps []viewstate.App) []viewstate.App {
	out := make([]viewstate.App, 0)
	for _, app := range apps {
		if !app.Approved {
			out = append(out, app)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt > out[j].AddedAt
	})
	return out
}

// ReportCounts groups reports by app id.
func ReportCounts(reports []viewstate.Report) map[string]int {
	counts := make(map[string]int, len(reports))
	for _, r := range reports {
		counts[r.AppID]++
	}

	return counts
}

// SortByReports sorts apps in place by report count desc, then clicks desc. It is stable.
func SortByReports(apps []viewstate.App, counts map[string]int) {
	sort.SliceStable(apps, func(i, j int) bool {
		ci, cj := counts[apps[i].ID], counts[apps[j].ID]
		if ci != cj {
			return ci > cj
		}
		return apps[i].Clicks > apps[j].Clicks
	})
}

func NewestReports(reports []viewstate.Report) []viewstate.Report {
	out := append([]viewstate.Report{}, reports...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}
