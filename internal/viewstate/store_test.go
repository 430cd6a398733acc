package viewstate_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/katalog/internal/viewstate"
	"github.com/yusufsyaifudin/katalog/pkg/apiclient"
	"github.com/yusufsyaifudin/katalog/pkg/worker"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
)

var errDown = &apiclient.Error{Status: 500, Message: "Failed"}

// fakeClient is an in-memory API. Hooks run inside the call, before it answers.
type fakeClient struct {
	mu      sync.Mutex
	apps    []viewstate.App
	reports []viewstate.Report
	calls   []string
	nextID  int

	failUpdate  bool
	failClicks  bool
	failReports bool
	failDelete  bool
	failListAll bool

	updateHook func(call int)
	updates    int
}

var _ apiclient.Client = (*fakeClient)(nil)

func (f *fakeClient) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeClient) find(id string) (int, bool) {
	for i, app := range f.apps {
		if app.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (f *fakeClient) ListApproved(context.Context, apiclient.Filter) ([]httptyped.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListApproved")

	out := []httptyped.App{}
	for _, app := range f.apps {
		if app.Approved {
			out = append(out, app)
		}
	}
	return out, nil
}

func (f *fakeClient) ListAll(context.Context) ([]httptyped.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListAll")

	if f.failListAll {
		return nil, errDown
	}
	return append([]httptyped.App{}, f.apps...), nil
}

func (f *fakeClient) CreateApp(_ context.Context, in httptyped.AppCreateReq) (httptyped.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateApp")

	f.nextID++
	app := httptyped.App{
		ID: fmt.Sprintf("new-%d", f.nextID), Name: in.Name, Description: in.Description,
		URL: in.URL, Category: in.Category, Tags: []string{"New", "Community"},
	}
	f.apps = append(f.apps, app)
	return app, nil
}

func (f *fakeClient) AdminCreateApp(_ context.Context, in httptyped.AppAdminCreateReq) (httptyped.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AdminCreateApp")

	if in.Name == "" {
		return httptyped.App{}, &apiclient.Error{Status: 400, Message: "Missing required fields"}
	}

	f.nextID++
	app := httptyped.App{
		ID: fmt.Sprintf("new-%d", f.nextID), Name: in.Name, Description: in.Description, URL: in.URL,
		Category: in.Category, Tags: in.Tags, Featured: in.Featured, Approved: in.Approved,
	}
	f.apps = append(f.apps, app)
	return app, nil
}

func (f *fakeClient) UpdateApp(_ context.Context, id string, patch httptyped.AppUpdateReq) (httptyped.App, error) {
	f.mu.Lock()
	f.updates++
	call := f.updates
	hook := f.updateHook
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateApp")

	if f.failUpdate {
		return httptyped.App{}, errDown
	}

	i, ok := f.find(id)
	if !ok {
		return httptyped.App{}, &apiclient.Error{Status: 404, Message: "App not found"}
	}

	if patch.Name != nil {
		f.apps[i].Name = *patch.Name
	}
	if patch.Featured != nil {
		f.apps[i].Featured = *patch.Featured
	}
	if patch.Approved != nil {
		f.apps[i].Approved = *patch.Approved
	}
	return f.apps[i], nil
}

func (f *fakeClient) DeleteApp(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteApp")

	if f.failDelete {
		return errDown
	}

	i, ok := f.find(id)
	if !ok {
		return &apiclient.Error{Status: 404, Message: "App not found"}
	}
	f.apps = append(f.apps[:i], f.apps[i+1:]...)
	return nil
}

func (f *fakeClient) IncrementClicks(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("IncrementClicks")

	if f.failClicks {
		return 0, apiclient.ErrNetwork
	}

	i, ok := f.find(id)
	if !ok {
		return 0, &apiclient.Error{Status: 404, Message: "App not found"}
	}
	f.apps[i].Clicks++
	return f.apps[i].Clicks, nil
}

func (f *fakeClient) SetApproval(_ context.Context, id string, approved bool) (httptyped.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetApproval")

	i, ok := f.find(id)
	if !ok {
		return httptyped.App{}, &apiclient.Error{Status: 404, Message: "App not found"}
	}
	f.apps[i].Approved = approved
	return f.apps[i], nil
}

func (f *fakeClient) GetReports(context.Context) []httptyped.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetReports")

	if f.failReports {
		return []httptyped.Report{}
	}
	return append([]httptyped.Report{}, f.reports...)
}

func (f *fakeClient) CreateReport(_ context.Context, in httptyped.ReportCreateReq) (httptyped.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateReport")

	if _, ok := f.find(in.AppID); !ok {
		return httptyped.Report{}, &apiclient.Error{Status: 404, Message: "App not found"}
	}

	f.nextID++
	report := httptyped.Report{ID: fmt.Sprintf("r-%d", f.nextID), AppID: in.AppID, AppName: in.AppName, Reasons: in.Reasons}
	f.reports = append([]httptyped.Report{report}, f.reports...)
	return report, nil
}

func (f *fakeClient) DeleteReport(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteReport")

	for i, r := range f.reports {
		if r.ID == id {
			f.reports = append(f.reports[:i], f.reports[i+1:]...)
			return nil
		}
	}
	return &apiclient.Error{Status: 404, Message: "Report not found"}
}

func (f *fakeClient) DeleteReportsByApp(_ context.Context, appID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteReportsByApp")

	kept := []httptyped.Report{}
	for _, r := range f.reports {
		if r.AppID != appID {
			kept = append(kept, r)
		}
	}
	f.reports = kept
	return nil
}

func (f *fakeClient) Login(context.Context, string) (httptyped.SessionResp, error) {
	return httptyped.SessionResp{}, nil
}

func (f *fakeClient) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func seedClient() *fakeClient {
	return &fakeClient{
		apps: []viewstate.App{
			{ID: "a", Name: "Alpha", Category: "DeFi", Clicks: 1, Approved: true, AddedAt: 3},
			{ID: "b", Name: "Beta", Category: "Tools", Clicks: 4, Approved: true, AddedAt: 2},
			{ID: "p", Name: "Pending", Category: "NFT", Approved: false, AddedAt: 5},
		},
		reports: []viewstate.Report{
			{ID: "r1", AppID: "a", AppName: "Alpha", Reasons: []string{"Duplicate listing"}},
			{ID: "r2", AppID: "b", AppName: "Beta", Reasons: []string{"Spam or misleading"}},
		},
	}
}

func newStore(t *testing.T, client apiclient.Client) (*viewstate.Store, *worker.Worker) {
	t.Helper()

	w := worker.NewWorker(1, 16)
	t.Cleanup(w.Done)

	idGen, err := worker.NewIDGen(1)
	require.NoError(t, err)

	s, err := viewstate.New(viewstate.Config{Client: client, Worker: w, IDGen: idGen})
	require.NoError(t, err)
	return s, w
}

func TestNew_Invalid(t *testing.T) {
	_, err := viewstate.New(viewstate.Config{})
	assert.Error(t, err)
}

func TestStore_LoadPublic(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)

	require.NoError(t, s.LoadPublic(context.Background()))
	assert.Equal(t, []string{"a", "b"}, ids(s.Apps()))
	assert.Len(t, s.Reports(), 2)
	assert.False(t, s.AdminLoaded())

	client.failReports = true
	require.NoError(t, s.LoadPublic(context.Background()))
	assert.Empty(t, s.Reports())
}

func TestStore_VisibleUsesFilter(t *testing.T) {
	s, _ := newStore(t, seedClient())
	require.NoError(t, s.LoadPublic(context.Background()))

	// FEATURED by default, so clicks decide
	assert.Equal(t, []string{"b", "a"}, ids(s.Visible()))

	s.SetSort(viewstate.SortNewest)
	assert.Equal(t, []string{"a", "b"}, ids(s.Visible()))

	s.SetCategory("Tools")
	assert.Equal(t, []string{"b"}, ids(s.Visible()))

	s.SetCategory(viewstate.CategoryAll)
	s.SetSearch("alp")
	assert.Equal(t, []string{"a"}, ids(s.Visible()))

	s.ResetFilter()
	assert.Equal(t, viewstate.DefaultFilter(), s.Filter())
}

func TestStore_Click(t *testing.T) {
	client := seedClient()
	s, w := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))
	require.NoError(t, s.LoadAdmin(context.Background()))

	s.Click(context.Background(), "a")
	w.Done()

	assert.Equal(t, int64(2), s.Apps()[0].Clicks)
	admin := s.AdminApps()
	assert.Equal(t, int64(2), admin[0].Clicks)
	assert.Contains(t, client.callLog(), "IncrementClicks")
}

func TestStore_ClickFailureKeepsLocalValue(t *testing.T) {
	client := seedClient()
	client.failClicks = true

	s, w := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))

	s.Click(context.Background(), "b")
	w.Done()

	assert.Equal(t, int64(5), s.Apps()[1].Clicks)
}

func TestStore_ClickUnknownApp(t *testing.T) {
	client := seedClient()
	s, w := newStore(t, client)

	s.Click(context.Background(), "zzz")
	w.Done()

	assert.NotContains(t, client.callLog(), "IncrementClicks")
}

func TestStore_Submit(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))
	require.NoError(t, s.LoadAdmin(context.Background()))

	s.SetCategory("Tools")
	s.SetSearch("beta")

	app, err := s.Submit(context.Background(), viewstate.Submission{
		Name: "Foo", Description: "d", URL: "foo.example", Category: "Tools",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://foo.example", app.URL)
	assert.False(t, app.Approved)
	assert.NotContains(t, ids(s.Apps()), app.ID)
	assert.Equal(t, app.ID, s.AdminApps()[0].ID)
	assert.Equal(t, viewstate.Filter{Category: viewstate.CategoryAll, Search: "", Sort: viewstate.SortNewest}, s.Filter())
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://foo.example", viewstate.NormalizeURL("foo.example"))
	assert.Equal(t, "http://foo.example", viewstate.NormalizeURL(" http://foo.example "))
	assert.Equal(t, "HTTPS://foo.example", viewstate.NormalizeURL("HTTPS://foo.example"))
}

func TestStore_Report(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))

	report, err := s.Report(context.Background(), s.Apps()[1], []string{"Spam or misleading"})
	require.NoError(t, err)
	assert.Equal(t, report.ID, s.Reports()[0].ID)
	assert.Equal(t, "Beta", report.AppName)

	_, err = s.Report(context.Background(), viewstate.App{ID: "gone", Name: "Gone"}, []string{"Spam or misleading"})
	assert.Equal(t, 404, apiclient.StatusOf(err))
	assert.Len(t, s.Reports(), 3)
}

func TestStore_DeleteRemovesReportsFirst(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))
	require.NoError(t, s.LoadAdmin(context.Background()))

	require.NoError(t, s.Delete(context.Background(), "a"))

	calls := client.callLog()
	assert.Equal(t, []string{"DeleteReportsByApp", "DeleteApp"}, calls[len(calls)-2:])
	assert.NotContains(t, ids(s.Apps()), "a")
	assert.NotContains(t, ids(s.AdminApps()), "a")
	for _, r := range s.Reports() {
		assert.NotEqual(t, "a", r.AppID)
	}
}

func TestStore_DeleteFailureKeepsState(t *testing.T) {
	client := seedClient()
	client.failDelete = true

	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))

	assert.Error(t, s.Delete(context.Background(), "a"))
	assert.Contains(t, ids(s.Apps()), "a")
	assert.Len(t, s.Reports(), 2)
}

func TestStore_ApproveScenario(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))
	require.NoError(t, s.LoadAdmin(context.Background()))
	assert.NotContains(t, ids(s.Apps()), "p")

	require.NoError(t, s.SetApproval(context.Background(), "p", true))
	assert.Contains(t, ids(s.Apps()), "p")
	for _, app := range s.AdminApps() {
		if app.ID == "p" {
			assert.True(t, app.Approved)
		}
	}

	require.NoError(t, s.SetApproval(context.Background(), "p", false))
	assert.NotContains(t, ids(s.Apps()), "p")
}

func TestStore_ApproveKeepsPendingClicks(t *testing.T) {
	client := seedClient()
	client.failClicks = true
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))
	require.NoError(t, s.LoadAdmin(context.Background()))

	clicksOf := func(id string) int64 {
		for _, app := range s.Apps() {
			if app.ID == id {
				return app.Clicks
			}
		}
		t.Fatalf("app %s not listed", id)
		return 0
	}

	before := clicksOf("a")
	s.Click(context.Background(), "a")
	require.Equal(t, before+1, clicksOf("a"))

	require.NoError(t, s.SetApproval(context.Background(), "p", true))
	assert.Contains(t, ids(s.Apps()), "p")
	assert.Equal(t, before+1, clicksOf("a"))
}

func TestStore_ToggleFeatured(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))

	require.NoError(t, s.ToggleFeatured(context.Background(), "b"))
	assert.True(t, s.Apps()[1].Featured)

	client.failUpdate = true
	assert.Error(t, s.ToggleFeatured(context.Background(), "b"))
	assert.True(t, s.Apps()[1].Featured, "rolled back to the value before the failed toggle")

	assert.ErrorIs(t, s.ToggleFeatured(context.Background(), "zzz"), viewstate.ErrUnknownApp)
}

func TestStore_ToggleFeaturedIsOptimistic(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))

	var during bool
	client.updateHook = func(int) {
		during = s.Apps()[0].Featured
	}

	require.NoError(t, s.ToggleFeatured(context.Background(), "a"))
	assert.True(t, during)
}

func TestStore_EditDropsStaleResponse(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))

	first, second := "First", "Second"
	client.updateHook = func(call int) {
		if call != 1 {
			return
		}

		// a newer edit completes while the first one is still in flight
		_, err := s.Edit(context.Background(), "a", httptyped.AppUpdateReq{Name: &second})
		assert.NoError(t, err)
	}

	_, err := s.Edit(context.Background(), "a", httptyped.AppUpdateReq{Name: &first})
	require.NoError(t, err)

	assert.Equal(t, "Second", s.Apps()[0].Name)
}

func TestStore_EditUnapprovedLeavesPublicCache(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))

	approved := false
	_, err := s.Edit(context.Background(), "a", httptyped.AppUpdateReq{Approved: &approved})
	require.NoError(t, err)
	assert.NotContains(t, ids(s.Apps()), "a")
}

func TestStore_Dismiss(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))

	require.NoError(t, s.Dismiss(context.Background(), "r1"))
	assert.Len(t, s.Reports(), 1)
	assert.Equal(t, "r2", s.Reports()[0].ID)

	assert.Error(t, s.Dismiss(context.Background(), "r1"))
	assert.Len(t, s.Reports(), 1)
}

func TestStore_LoadAdminFailure(t *testing.T) {
	client := seedClient()
	client.failListAll = true

	s, _ := newStore(t, client)
	assert.Error(t, s.LoadAdmin(context.Background()))
	assert.False(t, s.AdminLoaded())
}

func TestStore_AdminCreate(t *testing.T) {
	client := seedClient()
	s, _ := newStore(t, client)
	require.NoError(t, s.LoadPublic(context.Background()))
	require.NoError(t, s.LoadAdmin(context.Background()))

	app, err := s.AdminCreate(context.Background(), httptyped.AppAdminCreateReq{
		Name: "Live", Description: "d", URL: "live.example", Category: "Tools", Approved: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://live.example", app.URL)
	assert.Contains(t, ids(s.Apps()), app.ID)
	assert.Equal(t, app.ID, s.AdminApps()[0].ID)

	draft, err := s.AdminCreate(context.Background(), httptyped.AppAdminCreateReq{
		Name: "Draft", Description: "d", URL: "https://draft.example", Category: "Tools",
	})
	require.NoError(t, err)
	assert.NotContains(t, ids(s.Apps()), draft.ID)

	_, err = s.AdminCreate(context.Background(), httptyped.AppAdminCreateReq{})
	assert.Equal(t, 400, apiclient.StatusOf(err))
}
