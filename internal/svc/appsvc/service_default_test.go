package appsvc_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/katalog/internal/svc/apprepo"
	"github.com/yusufsyaifudin/katalog/internal/svc/appsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/notifysvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/svcerr"
)

// fakeRepo is an in-memory apprepo.Repo with the same ordering and not-found rules as postgres.
type fakeRepo struct {
	mu      sync.Mutex
	apps    map[string]apprepo.App
	reports map[string]int64
	failAll error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{apps: map[string]apprepo.App{}, reports: map[string]int64{}}
}

func (f *fakeRepo) sorted(approvedOnly bool) []apprepo.App {
	out := make([]apprepo.App, 0)
	for _, a := range f.apps {
		if approvedOnly && !a.Approved {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt > out[j].AddedAt })
	return out
}

func (f *fakeRepo) ListApproved(_ context.Context) (apprepo.OutList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return apprepo.OutList{}, f.failAll
	}
	return apprepo.OutList{Apps: f.sorted(true)}, nil
}

func (f *fakeRepo) ListAll(_ context.Context) (apprepo.OutList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return apprepo.OutList{}, f.failAll
	}
	return apprepo.OutList{Apps: f.sorted(false)}, nil
}

func (f *fakeRepo) Create(_ context.Context, in apprepo.InputCreate) (apprepo.OutCreate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return apprepo.OutCreate{}, f.failAll
	}
	f.apps[in.App.ID] = in.App
	return apprepo.OutCreate{App: in.App}, nil
}

func (f *fakeRepo) Update(_ context.Context, in apprepo.InputUpdate) (apprepo.OutUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if in.Patch.Empty() {
		return apprepo.OutUpdate{}, apprepo.ErrEmptyPatch
	}

	a, ok := f.apps[in.ID]
	if !ok {
		return apprepo.OutUpdate{}, apprepo.ErrNotFound
	}

	p := in.Patch
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.URL != nil {
		a.URL = *p.URL
	}
	if p.Category != nil {
		a.Category = *p.Category
	}
	if p.Tags != nil {
		a.Tags = apprepo.Tags(*p.Tags)
	}
	if p.Featured != nil {
		a.Featured = *p.Featured
	}
	if p.Approved != nil {
		a.Approved = *p.Approved
	}

	f.apps[in.ID] = a
	return apprepo.OutUpdate{App: a}, nil
}

func (f *fakeRepo) Delete(_ context.Context, in apprepo.InputDelete) (apprepo.OutDelete, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.apps[in.ID]; !ok {
		return apprepo.OutDelete{}, apprepo.ErrNotFound
	}

	n := f.reports[in.ID]
	delete(f.reports, in.ID)
	delete(f.apps, in.ID)
	return apprepo.OutDelete{ReportsDeleted: n}, nil
}

func (f *fakeRepo) IncrementClicks(_ context.Context, in apprepo.InputIncrementClicks) (apprepo.OutIncrementClicks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.apps[in.ID]
	if !ok {
		return apprepo.OutIncrementClicks{}, apprepo.ErrNotFound
	}
	a.Clicks++
	f.apps[in.ID] = a
	return apprepo.OutIncrementClicks{Clicks: a.Clicks}, nil
}

func (f *fakeRepo) SetApproval(_ context.Context, in apprepo.InputSetApproval) (apprepo.OutSetApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.apps[in.ID]
	if !ok {
		return apprepo.OutSetApproval{}, apprepo.ErrNotFound
	}
	a.Approved = in.Approved
	f.apps[in.ID] = a
	return apprepo.OutSetApproval{App: a}, nil
}

type recordNotifier struct {
	mu     sync.Mutex
	events []notifysvc.Event
	err    error
}

func (r *recordNotifier) Notify(_ context.Context, ev notifysvc.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

type fixture struct {
	svc      *appsvc.DefaultService
	repo     *fakeRepo
	notifier *recordNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:     newFakeRepo(),
		notifier: &recordNotifier{},
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	seq := 0
	svc, err := appsvc.New(appsvc.DefaultServiceConfig{
		AppRepo:  f.repo,
		Notifier: f.notifier,
		Now: func() time.Time {
			f.now = f.now.Add(time.Second)
			return f.now
		},
		NewID: func() string {
			seq++
			return fmt.Sprintf("00000000-0000-4000-8000-%012d", seq)
		},
	})
	require.NoError(t, err)

	f.svc = svc
	return f
}

func validCreate(name string) appsvc.InputCreate {
	return appsvc.InputCreate{
		Name:        name,
		Description: name + " description",
		URL:         "https://" + name + ".io",
		Category:    "Tools",
	}
}

func TestNew(t *testing.T) {
	_, err := appsvc.New(appsvc.DefaultServiceConfig{})
	assert.Error(t, err)
}

func TestDefaultService_Create(t *testing.T) {
	t.Run("defaults of a public submission", func(t *testing.T) {
		f := newFixture(t)

		out, err := f.svc.Create(context.Background(), validCreate("foo"))
		require.NoError(t, err)

		assert.NotEmpty(t, out.App.ID)
		assert.Equal(t, []string{"New", "Community"}, out.App.Tags)
		assert.Equal(t, int64(0), out.App.Clicks)
		assert.False(t, out.App.Featured)
		assert.False(t, out.App.Approved)
		assert.Equal(t, f.now, out.App.AddedAt)

		// unapproved never reaches the public listing
		list, err := f.svc.ListApproved(context.Background(), appsvc.InputListApproved{})
		require.NoError(t, err)
		assert.Empty(t, list.Apps)

		all, err := f.svc.ListAll(context.Background())
		require.NoError(t, err)
		assert.Len(t, all.Apps, 1)

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, notifysvc.KindAppSubmitted, f.notifier.events[0].Kind)
		assert.Equal(t, out.App.ID, f.notifier.events[0].Ref)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)

		in := validCreate("foo")
		in.URL = ""
		_, err := f.svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, appsvc.ErrValidation)
		assert.Equal(t, "Missing required fields", svcerr.Message(err, ""))
		assert.Empty(t, f.repo.apps)
		assert.Empty(t, f.notifier.events)
	})

	t.Run("unknown category", func(t *testing.T) {
		f := newFixture(t)

		for _, category := range []string{"All", "Games", "defi"} {
			in := validCreate("foo")
			in.Category = category
			_, err := f.svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, appsvc.ErrValidation, category)
			assert.Equal(t, "Invalid category", svcerr.Message(err, ""))
		}
	})

	t.Run("notifier failure does not fail the submission", func(t *testing.T) {
		f := newFixture(t)
		f.notifier.err = notifysvc.ErrEnqueue

		_, err := f.svc.Create(context.Background(), validCreate("foo"))
		assert.NoError(t, err)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.repo.failAll = errors.New("db down")

		_, err := f.svc.Create(context.Background(), validCreate("foo"))
		assert.ErrorIs(t, err, appsvc.ErrPersistence)
	})
}

func TestDefaultService_AdminCreate(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.AdminCreate(context.Background(), appsvc.InputAdminCreate{
		Name:        "foo",
		Description: "d",
		URL:         "https://foo.io",
		Category:    "DeFi",
		Tags:        []string{"Official"},
		Featured:    true,
		Approved:    true,
	})
	require.NoError(t, err)
	assert.True(t, out.App.Approved)
	assert.True(t, out.App.Featured)
	assert.Equal(t, []string{"Official"}, out.App.Tags)

	list, err := f.svc.ListApproved(context.Background(), appsvc.InputListApproved{})
	require.NoError(t, err)
	assert.Len(t, list.Apps, 1)

	// moderators create without being notified
	assert.Empty(t, f.notifier.events)

	out, err = f.svc.AdminCreate(context.Background(), appsvc.InputAdminCreate{
		Name: "bar", Description: "d", URL: "https://bar.io", Category: "NFT",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"New", "Community"}, out.App.Tags)
}

func TestDefaultService_ListApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := []appsvc.InputAdminCreate{
		{Name: "Swapper", Description: "Swap tokens", URL: "u", Category: "DeFi", Approved: true},
		{Name: "Gallery", Description: "Art market", URL: "u", Category: "NFT", Tags: []string{"Art", "Hot"}, Approved: true},
		{Name: "Hidden", Description: "swap too", URL: "u", Category: "DeFi", Approved: false},
		{Name: "Lender", Description: "Borrow", URL: "u", Category: "DeFi", Tags: []string{"swap"}, Approved: true},
	}
	for _, in := range seed {
		_, err := f.svc.AdminCreate(ctx, in)
		require.NoError(t, err)
	}

	names := func(out appsvc.OutList) []string {
		n := make([]string, 0)
		for _, a := range out.Apps {
			n = append(n, a.Name)
		}
		return n
	}

	testCases := []struct {
		name string
		in   appsvc.InputListApproved
		want []string
	}{
		{name: "newest first", in: appsvc.InputListApproved{}, want: []string{"Lender", "Gallery", "Swapper"}},
		{name: "All is every category", in: appsvc.InputListApproved{Category: "All"}, want: []string{"Lender", "Gallery", "Swapper"}},
		{name: "category", in: appsvc.InputListApproved{Category: "NFT"}, want: []string{"Gallery"}},
		{name: "search matches name description and tags", in: appsvc.InputListApproved{Search: "SWAP"}, want: []string{"Lender", "Swapper"}},
		{name: "search by tag", in: appsvc.InputListApproved{Search: "hot"}, want: []string{"Gallery"}},
		{name: "category and search", in: appsvc.InputListApproved{Category: "NFT", Search: "swap"}, want: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := f.svc.ListApproved(ctx, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(out))
		})
	}

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.repo.failAll = errors.New("db down")

		_, err := f.svc.ListApproved(ctx, appsvc.InputListApproved{})
		assert.ErrorIs(t, err, appsvc.ErrPersistence)
		assert.Equal(t, "Failed to fetch apps", svcerr.Message(err, ""))
	})
}

func TestDefaultService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.Create(ctx, validCreate("foo"))
		require.NoError(t, err)

		name := "Foo Pro"
		featured := true
		tags := []string{"Verified"}
		out, err := f.svc.Update(ctx, appsvc.InputUpdate{ID: created.App.ID, Name: &name, Featured: &featured, Tags: &tags})
		require.NoError(t, err)

		want := created.App
		want.Name = name
		want.Featured = true
		want.Tags = tags
		assert.Equal(t, want, out.App)

		all, err := f.svc.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, all.Apps[0])
	})

	t.Run("no fields", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Update(ctx, appsvc.InputUpdate{ID: "00000000-0000-4000-8000-000000000001"})
		assert.ErrorIs(t, err, appsvc.ErrNoFields)
		assert.Equal(t, "No fields to update", svcerr.Message(err, ""))
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		name := "x"

		for _, id := range []string{"00000000-0000-4000-8000-000000000099", "not-a-uuid"} {
			_, err := f.svc.Update(ctx, appsvc.InputUpdate{ID: id, Name: &name})
			assert.ErrorIs(t, err, appsvc.ErrNotFound)
			assert.Equal(t, "App not found", svcerr.Message(err, ""))
		}
	})

	t.Run("bad category", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.Create(ctx, validCreate("foo"))
		require.NoError(t, err)

		category := "All"
		_, err = f.svc.Update(ctx, appsvc.InputUpdate{ID: created.App.ID, Category: &category})
		assert.ErrorIs(t, err, appsvc.ErrValidation)
	})
}

func TestDefaultService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, validCreate("foo"))
	require.NoError(t, err)
	f.repo.reports[created.App.ID] = 2

	out, err := f.svc.Delete(ctx, appsvc.InputDelete{ID: created.App.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.ReportsDeleted)

	_, err = f.svc.Delete(ctx, appsvc.InputDelete{ID: created.App.ID})
	assert.ErrorIs(t, err, appsvc.ErrNotFound)
}

func TestDefaultService_IncrementClicks(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent clicks are all counted", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.Create(ctx, validCreate("foo"))
		require.NoError(t, err)

		const n = 64
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				_, _ = f.svc.IncrementClicks(ctx, appsvc.InputIncrementClicks{ID: created.App.ID})
			}()
		}
		wg.Wait()

		out, err := f.svc.IncrementClicks(ctx, appsvc.InputIncrementClicks{ID: created.App.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(n+1), out.Clicks)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.IncrementClicks(ctx, appsvc.InputIncrementClicks{ID: "00000000-0000-4000-8000-000000000042"})
		assert.ErrorIs(t, err, appsvc.ErrNotFound)
	})
}

func TestDefaultService_SetApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.Create(ctx, validCreate("foo"))
	require.NoError(t, err)

	out, err := f.svc.SetApproval(ctx, appsvc.InputSetApproval{ID: created.App.ID, Approved: true})
	require.NoError(t, err)
	assert.True(t, out.App.Approved)

	list, err := f.svc.ListApproved(ctx, appsvc.InputListApproved{})
	require.NoError(t, err)
	require.Len(t, list.Apps, 1)
	assert.Equal(t, created.App.ID, list.Apps[0].ID)

	_, err = f.svc.SetApproval(ctx, appsvc.InputSetApproval{ID: created.App.ID, Approved: false})
	require.NoError(t, err)

	list, err = f.svc.ListApproved(ctx, appsvc.InputListApproved{})
	require.NoError(t, err)
	assert.Empty(t, list.Apps)

	_, err = f.svc.SetApproval(ctx, appsvc.InputSetApproval{ID: "00000000-0000-4000-8000-000000000077", Approved: true})
	assert.ErrorIs(t, err, appsvc.ErrNotFound)
}
