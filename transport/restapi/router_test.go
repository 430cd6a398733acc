package restapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/katalog/internal/svc/apprepo"
	"github.com/yusufsyaifudin/katalog/internal/svc/appsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/authsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/notifysvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportrepo"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportsvc"
	"github.com/yusufsyaifudin/katalog/pkg/metric"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
	"golang.org/x/crypto/bcrypt"
)

const adminPassword = "s3cret-admin"

type stubApps struct {
	appsvc.Service
}

func (stubApps) ListApproved(context.Context, appsvc.InputListApproved) (appsvc.OutList, error) {
	return appsvc.OutList{Apps: []appsvc.App{}}, nil
}

func (stubApps) ListAll(context.Context) (appsvc.OutList, error) {
	return appsvc.OutList{Apps: []appsvc.App{{ID: "a", Name: "Pending"}}}, nil
}

func (stubApps) IncrementClicks(context.Context, appsvc.InputIncrementClicks) (appsvc.OutIncrementClicks, error) {
	return appsvc.OutIncrementClicks{Clicks: 1}, nil
}

type stubReports struct {
	reportsvc.Service
}

func (stubReports) List(context.Context) (reportsvc.OutList, error) {
	return reportsvc.OutList{}, nil
}

func newTestTransport(t *testing.T, rl RateLimitConfig) http.Handler {
	t.Helper()
	return newTestTransportWith(t, rl, stubApps{}, stubReports{})
}

func newTestTransportWith(t *testing.T, rl RateLimitConfig, apps appsvc.Service, reports reportsvc.Service) http.Handler {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	auth, err := authsvc.New(authsvc.Config{
		PasswordHash: string(hash),
		Secret:       []byte("0123456789abcdef0123456789abcdef"),
		TTL:          time.Hour,
		Issuer:       "katalog-test",
	})
	require.NoError(t, err)

	server, err := NewHTTPTransport(Config{
		AppServiceName: "katalog",
		AppVersion:     "test",
		AppService:     apps,
		ReportService:  reports,
		AuthService:    auth,
		Metrics:        metric.New("test"),
		AllowedOrigins: []string{"https://katalog.example"},
		RateLimit:      rl,
		Now: func() time.Time {
			return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		},
	})
	require.NoError(t, err)
	return server.Server()
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestNewHTTPTransport_InvalidConfig(t *testing.T) {
	_, err := NewHTTPTransport(Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	h := newTestTransport(t, RateLimitConfig{})

	w := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","timestamp":"2024-01-02T03:04:05Z"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestTransport(t, RateLimitConfig{})

	serve(h, httptest.NewRequest(http.MethodGet, "/api/apps", nil))
	w := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/api/apps/"`)
}

func TestPublicRoutes(t *testing.T) {
	h := newTestTransport(t, RateLimitConfig{})

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/apps/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Tracer-ID"))

	w = serve(h, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newTestTransport(t, RateLimitConfig{})

	routes := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/apps/all"},
		{http.MethodPut, "/api/apps/x"},
		{http.MethodDelete, "/api/apps/x"},
		{http.MethodPatch, "/api/apps/x/approve"},
		{http.MethodPost, "/api/admin/apps"},
		{http.MethodGet, "/api/reports"},
		{http.MethodDelete, "/api/reports/x"},
		{http.MethodDelete, "/api/reports/app/x"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.target, func(t *testing.T) {
			w := serve(h, httptest.NewRequest(route.method, route.target, strings.NewReader(`{}`)))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
		})
	}
}

func TestAdminSessionFlow(t *testing.T) {
	h := newTestTransport(t, RateLimitConfig{})

	w := serve(h, httptest.NewRequest(http.MethodPost, "/api/admin/session", strings.NewReader(`{"password":"`+adminPassword+`"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var session httptyped.SessionResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	r := httptest.NewRequest(http.MethodGet, "/api/apps/all", nil)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	w = serve(h, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Pending"`)
}

func TestRateLimit(t *testing.T) {
	h := newTestTransport(t, RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})

	click := func(remote string) int {
		r := httptest.NewRequest(http.MethodPatch, "/api/apps/x/clicks", nil)
		r.RemoteAddr = remote
		return serve(h, r).Code
	}

	assert.Equal(t, http.StatusOK, click("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, click("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, click("10.0.0.1:1002"))

	// other clients and reads are not affected
	assert.Equal(t, http.StatusOK, click("10.0.0.2:1000"))

	r := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	r.RemoteAddr = "10.0.0.1:1003"
	assert.Equal(t, http.StatusOK, serve(h, r).Code)
}

func TestIPRateLimiter_SweepsIdle(t *testing.T) {
	now := time.Unix(0, 0)
	l := newIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.Equal(t, 1, l.size())

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("b"))
	assert.Equal(t, 1, l.size())
}

func TestCORS(t *testing.T) {
	h := newTestTransport(t, RateLimitConfig{})

	r := httptest.NewRequest(http.MethodOptions, "/api/apps", nil)
	r.Header.Set("Origin", "https://katalog.example")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(h, r)

	assert.Equal(t, "https://katalog.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestToSimpleMap_MasksCredentials(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("Content-Type", "application/json")

	m := toSimpleMap(h)
	assert.Equal(t, redacted, m["Authorization"])
	assert.Equal(t, "application/json", m["Content-Type"])
}

// memStore backs both repositories, reports are only accepted for stored apps.
type memStore struct {
	mu      sync.Mutex
	apps    map[string]apprepo.App
	reports map[string]reportrepo.Report
}

type memApps struct{ *memStore }

type memReports struct{ *memStore }

var _ apprepo.Repo = memApps{}
var _ reportrepo.Repo = memReports{}

func (m memApps) list(keep func(apprepo.App) bool) apprepo.OutList {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]apprepo.App, 0, len(m.apps))
	for _, a := range m.apps {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt > out[j].AddedAt })
	return apprepo.OutList{Apps: out}
}

func (m memApps) ListApproved(context.Context) (apprepo.OutList, error) {
	return m.list(func(a apprepo.App) bool { return a.Approved }), nil
}

func (m memApps) ListAll(context.Context) (apprepo.OutList, error) {
	return m.list(func(apprepo.App) bool { return true }), nil
}

func (m memApps) Create(_ context.Context, in apprepo.InputCreate) (apprepo.OutCreate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[in.App.ID] = in.App
	return apprepo.OutCreate{App: in.App}, nil
}

func (m memApps) Update(context.Context, apprepo.InputUpdate) (apprepo.OutUpdate, error) {
	return apprepo.OutUpdate{}, errors.New("not used")
}

func (m memApps) Delete(context.Context, apprepo.InputDelete) (apprepo.OutDelete, error) {
	return apprepo.OutDelete{}, errors.New("not used")
}

func (m memApps) IncrementClicks(context.Context, apprepo.InputIncrementClicks) (apprepo.OutIncrementClicks, error) {
	return apprepo.OutIncrementClicks{}, errors.New("not used")
}

func (m memApps) SetApproval(context.Context, apprepo.InputSetApproval) (apprepo.OutSetApproval, error) {
	return apprepo.OutSetApproval{}, errors.New("not used")
}

func (m memReports) List(context.Context) (reportrepo.OutList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]reportrepo.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return reportrepo.OutList{Reports: out}, nil
}

func (m memReports) Create(_ context.Context, in reportrepo.InputCreate) (reportrepo.OutCreate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.apps[in.Report.AppID]; !ok {
		return reportrepo.OutCreate{}, reportrepo.ErrAppNotFound
	}
	m.reports[in.Report.ID] = in.Report
	return reportrepo.OutCreate{Report: in.Report}, nil
}

func (m memReports) Delete(_ context.Context, in reportrepo.InputDelete) (reportrepo.OutDelete, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[in.ID]; !ok {
		return reportrepo.OutDelete{}, reportrepo.ErrNotFound
	}
	delete(m.reports, in.ID)
	return reportrepo.OutDelete{}, nil
}

func (m memReports) DeleteByApp(_ context.Context, in reportrepo.InputDeleteByApp) (reportrepo.OutDeleteByApp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.reports {
		if r.AppID == in.AppID {
			delete(m.reports, id)
			n++
		}
	}
	return reportrepo.OutDeleteByApp{Deleted: n}, nil
}

func TestReportAndDismissScenario(t *testing.T) {
	const appID = "7f0c1a52-3b7e-4f0a-9d55-6a7f2b1e9c10"

	store := &memStore{
		apps: map[string]apprepo.App{
			appID: {
				ID: appID, Name: "Uniswap", Description: "Swap tokens", URL: "https://app.uniswap.org",
				Category: "DeFi", Tags: apprepo.Tags{"dex"}, AddedAt: 1700000000000, Featured: true, Approved: true,
			},
		},
		reports: map[string]reportrepo.Report{},
	}

	apps, err := appsvc.New(appsvc.DefaultServiceConfig{AppRepo: memApps{store}, Notifier: notifysvc.Noop{}})
	require.NoError(t, err)
	reports, err := reportsvc.New(reportsvc.Config{ReportRepo: memReports{store}, Notifier: notifysvc.Noop{}})
	require.NoError(t, err)

	h := newTestTransportWith(t, RateLimitConfig{}, apps, reports)

	w := serve(h, httptest.NewRequest(http.MethodPost, "/api/admin/session", strings.NewReader(`{"password":"`+adminPassword+`"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var session httptyped.SessionResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	admin := func(method, target string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, target, nil)
		r.Header.Set("Authorization", "Bearer "+session.Token)
		return serve(h, r)
	}

	reportsOfApp := func() []httptyped.Report {
		w := admin(http.MethodGet, "/api/reports")
		require.Equal(t, http.StatusOK, w.Code)

		var all []httptyped.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))

		out := make([]httptyped.Report, 0)
		for _, r := range all {
			if r.AppID == appID {
				out = append(out, r)
			}
		}
		return out
	}

	// anyone files a report
	w = serve(h, httptest.NewRequest(http.MethodPost, "/api/reports",
		strings.NewReader(`{"appId":"`+appID+`","appName":"Uniswap","reasons":["Spam or misleading"]}`)))
	require.Equal(t, http.StatusCreated, w.Code)

	filed := reportsOfApp()
	require.Len(t, filed, 1)
	assert.Equal(t, []string{"Spam or misleading"}, filed[0].Reasons)
	assert.Equal(t, "Uniswap", filed[0].AppName)

	// the admin dismisses it
	w = admin(http.MethodDelete, "/api/reports/"+filed[0].ID)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, reportsOfApp())

	// dismissing does not touch the app
	w = serve(h, httptest.NewRequest(http.MethodGet, "/api/apps", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var listed []httptyped.App
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, appID, listed[0].ID)
	assert.True(t, listed[0].Approved)
	assert.True(t, listed[0].Featured)
}
