package handlerreport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/svcerr"
	"github.com/yusufsyaifudin/katalog/pkg/metric"
	"github.com/yusufsyaifudin/katalog/transport/restapi/handlerreport"
)

const (
	appID    = "00000000-0000-4000-8000-000000000001"
	reportID = "00000000-0000-4000-8000-000000000002"
)

type fakeService struct {
	createIn    reportsvc.InputCreate
	deleteByApp reportsvc.InputDeleteByApp
	err         error
}

var _ reportsvc.Service = (*fakeService)(nil)

func (f *fakeService) report() reportsvc.Report {
	return reportsvc.Report{ID: reportID, AppID: appID, AppName: "Swap", Reasons: []string{"Duplicate listing"}, Timestamp: time.UnixMilli(1700000000000)}
}

func (f *fakeService) List(context.Context) (reportsvc.OutList, error) {
	if f.err != nil {
		return reportsvc.OutList{}, f.err
	}
	return reportsvc.OutList{Reports: []reportsvc.Report{f.report()}}, nil
}

func (f *fakeService) Create(_ context.Context, in reportsvc.InputCreate) (reportsvc.OutCreate, error) {
	f.createIn = in
	if f.err != nil {
		return reportsvc.OutCreate{}, f.err
	}
	return reportsvc.OutCreate{Report: f.report()}, nil
}

func (f *fakeService) Delete(context.Context, reportsvc.InputDelete) (reportsvc.OutDelete, error) {
	return reportsvc.OutDelete{}, f.err
}

func (f *fakeService) DeleteByApp(_ context.Context, in reportsvc.InputDeleteByApp) (reportsvc.OutDeleteByApp, error) {
	f.deleteByApp = in
	return reportsvc.OutDeleteByApp{Deleted: 2}, f.err
}

func newRouter(t *testing.T, svc reportsvc.Service) http.Handler {
	t.Helper()

	h, err := handlerreport.NewHandler(handlerreport.HandlerConfig{
		ReportService: svc,
		Metrics:       metric.New("test"),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/api/reports", h.List())
	r.Post("/api/reports", h.Create())
	r.Delete("/api/reports/{id}", h.Delete())
	r.Delete("/api/reports/app/{appId}", h.DeleteByApp())
	return r
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestHandler_List(t *testing.T) {
	w := do(newRouter(t, &fakeService{}), http.MethodGet, "/api/reports", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"`+reportID+`","appId":"`+appID+`","appName":"Swap",
		"reasons":["Duplicate listing"],"timestamp":1700000000000}]`, w.Body.String())
}

func TestHandler_Create(t *testing.T) {
	svc := &fakeService{}
	w := do(newRouter(t, svc), http.MethodPost, "/api/reports",
		`{"appId":"`+appID+`","appName":"Swap","reasons":["Duplicate listing"]}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, reportsvc.InputCreate{AppID: appID, AppName: "Swap", Reasons: []string{"Duplicate listing"}}, svc.createIn)

	svc = &fakeService{err: svcerr.New(reportsvc.ErrValidation, reportsvc.MsgMissingFields)}
	w = do(newRouter(t, svc), http.MethodPost, "/api/reports", `{"appId":"`+appID+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing required fields: appId, appName, reasons"}`, w.Body.String())

	svc = &fakeService{err: svcerr.New(reportsvc.ErrNotFound, reportsvc.MsgAppNotFound)}
	w = do(newRouter(t, svc), http.MethodPost, "/api/reports", `{"appId":"`+appID+`","appName":"x","reasons":["Duplicate listing"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Delete(t *testing.T) {
	w := do(newRouter(t, &fakeService{}), http.MethodDelete, "/api/reports/"+reportID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(newRouter(t, &fakeService{err: svcerr.New(reportsvc.ErrNotFound, reportsvc.MsgNotFound)}), http.MethodDelete, "/api/reports/"+reportID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Report not found"}`, w.Body.String())
}

func TestHandler_DeleteByApp(t *testing.T) {
	svc := &fakeService{}
	w := do(newRouter(t, svc), http.MethodDelete, "/api/reports/app/"+appID, "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, appID, svc.deleteByApp.AppID)
	assert.Empty(t, w.Body.String())
}
