package genapidoc

import (
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
)

// approveBody documents PATCH /api/apps/{id}/approve, the handler decodes it untyped.
type approveBody struct {
	Approved bool `json:"approved"`
}

var (
	exampleApp = httptyped.App{
		ID:          "7f0c1a52-3b7e-4f0a-9d55-6a7f2b1e9c10",
		Name:        "Uniswap",
		Description: "Swap tokens on Ethereum",
		URL:         "https://app.uniswap.org",
		Category:    "DeFi",
		Tags:        []string{"dex", "ethereum"},
		AddedAt:     1700000000000,
		Clicks:      42,
		Featured:    true,
		Approved:    true,
	}

	exampleReport = httptyped.Report{
		ID:        "1b8f7c2e-90d4-4d8e-8f0e-3c2a5d6b7e81",
		AppID:     exampleApp.ID,
		AppName:   exampleApp.Name,
		Reasons:   []string{"Broken link"},
		Timestamp: 1700000100000,
	}
)

// Health
// GET /health
func Health(g *generator) {
	g.add(route{
		ID:      "Health",
		Tag:     "System",
		Summary: "Liveness check",
		Method:  http.MethodGet,
		Path:    "/health",
		Resp:    httptyped.Health{Status: "ok", Timestamp: time.Unix(1700000000, 0).UTC()},
	})
}

// AppListApproved
// GET /api/apps
func AppListApproved(g *generator) {
	g.add(route{
		ID:          "AppListApproved",
		Tag:         "Application",
		Summary:     "List approved applications",
		Description: "Approved apps, featured first then by clicks. Search matches name, description and tags.",
		Method:      http.MethodGet,
		Path:        "/api/apps",
		Params: []*openapi3.Parameter{
			queryString("category", "Exact category, \"All\" or empty means every category"),
			queryString("search", "Case-insensitive substring"),
		},
		Resp:     exampleApp,
		RespList: true,
	})
}

// AppListAll
// GET /api/apps/all
func AppListAll(g *generator) {
	g.add(route{
		ID:          "AppListAll",
		Tag:         "Application",
		Summary:     "List every application",
		Description: "Approved and pending apps, newest first.",
		Method:      http.MethodGet,
		Path:        "/api/apps/all",
		Admin:       true,
		Resp:        exampleApp,
		RespList:    true,
	})
}

// AppCreate
// POST /api/apps
func AppCreate(g *generator) {
	g.add(route{
		ID:          "AppCreate",
		Tag:         "Application",
		Summary:     "Submit an application",
		Description: "The app is stored unapproved and shows up in the public listing once an admin approves it.",
		Method:      http.MethodPost,
		Path:        "/api/apps",
		Req: httptyped.AppCreateReq{
			Name:        exampleApp.Name,
			Description: exampleApp.Description,
			URL:         exampleApp.URL,
			Category:    exampleApp.Category,
		},
		Resp:       exampleApp,
		RespStatus: http.StatusCreated,
		ErrStatus:  []int{http.StatusBadRequest, http.StatusTooManyRequests},
	})
}

// AppAdminCreate
// POST /api/admin/apps
func AppAdminCreate(g *generator) {
	g.add(route{
		ID:      "AppAdminCreate",
		Tag:     "Admin",
		Summary: "Create an application directly",
		Method:  http.MethodPost,
		Path:    "/api/admin/apps",
		Admin:   true,
		Req: httptyped.AppAdminCreateReq{
			Name:        exampleApp.Name,
			Description: exampleApp.Description,
			URL:         exampleApp.URL,
			Category:    exampleApp.Category,
			Tags:        exampleApp.Tags,
			Featured:    true,
			Approved:    true,
		},
		Resp:       exampleApp,
		RespStatus: http.StatusCreated,
		ErrStatus:  []int{http.StatusBadRequest},
	})
}

// AppUpdate
// PUT /api/apps/{id}
func AppUpdate(g *generator) {
	name := exampleApp.Name
	featured := true

	g.add(route{
		ID:          "AppUpdate",
		Tag:         "Application",
		Summary:     "Update an application",
		Description: "Only the fields present in the body are changed.",
		Method:      http.MethodPut,
		Path:        "/api/apps/{id}",
		Admin:       true,
		Params:      []*openapi3.Parameter{pathID("id", "App id")},
		Req:         httptyped.AppUpdateReq{Name: &name, Featured: &featured},
		Resp:        exampleApp,
		ErrStatus:   []int{http.StatusBadRequest, http.StatusNotFound},
	})
}

// AppDelete
// DELETE /api/apps/{id}
func AppDelete(g *generator) {
	g.add(route{
		ID:         "AppDelete",
		Tag:        "Application",
		Summary:    "Delete an application",
		Method:     http.MethodDelete,
		Path:       "/api/apps/{id}",
		Admin:      true,
		Params:     []*openapi3.Parameter{pathID("id", "App id")},
		RespStatus: http.StatusNoContent,
		ErrStatus:  []int{http.StatusNotFound},
	})
}

// AppIncrementClicks
// PATCH /api/apps/{id}/clicks
func AppIncrementClicks(g *generator) {
	g.add(route{
		ID:        "AppIncrementClicks",
		Tag:       "Application",
		Summary:   "Count one visit",
		Method:    http.MethodPatch,
		Path:      "/api/apps/{id}/clicks",
		Params:    []*openapi3.Parameter{pathID("id", "App id")},
		Resp:      httptyped.ClicksResp{Clicks: 43},
		ErrStatus: []int{http.StatusNotFound, http.StatusTooManyRequests},
	})
}

// AppSetApproval
// PATCH /api/apps/{id}/approve
func AppSetApproval(g *generator) {
	g.add(route{
		ID:        "AppSetApproval",
		Tag:       "Application",
		Summary:   "Approve or unpublish an application",
		Method:    http.MethodPatch,
		Path:      "/api/apps/{id}/approve",
		Admin:     true,
		Params:    []*openapi3.Parameter{pathID("id", "App id")},
		Req:       approveBody{Approved: true},
		Resp:      exampleApp,
		ErrStatus: []int{http.StatusBadRequest, http.StatusNotFound},
	})
}

// ReportCreate
// POST /api/reports
func ReportCreate(g *generator) {
	g.add(route{
		ID:      "ReportCreate",
		Tag:     "Report",
		Summary: "Report an application",
		Method:  http.MethodPost,
		Path:    "/api/reports",
		Req: httptyped.ReportCreateReq{
			AppID:   exampleReport.AppID,
			AppName: exampleReport.AppName,
			Reasons: exampleReport.Reasons,
		},
		Resp:       exampleReport,
		RespStatus: http.StatusCreated,
		ErrStatus:  []int{http.StatusBadRequest, http.StatusTooManyRequests},
	})
}

// ReportList
// GET /api/reports
func ReportList(g *generator) {
	g.add(route{
		ID:          "ReportList",
		Tag:         "Report",
		Summary:     "List reports",
		Description: "Every report, newest first.",
		Method:      http.MethodGet,
		Path:        "/api/reports",
		Admin:       true,
		Resp:        exampleReport,
		RespList:    true,
	})
}

// ReportDelete
// DELETE /api/reports/{id}
func ReportDelete(g *generator) {
	g.add(route{
		ID:         "ReportDelete",
		Tag:        "Report",
		Summary:    "Dismiss one report",
		Method:     http.MethodDelete,
		Path:       "/api/reports/{id}",
		Admin:      true,
		Params:     []*openapi3.Parameter{pathID("id", "Report id")},
		RespStatus: http.StatusNoContent,
		ErrStatus:  []int{http.StatusNotFound},
	})
}

// ReportDeleteByApp
// DELETE /api/reports/app/{appId}
func ReportDeleteByApp(g *generator) {
	g.add(route{
		ID:         "ReportDeleteByApp",
		Tag:        "Report",
		Summary:    "Delete every report of an application",
		Method:     http.MethodDelete,
		Path:       "/api/reports/app/{appId}",
		Admin:      true,
		Params:     []*openapi3.Parameter{pathID("appId", "App id")},
		RespStatus: http.StatusNoContent,
	})
}

// AdminSession
// POST /api/admin/session
func AdminSession(g *generator) {
	g.add(route{
		ID:          "AdminSession",
		Tag:         "Admin",
		Summary:     "Exchange the admin password for a bearer token",
		Method:      http.MethodPost,
		Path:        "/api/admin/session",
		Req:         httptyped.SessionReq{Password: "secret"},
		Resp:        httptyped.SessionResp{Token: "eyJhbGciOiJIUzI1NiJ9...", ExpiresAt: 1700043200000},
		ErrStatus:   []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests},
		Description: "A wrong password answers 401.",
	})
}
