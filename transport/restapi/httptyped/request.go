package httptyped

// AppListQuery is decoded from the query string of GET /api/apps.
type AppListQuery struct {
	Category string `schema:"category"`
	Search   string `schema:"search"`
}

// AppCreateReq is the body of POST /api/apps.
type AppCreateReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Category    string `json:"category"`
}

// AppAdminCreateReq is the body of POST /api/admin/apps.
type AppAdminCreateReq struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Featured    bool     `json:"featured"`
	Approved    bool     `json:"approved"`
}

// AppUpdateReq is the body of PUT /api/apps/{id}. Only the fields present in the JSON are changed.
type AppUpdateReq struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	URL         *string   `json:"url,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Featured    *bool     `json:"featured,omitempty"`
	Approved    *bool     `json:"approved,omitempty"`
}

// AppApproveReq is the body of PATCH /api/apps/{id}/approve.
// Approved is left untyped so a non boolean value can be told apart from a decode failure.
type AppApproveReq struct {
	Approved interface{} `json:"approved"`
}

type ClicksResp struct {
	Clicks int64 `json:"clicks"`
}

// ReportCreateReq is the body of POST /api/reports.
type ReportCreateReq struct {
	AppID   string   `json:"appId"`
	AppName string   `json:"appName"`
	Reasons []string `json:"reasons"`
}

// SessionReq is the body of POST /api/admin/session.
type SessionReq struct {
	Password string `json:"password"`
}

// SessionResp carries the admin bearer token, ExpiresAt is epoch milliseconds.
type SessionResp struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ErrorResp is every non-2xx body.
type ErrorResp struct {
	Error string `json:"error"`
}
