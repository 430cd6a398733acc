package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/katalog/pkg/httplog"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
	"github.com/yusufsyaifudin/ylog"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	BaseURL string `validate:"required,url"`

	// Timeout applies to every call, zero means DefaultTimeout.
	Timeout    time.Duration `validate:"min=0"`
	HTTPClient *http.Client  `validate:"-"`

	// Token is an admin bearer token obtained earlier, optional.
	Token string `validate:"-"`
}

type HTTP struct {
	baseURL *url.URL
	timeout time.Duration
	client  *http.Client

	mu    sync.RWMutex
	token string
}

var _ Client = (*HTTP)(nil)

func New(cfg Config) (*HTTP, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("api client config: %w", err)
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api client base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: httplog.New(http.DefaultTransport, "Authorization"),
		}
	}

	return &HTTP{
		baseURL: base,
		timeout: timeout,
		client:  client,
		token:   cfg.Token,
	}, nil
}

func (c *HTTP) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *HTTP) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTP) ListApproved(ctx context.Context, filter Filter) (apps []httptyped.App, err error) {
	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}

	err = c.do(ctx, http.MethodGet, "/api/apps", query, nil, &apps)
	return
}

func (c *HTTP) ListAll(ctx context.Context) (apps []httptyped.App, err error) {
	err = c.do(ctx, http.MethodGet, "/api/apps/all", nil, nil, &apps)
	return
}

func (c *HTTP) CreateApp(ctx context.Context, in httptyped.AppCreateReq) (app httptyped.App, err error) {
	err = c.do(ctx, http.MethodPost, "/api/apps", nil, in, &app)
	return
}

func (c *HTTP) AdminCreateApp(ctx context.Context, in httptyped.AppAdminCreateReq) (app httptyped.App, err error) {
	err = c.do(ctx, http.MethodPost, "/api/admin/apps", nil, in, &app)
	return
}

func (c *HTTP) UpdateApp(ctx context.Context, id string, patch httptyped.AppUpdateReq) (app httptyped.App, err error) {
	err = c.do(ctx, http.MethodPut, "/api/apps/"+url.PathEscape(id), nil, patch, &app)
	return
}

func (c *HTTP) DeleteApp(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/apps/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTP) IncrementClicks(ctx context.Context, id string) (int64, error) {
	var out httptyped.ClicksResp
	err := c.do(ctx, http.MethodPatch, "/api/apps/"+url.PathEscape(id)+"/clicks", nil, nil, &out)
	return out.Clicks, err
}

func (c *HTTP) SetApproval(ctx context.Context, id string, approved bool) (app httptyped.App, err error) {
	body := httptyped.AppApproveReq{Approved: approved}
	err = c.do(ctx, http.MethodPatch, "/api/apps/"+url.PathEscape(id)+"/approve", nil, body, &app)
	return
}

func (c *HTTP) GetReports(ctx context.Context) []httptyped.Report {
	reports := make([]httptyped.Report, 0)
	if err := c.do(ctx, http.MethodGet, "/api/reports", nil, nil, &reports); err != nil {
		ylog.Error(ctx, "error fetching reports", ylog.KV("error", err))
		return []httptyped.Report{}
	}

	return reports
}

func (c *HTTP) CreateReport(ctx context.Context, in httptyped.ReportCreateReq) (report httptyped.Report, err error) {
	err = c.do(ctx, http.MethodPost, "/api/reports", nil, in, &report)
	return
}

func (c *HTTP) DeleteReport(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/reports/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTP) DeleteReportsByApp(ctx context.Context, appID string) error {
	return c.do(ctx, http.MethodDelete, "/api/reports/app/"+url.PathEscape(appID), nil, nil, nil)
}

func (c *HTTP) Login(ctx context.Context, password string) (session httptyped.SessionResp, err error) {
	err = c.do(ctx, http.MethodPost, "/api/admin/session", nil, httptyped.SessionReq{Password: password}, &session)
	if err != nil {
		return
	}

	c.SetToken(session.Token)
	return
}

// do sends one request. out nil or a 204 answer skips decoding.
func (c *HTTP) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// path segments are already escaped by the caller
	endpoint := c.baseURL.String() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %s", ErrNetwork, err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return transportErr(ctx, err)
	}

	defer func() {
		if _err := resp.Body.Close(); _err != nil {
			ylog.Error(ctx, "cannot close response body", ylog.KV("error", _err))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErr(resp.StatusCode, respBody)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err = json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}

	return nil
}

func transportErr(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %s", ErrNetwork, err)
}

func apiErr(status int, body []byte) error {
	var e httptyped.ErrorResp
	if err := json.Unmarshal(body, &e); err != nil {
		return &Error{Status: status, Message: "Request failed"}
	}

	if e.Error == "" {
		return &Error{Status: status, Message: fmt.Sprintf("HTTP error! status: %d", status)}
	}

	return &Error{Status: status, Message: e.Error}
}
