// Package apiclient talks to the katalog REST API. Every call has a deadline and failures are normalised
// into ErrTimeout, ErrNetwork or *Error.
package apiclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
)

var (
	ErrTimeout = errors.New("operation timed out, please check your internet connection or try again")
	ErrNetwork = errors.New("network error")
)

// Error is a non-2xx answer of the API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}

	return 0
}

type Filter struct {
	Category string
	Search   string
}

type Client interface {
	ListApproved(ctx context.Context, filter Filter) ([]httptyped.App, error)
	ListAll(ctx context.Context) ([]httptyped.App, error)
	CreateApp(ctx context.Context, in httptyped.AppCreateReq) (httptyped.App, error)
	AdminCreateApp(ctx context.Context, in httptyped.AppAdminCreateReq) (httptyped.App, error)
	UpdateApp(ctx context.Context, id string, patch httptyped.AppUpdateReq) (httptyped.App, error)
	DeleteApp(ctx context.Context, id string) error
	IncrementClicks(ctx context.Context, id string) (int64, error)
	SetApproval(ctx context.Context, id string, approved bool) (httptyped.App, error)

	// GetReports never fails, errors are logged and an empty list is returned so the listing still renders.
	GetReports(ctx context.Context) []httptyped.Report
	CreateReport(ctx context.Context, in httptyped.ReportCreateReq) (httptyped.Report, error)
	DeleteReport(ctx context.Context, id string) error
	DeleteReportsByApp(ctx context.Context, appID string) error

	// Login stores the issued token, later admin calls send it as bearer.
	Login(ctx context.Context, password string) (httptyped.SessionResp, error)
}
