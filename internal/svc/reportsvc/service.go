package reportsvc

import (
	"context"
	"time"

	"github.com/yusufsyaifudin/katalog/internal/svc/svcerr"
)

var (
	ErrValidation  = svcerr.ErrValidation
	ErrNotFound    = svcerr.ErrNotFound
	ErrNoFields    = svcerr.ErrNoFields
	ErrPersistence = svcerr.ErrPersistence
)

const (
	MsgMissingFields = "Missing required fields: appId, appName, reasons"
	MsgInvalidReason = "Invalid report reason"
	MsgNotFound      = "Report not found"
	MsgAppNotFound   = "App not found"
)

// Reasons is the closed set of labels a report may carry.
var Reasons = []string{
	"Spam or misleading",
	"Scam / Malware / Phishing",
	"Broken link or not working",
	"Inappropriate content",
	"Duplicate listing",
}

type Service interface {
	List(ctx context.Context) (out OutList, err error)
	Create(ctx context.Context, in InputCreate) (out OutCreate, err error)
	Delete(ctx context.Context, in InputDelete) (out OutDelete, err error)
	DeleteByApp(ctx context.Context, in InputDeleteByApp) (out OutDeleteByApp, err error)
}

type Report struct {
	ID        string
	AppID     string
	AppName   string
	Reasons   []string
	Timestamp time.Time
}

// OutList is ordered newest first.
type OutList struct {
	Reports []Report
}

type InputCreate struct {
	AppID   string   `validate:"required"`
	AppName string   `validate:"required"`
	Reasons []string `validate:"required,min=1"`
}

type OutCreate struct {
	Report Report
}

type InputDelete struct {
	ID string
}

type OutDelete struct{}

type InputDeleteByApp struct {
	AppID string
}

type OutDeleteByApp struct {
	Deleted int64
}
