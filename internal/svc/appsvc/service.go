package appsvc

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

// Public messages, the REST layer sends them as is.
const (
	MsgMissingFields   = "Missing required fields"
	MsgInvalidCategory = "Invalid category"
	MsgNoFields        = "No fields to update"
	MsgNotFound        = "App not found"
)

// CategoryAll is only a filter value, it is never stored.
const CategoryAll = "All"

// Categories is the closed set of categories an App can have.
var Categories = []string{"DeFi", "NFT", "Tokens", "Infrastructure", "Tools", "Social", "Wallet", "Events"}

// DefaultTags are given to every public submission.
var DefaultTags = []string{"New", "Community"}

// Service is an interface of final business logic.
// Any input and output from/to this function should be SAFE for external party to consume,
// i.e: request or response from HTTP handler
type Service interface {
	ListApproved(ctx context.Context, in InputListApproved) (out OutList, err error)
	ListAll(ctx context.Context) (out OutList, err error)
	Create(ctx context.Context, in InputCreate) (out OutCreate, err error)
	AdminCreate(ctx context.Context, in InputAdminCreate) (out OutCreate, err error)
	Update(ctx context.Context, in InputUpdate) (out OutUpdate, err error)
	Delete(ctx context.Context, in InputDelete) (out OutDelete, err error)
	IncrementClicks(ctx context.Context, in InputIncrementClicks) (out OutIncrementClicks, err error)
	SetApproval(ctx context.Context, in InputSetApproval) (out OutSetApproval, err error)
}

// App is like apprepo.App but this only use for returning output via external service.
// This must not have any json or yaml tag, any output method (HTTP, gRPC, etc) must define its own entity standard.
type App struct {
	ID          string
	Name        string
	Description string
	URL         string
	Category    string
	Tags        []string
	AddedAt     time.Time
	Clicks      int64
	Featured    bool
	Approved    bool
}

// InputListApproved narrows the public listing. Empty Category or CategoryAll means every category.
type InputListApproved struct {
	Category string
	Search   string
}

// OutList is ordered newest first.
type OutList struct {
	Apps []App
}

type InputCreate struct {
	Name        string `validate:"required"`
	Description string `validate:"required"`
	URL         string `validate:"required"`
	Category    string `validate:"required"`
}

type OutCreate struct {
	App App
}

// InputAdminCreate is a listing added by a moderator, it may skip the review queue.
type InputAdminCreate struct {
	Name        string `validate:"required"`
	Description string `validate:"required"`
	URL         string `validate:"required"`
	Category    string `validate:"required"`

	// Tags nil means DefaultTags.
	Tags     []string
	Featured bool
	Approved bool
}

// InputUpdate is a sparse patch, nil fields are left untouched.
type InputUpdate struct {
	ID          string
	Name        *string
	Description *string
	URL         *string
	Category    *string
	Tags        *[]string
	Featured    *bool
	Approved    *bool
}

type OutUpdate struct {
	App App
}

type InputDelete struct {
	ID string
}

type OutDelete struct {
	ReportsDeleted int64
}

type InputIncrementClicks struct {
	ID string
}

type OutIncrementClicks struct {
	Clicks int64
}

type InputSetApproval struct {
	ID       string
	Approved bool
}

type OutSetApproval struct {
	App App
}
