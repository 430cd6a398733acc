package apprepo

import (
	"context"
	"errors"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("app not found")
	ErrEmptyPatch = errors.New("empty patch")
)

// Repo is App repository service
type Repo interface {
	ListApproved(ctx context.Context) (out OutList, err error)
	ListAll(ctx context.Context) (out OutList, err error)
	Create(ctx context.Context, in InputCreate) (out OutCreate, err error)
	Update(ctx context.Context, in InputUpdate) (out OutUpdate, err error)
	Delete(ctx context.Context, in InputDelete) (out OutDelete, err error)
	IncrementClicks(ctx context.Context, in InputIncrementClicks) (out OutIncrementClicks, err error)
	SetApproval(ctx context.Context, in InputSetApproval) (out OutSetApproval, err error)
}

// OutList is always ordered by AddedAt descending.
type OutList struct {
	Apps []App
}

type InputCreate struct {
	App App
}

type OutCreate struct {
	App App
}

type InputUpdate struct {
	ID    string `validate:"required"`
	Patch Patch  `validate:"-"`
}

type OutUpdate struct {
	App App
}

type InputDelete struct {
	ID string `validate:"required"`
}

type OutDelete struct {
	// ReportsDeleted is the number of reports removed together with the app.
	ReportsDeleted int64
}

type InputIncrementClicks struct {
	ID string `validate:"required"`
}

type OutIncrementClicks struct {
	Clicks int64
}

type InputSetApproval struct {
	ID       string `validate:"required"`
	Approved bool
}

type OutSetApproval struct {
	App App
}
