package reportrepo

import (
	"context"
	"errors"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("report not found")
	ErrAppNotFound = errors.New("reported app not found")
)

// Repo is Report repository service
type Repo interface {
	List(ctx context.Context) (out OutList, err error)
	Create(ctx context.Context, in InputCreate) (out OutCreate, err error)
	Delete(ctx context.Context, in InputDelete) (out OutDelete, err error)
	DeleteByApp(ctx context.Context, in InputDeleteByApp) (out OutDeleteByApp, err error)
}

// OutList is always ordered by Timestamp descending.
type OutList struct {
	Reports []Report
}

type InputCreate struct {
	Report Report
}

type OutCreate struct {
	Report Report
}

type InputDelete struct {
	ID string `validate:"required"`
}

type OutDelete struct{}

type InputDeleteByApp struct {
	AppID string `validate:"required"`
}

type OutDeleteByApp struct {
	Deleted int64
}
