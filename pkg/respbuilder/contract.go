package respbuilder

import "net/http"

type ErrKind int64

const (
	ErrUnhandled ErrKind = iota + 1
	ErrValidation
	ErrResourceNotFound
	ErrUnauthorized
	ErrTooManyRequests
)

type Reason struct {
	Status  int
	Message string
}

var ReasonMap = map[ErrKind]Reason{
	ErrUnhandled:        {Status: http.StatusInternalServerError, Message: "internal server error"},
	ErrValidation:       {Status: http.StatusBadRequest, Message: "error validation"},
	ErrResourceNotFound: {Status: http.StatusNotFound, Message: "resource not found"},
	ErrUnauthorized:     {Status: http.StatusUnauthorized, Message: "unauthorized"},
	ErrTooManyRequests:  {Status: http.StatusTooManyRequests, Message: "too many requests"},
}

// HTTPError is the only error body shape this API returns: {"error": "message"}.
type HTTPError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e HTTPError) Error() string {
	return e.Message
}
