package respbuilder

import (
	"net/http"
)

// Error builds the response for kind. The error text is exposed to the caller except for ErrUnhandled,
// whose details must only go to the logs.
func Error(reasonKind ErrKind, err error) HTTPError {
	reason, ok := ReasonMap[reasonKind]
	if !ok {
		return HTTPError{
			Status:  http.StatusInternalServerError,
			Message: "unknown error kind",
		}
	}

	msg := reason.Message
	if err != nil && reasonKind != ErrUnhandled {
		msg = err.Error()
	}

	return HTTPError{
		Status:  reason.Status,
		Message: msg,
	}
}
