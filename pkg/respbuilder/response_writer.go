package respbuilder

import (
	"net/http"

	"github.com/segmentio/encoding/json"
)

func setHeaders(rw http.ResponseWriter, r *http.Request) {
	tracer := MustExtract(r.Context())
	if tracer.AppTraceID != "" {
		rw.Header().Set("Tracer-ID", tracer.AppTraceID)
	}
}

func WriteJSON(httpStatus int, rw http.ResponseWriter, r *http.Request, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		httpStatus = http.StatusInternalServerError
		payload, _ = json.Marshal(Error(ErrUnhandled, err))
	}

	setHeaders(rw, r)
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(httpStatus)
	_, _ = rw.Write(append(payload, '\n'))
}

// WriteError writes e using its own status code.
func WriteError(rw http.ResponseWriter, r *http.Request, e HTTPError) {
	WriteJSON(e.Status, rw, r, e)
}

// NoContent writes 204 without body.
func NoContent(rw http.ResponseWriter, r *http.Request) {
	setHeaders(rw, r)
	rw.WriteHeader(http.StatusNoContent)
}
