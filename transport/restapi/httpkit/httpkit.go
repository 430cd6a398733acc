// Package httpkit is shared by the REST handlers: body decoding and mapping of service errors to responses.
package httpkit

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/katalog/internal/svc/svcerr"
	"github.com/yusufsyaifudin/katalog/pkg/errtrack"
	"github.com/yusufsyaifudin/katalog/pkg/respbuilder"
	"github.com/yusufsyaifudin/ylog"
)

const MsgInvalidBody = "Invalid JSON body"

// maxBodySize caps request bodies, listings and reports are small.
const maxBodySize = 1 << 20

var ErrInvalidBody = errors.New("invalid request body")

// Decode reads a JSON body into dst. Any failure is reported as ErrInvalidBody.
func Decode(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("%w: empty body", ErrInvalidBody)
	}

	defer func() {
		if _err := r.Body.Close(); _err != nil {
			ylog.Error(r.Context(), "cannot close request body", ylog.KV("error", _err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBody, err)
	}

	if err = json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBody, err)
	}

	return nil
}

// FromErr maps the service error taxonomy to a response. fallback is the message of an unexpected error.
func FromErr(err error, fallback string) respbuilder.HTTPError {
	switch {
	case errors.Is(err, ErrInvalidBody):
		return respbuilder.Error(respbuilder.ErrValidation, errors.New(MsgInvalidBody))

	case errors.Is(err, svcerr.ErrUnauthorized):
		return respbuilder.Error(respbuilder.ErrUnauthorized, nil)

	case errors.Is(err, svcerr.ErrValidation), errors.Is(err, svcerr.ErrNoFields):
		return respbuilder.Error(respbuilder.ErrValidation, errors.New(svcerr.Message(err, err.Error())))

	case errors.Is(err, svcerr.ErrNotFound):
		return respbuilder.Error(respbuilder.ErrResourceNotFound, errors.New(svcerr.Message(err, "Not found")))
	}

	// persistence and unknown errors only expose the message prepared by the service
	resp := respbuilder.Error(respbuilder.ErrUnhandled, err)
	resp.Message = svcerr.Message(err, fallback)
	return resp
}

// WriteErr writes err and sends unexpected ones to the tracker. tracker may be nil.
func WriteErr(w http.ResponseWriter, r *http.Request, tracker *errtrack.Tracker, err error, fallback string) {
	resp := FromErr(err, fallback)
	if resp.Status >= http.StatusInternalServerError {
		tracker.CaptureRequest(r, err, fallback)
	} else {
		ylog.Debug(r.Context(), "request rejected", ylog.KV("status", resp.Status), ylog.KV("error", err))
	}

	respbuilder.WriteError(w, r, resp)
}
