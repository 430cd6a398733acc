// Package httplog writes an access log line for every outgoing HTTP call.
package httplog

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

// RoundTripper logs request and response of each call through ylog.Access.
// Bodies are buffered so they stay readable for the caller.
type RoundTripper struct {
	Base http.RoundTripper

	// MaskHeaders are replaced with "***" in the log, e.g. Authorization.
	MaskHeaders []string
}

var _ http.RoundTripper = (*RoundTripper)(nil)

func New(base http.RoundTripper, maskHeaders ...string) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	return &RoundTripper{
		Base:        base,
		MaskHeaders: maskHeaders,
	}
}

func (r *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	t0 := time.Now()

	var (
		reqBody []byte
		logErr  error
	)

	if req.Body != nil {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("error read request body: %w", err)
		}

		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	base := r.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		r.log(req, reqBody, nil, nil, err, t0)
		return nil, err
	}

	var respBody []byte
	if resp.Body != nil {
		var readErr error
		respBody, readErr = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			logErr = multierr.Append(logErr, fmt.Errorf("error read response body: %w", readErr))
			r.log(req, reqBody, resp, respBody, logErr, t0)
			return nil, readErr
		}

		resp.Body = io.NopCloser(bytes.NewReader(respBody))
	}

	r.log(req, reqBody, resp, respBody, logErr, t0)
	return resp, nil
}

func (r *RoundTripper) log(req *http.Request, reqBody []byte, resp *http.Response, respBody []byte, err error, t0 time.Time) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	respHeader := http.Header{}
	if resp != nil {
		respHeader = resp.Header
	}

	ylog.Access(req.Context(), ylog.AccessLogData{
		Path: req.URL.String(),
		Request: ylog.HTTPData{
			Header:     r.toSimpleMap(req.Header),
			DataString: string(reqBody),
		},
		Response: ylog.HTTPData{
			Header:     r.toSimpleMap(respHeader),
			DataString: string(respBody),
		},
		Error:       errStr,
		ElapsedTime: time.Since(t0).Milliseconds(),
	})
}

func (r *RoundTripper) toSimpleMap(h http.Header) map[string]string {
	out := map[string]string{}
	for k, v := range h {
		out[k] = strings.Join(v, " ")
	}

	for _, k := range r.MaskHeaders {
		k = http.CanonicalHeaderKey(k)
		if _, ok := out[k]; ok {
			out[k] = "***"
		}
	}

	return out
}
