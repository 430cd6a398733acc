package respbuilder

import "context"

type respCtxKey struct{}

var respTracerKey = respCtxKey{}

// Tracer is the request-scoped data echoed back to the caller, currently only via the Tracer-ID header.
type Tracer struct {
	RemoteAddr string
	AppTraceID string
}

// Inject puts Tracer into ctx.
func Inject(ctx context.Context, stuff Tracer) context.Context {
	return context.WithValue(ctx, respTracerKey, stuff)
}

// Extract get Tracer information from context
func Extract(ctx context.Context) (Tracer, bool) {
	stuff, ok := ctx.Value(respTracerKey).(Tracer)
	return stuff, ok
}

// MustExtract returns the zero Tracer when ctx carries none.
func MustExtract(ctx context.Context) Tracer {
	stuff, _ := Extract(ctx)
	return stuff
}
