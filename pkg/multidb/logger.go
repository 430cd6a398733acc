package multidb

import (
	"context"

	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/yusufsyaifudin/ylog"
)

// queryLogger writes statements of a database opened with debug enabled.
// Failed statements are logged as errors whatever the ylog level is.
type queryLogger struct {
	label string
}

var _ sqldblogger.Logger = (*queryLogger)(nil)

func (q *queryLogger) Log(ctx context.Context, level sqldblogger.Level, msg string, data map[string]interface{}) {
	kv := []ylog.KeyValue{
		ylog.KV("db", q.label),
		ylog.KV("query", data["query"]),
		ylog.KV("args", data["args"]),
		ylog.KV("duration_ms", data["duration"]),
	}

	if level == sqldblogger.LevelError {
		ylog.Error(ctx, msg, append(kv, ylog.KV("error", data["error"]))...)
		return
	}

	ylog.Debug(ctx, msg, kv...)
}
