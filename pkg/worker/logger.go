package worker

import (
	"context"

	"github.com/yusufsyaifudin/ylog"
)

type Logger interface {
	Info(ctx context.Context, msg string)
}

type ylogger struct{}

func (*ylogger) Info(ctx context.Context, msg string) {
	ylog.Debug(ctx, msg)
}
