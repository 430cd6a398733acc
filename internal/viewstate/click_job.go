package viewstate

import (
	"context"

	"github.com/yusufsyaifudin/katalog/pkg/apiclient"
	"github.com/yusufsyaifudin/katalog/pkg/worker"
	"github.com/yusufsyaifudin/ylog"
)

type clickJob struct {
	id     uint64
	ctx    context.Context
	appID  string
	client apiclient.Client
}

var _ worker.Job = (*clickJob)(nil)

func (j *clickJob) ID() uint64 {
	return j.id
}

func (j *clickJob) Context() context.Context {
	return j.ctx
}

func (j *clickJob) PreExecute() error {
	return nil
}

func (j *clickJob) Execute() error {
	_, err := j.client.IncrementClicks(j.ctx, j.appID)
	return err
}

func (j *clickJob) PostExecute(err error) {
	if err != nil {
		ylog.Error(j.ctx, "failed to increment clicks", ylog.KV("app_id", j.appID), ylog.KV("error", err))
	}
}
