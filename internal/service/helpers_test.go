package service_test

import (
	"context"
	"testing"

	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/queue"
	"github.com/maheshrc27/postgroup/internal/queue/queuetest"
	"github.com/maheshrc27/postgroup/internal/repository/repotest"
	"go.uber.org/zap/zaptest"
)

type connectedProvider struct{}

func (connectedProvider) Platform() platform.Platform { return platform.Twitter }

func (connectedProvider) IsConnected(ctx context.Context, userID int64) (bool, error) {
	return true, nil
}

func (connectedProvider) Post(ctx context.Context, userID int64, req platform.PostRequest) (platform.Result, error) {
	return platform.Result{Success: true, PlatformPostID: "1"}, nil
}

func newPipeline(t *testing.T) (*repotest.Memory, *queuetest.Fake, *queue.Pipeline) {
	t.Helper()
	mem, store := repotest.NewStore()
	jobs := queuetest.New()
	p := queue.NewPipeline(jobs, store, platform.NewRegistry(connectedProvider{}), zaptest.NewLogger(t), 2)
	return mem, jobs, p
}
