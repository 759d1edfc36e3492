package queue

import (
	"context"

	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/repository"
	"go.uber.org/zap"
)

// Pipeline is the shared context of the download and posting workers: the job
// queue, the store and the platform providers.
type Pipeline struct {
	Jobs             JobQueue
	Store            repository.Store
	Providers        *platform.Registry
	Log              *zap.Logger
	DownloadMaxRetry int
	// FinalAttempt reports whether a failure of the running job exhausts its
	// retries. It reads the asynq retry counters unless replaced.
	FinalAttempt func(ctx context.Context) bool
}

func NewPipeline(
	jobs JobQueue,
	store repository.Store,
	providers *platform.Registry,
	log *zap.Logger,
	downloadMaxRetry int) *Pipeline {
	return &Pipeline{
		Jobs:             jobs,
		Store:            store,
		Providers:        providers,
		Log:              log,
		DownloadMaxRetry: downloadMaxRetry,
		FinalAttempt:     finalAttempt,
	}
}

func (p *Pipeline) lastAttempt(ctx context.Context) bool {
	if p.FinalAttempt == nil {
		return finalAttempt(ctx)
	}
	return p.FinalAttempt(ctx)
}

const (
	DownloadQueue        = "media-download"
	TaskTypeDownload     = "media:download"
	taskTypePostPrefix   = "post:"
	postingQueuePrefix   = "post-"
	postingMaxRetry      = 2
	retryDownloadRetries = 1
)

// PostingQueue is the queue a platform's posting jobs are enqueued on.
func PostingQueue(p platform.Platform) string {
	return postingQueuePrefix + string(p)
}

// PostingTaskType is the task type a platform's posting worker handles.
func PostingTaskType(p platform.Platform) string {
	return taskTypePostPrefix + string(p)
}

type DownloadPayload struct {
	GroupID   string `json:"groupId"`
	RetryOnly bool   `json:"retryOnly,omitempty"`
}

type PostingPayload struct {
	UserID int64  `json:"userId"`
	PostID int64  `json:"postId"`
	Text   string `json:"text"`
}

// DownloadOutcome is the value a finished download job returns.
type DownloadOutcome struct {
	OK             bool `json:"ok"`
	PostsProcessed int  `json:"postsProcessed"`
}
