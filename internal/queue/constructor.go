package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postgroup/internal/platform"
)

const (
	postingBaseDelay = 2 * time.Second
	retryDelay       = time.Second
)

// EnqueueDownload queues a download job with the queue's default retry policy.
func EnqueueDownload(ctx context.Context, jobs JobQueue, payload DownloadPayload, maxRetry int) (*Job, error) {
	return enqueue(ctx, jobs, TaskTypeDownload, payload, asynq.Queue(DownloadQueue), asynq.MaxRetry(maxRetry))
}

// EnqueueRetryDownload queues the download job of a retried group: two attempts,
// one second apart.
func EnqueueRetryDownload(ctx context.Context, jobs JobQueue, groupID string) (*Job, error) {
	payload := DownloadPayload{GroupID: groupID, RetryOnly: true}
	return enqueue(ctx, jobs, TaskTypeDownload, payload, asynq.Queue(DownloadQueue), asynq.MaxRetry(retryDownloadRetries))
}

// EnqueuePosting queues a posting job for p: three attempts with exponential
// backoff from two seconds.
func EnqueuePosting(ctx context.Context, jobs JobQueue, p platform.Platform, payload PostingPayload, opts ...asynq.Option) (*Job, error) {
	opts = append([]asynq.Option{asynq.Queue(PostingQueue(p)), asynq.MaxRetry(postingMaxRetry)}, opts...)
	return enqueue(ctx, jobs, PostingTaskType(p), payload, opts...)
}

func enqueue(ctx context.Context, jobs JobQueue, taskType string, payload any, opts ...asynq.Option) (*Job, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return jobs.Enqueue(ctx, asynq.NewTask(taskType, taskPayload), opts...)
}

// RetryDelay is the servers' asynq.RetryDelayFunc. n is the number of times the
// task has already been retried.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	switch {
	case strings.HasPrefix(task.Type(), taskTypePostPrefix):
		return postingBaseDelay << n
	case task.Type() == TaskTypeDownload:
		var payload DownloadPayload
		if json.Unmarshal(task.Payload(), &payload) == nil && payload.RetryOnly {
			return retryDelay
		}
	}
	return asynq.DefaultRetryDelayFunc(n, err, task)
}
