package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/queue"
	"github.com/maheshrc27/postgroup/internal/queue/queuetest"
	"github.com/maheshrc27/postgroup/internal/service"
	"github.com/maheshrc27/postgroup/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestRetryGroupNoFailedPosts(t *testing.T) {
	mem, jobs, p := newPipeline(t)
	svc := service.NewRetryService(p)

	mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Status: models.PostStatusSuccess})
	jobs.Seed(queue.Job{Queue: queue.DownloadQueue, Payload: payload(t, queue.DownloadPayload{GroupID: "g1"})})

	resp, err := svc.RetryGroup(context.Background(), 7, "g1")
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, 0, resp.RetriedCount)
	assert.Equal(t, "no failed posts to retry", resp.Message)
	assert.Empty(t, jobs.Ops())
}

func TestRetryGroupCancelsStaleJobsFirst(t *testing.T) {
	mem, jobs, p := newPipeline(t)
	svc := service.NewRetryService(p)

	ok := mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Status: models.PostStatusSuccess})
	failed := mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Status: models.PostStatusFailed})
	other := mem.AddPost(models.Post{UserID: 7, GroupID: "g2", Platform: "twitter", Status: models.PostStatusFailed})
	mem.SetResult(models.PostResult{PostID: ok, Status: models.PostResultStatusSuccess, StatusText: "Posted successfully"})

	staleDownload := jobs.Seed(queue.Job{
		Queue:   queue.DownloadQueue,
		Payload: payload(t, queue.DownloadPayload{GroupID: "g1"}),
		State:   asynq.TaskStateActive,
	})
	stalePosting := jobs.Seed(queue.Job{
		Queue:   queue.PostingQueue(platform.Twitter),
		Payload: payload(t, queue.PostingPayload{UserID: 7, PostID: failed}),
		State:   asynq.TaskStateRetry,
	})
	jobs.Seed(queue.Job{Queue: queue.DownloadQueue, Payload: payload(t, queue.DownloadPayload{GroupID: "g2"})})
	jobs.Seed(queue.Job{Queue: queue.PostingQueue(platform.Twitter), Payload: payload(t, queue.PostingPayload{PostID: other})})

	resp, err := svc.RetryGroup(context.Background(), 7, "g1")
	require.NoError(t, err)
	assert.Equal(t, &transfer.RetryResponse{OK: true, RetriedCount: 1, GroupID: "g1"}, resp)

	ops := jobs.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, queuetest.OpRemove, ops[0].Kind)
	assert.Equal(t, staleDownload.ID, ops[0].Job.ID)
	assert.Equal(t, queuetest.OpRemove, ops[1].Kind)
	assert.Equal(t, stalePosting.ID, ops[1].Job.ID)

	assert.Equal(t, queuetest.OpEnqueue, ops[2].Kind)
	assert.Equal(t, queue.DownloadQueue, ops[2].Job.Queue)
	assert.Equal(t, 1, ops[2].MaxRetry)
	assert.JSONEq(t, `{"groupId":"g1","retryOnly":true}`, string(ops[2].Job.Payload))

	for _, id := range []int64{ok, failed} {
		assert.Equal(t, models.PostStatusPending, mem.Post(id).Status)
		assert.Equal(t, models.PostResultStatusPending, mem.Result(id).Status)
	}
	assert.Equal(t, models.PostStatusFailed, mem.Post(other).Status)
}

func TestRetryGroupNotFound(t *testing.T) {
	mem, jobs, p := newPipeline(t)
	svc := service.NewRetryService(p)
	mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Status: models.PostStatusFailed})

	_, err := svc.RetryGroup(context.Background(), 8, "g1")
	assert.ErrorIs(t, err, service.ErrGroupNotFound)
	assert.Empty(t, jobs.Ops())
}

func TestRetryGroupOnlyTouchesCallersPosts(t *testing.T) {
	mem, _, p := newPipeline(t)
	svc := service.NewRetryService(p)

	mine := mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Status: models.PostStatusFailed})
	theirs := mem.AddPost(models.Post{UserID: 8, GroupID: "g1", Platform: "twitter", Status: models.PostStatusFailed})
	mem.AddPost(models.Post{UserID: 8, GroupID: "g1", Platform: "twitter", Status: models.PostStatusFailed})

	resp, err := svc.RetryGroup(context.Background(), 7, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.RetriedCount)

	assert.Equal(t, models.PostStatusPending, mem.Post(mine).Status)
	assert.Equal(t, models.PostStatusFailed, mem.Post(theirs).Status)
	assert.Nil(t, mem.Result(theirs))
}
