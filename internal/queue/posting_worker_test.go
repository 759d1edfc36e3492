package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostingWorkerPublishes(t *testing.T) {
	h := newHarness(t)
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Text: "stored"})
	h.mem.AddMedia(postID, 1, "https://cdn.example.com/b.mp4", models.MediaTypeVideo, "/media/b.mp4")
	h.mem.AddMedia(postID, 0, "https://cdn.example.com/a.jpg", models.MediaTypeImage, "/media/a.jpg")

	rec := &recorder{}
	res, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: postID, Text: "hello"}, rec)
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Equal(t, []queue.ProgressEvent{
		queue.Login{PostID: postID},
		queue.Upload{PostID: postID, Media: 2},
		queue.Posted{PostID: postID, Done: true},
	}, rec.events)

	require.Len(t, h.twitter.requests, 1)
	assert.Equal(t, platform.PostRequest{
		Platform: platform.Twitter,
		Post: platform.Content{
			Text: "hello",
			Media: []platform.MediaFile{
				{Path: "/media/a.jpg", Type: models.MediaTypeImage},
				{Path: "/media/b.mp4", Type: models.MediaTypeVideo},
			},
		},
	}, h.twitter.requests[0])

	result := h.mem.Result(postID)
	require.NotNil(t, result)
	assert.Equal(t, models.PostResultStatusSuccess, result.Status)
	assert.Equal(t, "Posted successfully", result.StatusText)
	require.NotNil(t, result.PlatformPostID)
	assert.Equal(t, "1790", *result.PlatformPostID)
	assert.Equal(t, models.PostStatusSuccess, h.mem.Post(postID).Status)
}

func TestPostingWorkerFallsBackToStoredText(t *testing.T) {
	h := newHarness(t)
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Text: "stored"})

	_, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: postID}, &recorder{})
	require.NoError(t, err)
	require.Len(t, h.twitter.requests, 1)
	assert.Equal(t, "stored", h.twitter.requests[0].Post.Text)
}

func TestPostingWorkerAccountNotConnected(t *testing.T) {
	h := newHarness(t)
	h.twitter.connected = false
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})

	rec := &recorder{}
	res, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: postID}, rec)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, h.twitter.requests)
	assert.Equal(t, []queue.Phase{queue.PhaseLogin, queue.PhasePost}, rec.phases())

	result := h.mem.Result(postID)
	require.NotNil(t, result)
	assert.Equal(t, models.PostResultStatusFailed, result.Status)
	assert.Equal(t, "twitter account is not connected", result.StatusText)
	assert.Equal(t, models.PostStatusFailed, h.mem.Post(postID).Status)
}

func TestPostingWorkerPlatformRejection(t *testing.T) {
	h := newHarness(t)
	h.twitter.result = platform.Failed("duplicate content")
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})

	res, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: postID}, &recorder{})
	require.NoError(t, err)
	assert.False(t, res.Success)

	result := h.mem.Result(postID)
	require.NotNil(t, result)
	assert.Equal(t, "duplicate content", result.StatusText)
	assert.Nil(t, result.PlatformPostID)
}

func TestPostingWorkerTransientErrorOnFinalAttempt(t *testing.T) {
	h := newHarness(t)
	h.twitter.err = errors.New("twitter: 503 service unavailable")
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})

	// Outside an asynq server there are no retries left, so the error is recorded.
	_, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: postID}, &recorder{})
	require.NoError(t, err)

	result := h.mem.Result(postID)
	require.NotNil(t, result)
	assert.Equal(t, models.PostResultStatusFailed, result.Status)
	assert.Equal(t, "twitter: 503 service unavailable", result.StatusText)
}

func TestPostingWorkerMediaNotDownloaded(t *testing.T) {
	h := newHarness(t)
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})
	mediaID := h.mem.AddMedia(postID, 0, "https://cdn.example.com/a.jpg", models.MediaTypeImage, "")

	rec := &recorder{}
	res, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: postID}, rec)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, h.twitter.requests)
	assert.Equal(t, platform.Failed("media %d has not been downloaded", mediaID).Error, h.mem.Result(postID).StatusText)
	assert.Equal(t, []queue.ProgressEvent{
		queue.Login{PostID: postID},
		queue.Posted{PostID: postID, Done: true},
	}, rec.events)
}

func TestPostingWorkerMissingPost(t *testing.T) {
	h := newHarness(t)
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	_, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: 404}, &recorder{})
	require.Error(t, err)
	assert.Empty(t, h.twitter.requests)
}

func TestPostingWorkerStoreFailure(t *testing.T) {
	h := newHarness(t)
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})
	h.mem.Fail = errors.New("connection reset")

	_, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: postID}, &recorder{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestPostingWorkerTransientErrorWithRetriesLeft(t *testing.T) {
	h := newHarness(t)
	h.pipeline.FinalAttempt = retriesLeft
	h.twitter.err = errors.New("twitter: 503 service unavailable")
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})

	rec := &recorder{}
	_, err := worker.Process(context.Background(), queue.PostingPayload{UserID: 7, PostID: postID}, rec)
	assert.EqualError(t, err, "twitter: 503 service unavailable")

	assert.Nil(t, h.mem.Result(postID))
	assert.Equal(t, models.PostStatusPending, h.mem.Post(postID).Status)
	assert.NotContains(t, rec.phases(), queue.PhasePost)
}

func TestPostingTaskCancelledMidPostIsRevoked(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.twitter.onPost = cancel
	h.twitter.err = context.Canceled
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})

	data, err := json.Marshal(queue.PostingPayload{UserID: 7, PostID: postID})
	require.NoError(t, err)

	err = worker.HandlePostTask(ctx, asynq.NewTask(queue.PostingTaskType(platform.Twitter), data))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.RevokeTask)

	assert.Nil(t, h.mem.Result(postID))
	assert.Equal(t, models.PostStatusPending, h.mem.Post(postID).Status)
}

func TestPostingTaskCancelledBeforeUploadSkipsProvider(t *testing.T) {
	h := newHarness(t)
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, err := json.Marshal(queue.PostingPayload{UserID: 7, PostID: postID})
	require.NoError(t, err)

	err = worker.HandlePostTask(ctx, asynq.NewTask(queue.PostingTaskType(platform.Twitter), data))
	assert.ErrorIs(t, err, asynq.RevokeTask)
	assert.Empty(t, h.twitter.requests)
	assert.Nil(t, h.mem.Result(postID))
}

func TestPostingWorkerStoresSuccessAfterCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.twitter.onPost = cancel
	worker := queue.NewPostingWorker(h.pipeline, h.twitter)

	postID := h.mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})

	res, err := worker.Process(ctx, queue.PostingPayload{UserID: 7, PostID: postID}, &recorder{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.PostStatusSuccess, h.mem.Post(postID).Status)
}
