package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/platform"
	"go.uber.org/zap"
)

const postedSuccessfully = "Posted successfully"

// FanOut hands every post to its platform's posting worker. Posts on platforms
// without a worker get the provider's fixed failure recorded right away.
//
// A non-empty dedupKey makes the posting task ids deterministic, so a
// re-delivered download job does not queue the same post twice.
func (p *Pipeline) FanOut(ctx context.Context, posts []*models.Post, dedupKey string) error {
	for _, post := range posts {
		if err := p.dispatch(ctx, post, dedupKey); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) dispatch(ctx context.Context, post *models.Post, dedupKey string) error {
	log := p.Log.With(zap.Int64("post_id", post.ID), zap.String("platform", post.Platform))

	provider, ok := p.Providers.Worker(post.Platform)
	if !ok {
		res, err := provider.Post(ctx, post.UserID, platform.PostRequest{
			Platform: provider.Platform(),
			Post:     platform.Content{Text: post.Text},
		})
		if err != nil {
			return err
		}
		log.Info("platform has no posting worker", zap.String("status_text", res.Error))
		return p.RecordResult(ctx, post.ID, res)
	}

	var opts []asynq.Option
	if dedupKey != "" {
		opts = append(opts, asynq.TaskID(fmt.Sprintf("%s:post:%d", dedupKey, post.ID)))
	}

	payload := PostingPayload{UserID: post.UserID, PostID: post.ID, Text: post.Text}
	job, err := EnqueuePosting(ctx, p.Jobs, provider.Platform(), payload, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			log.Info("posting job already queued")
			return nil
		}
		return fmt.Errorf("enqueue posting job for post %d: %w", post.ID, err)
	}
	log.Info("posting job enqueued", zap.String("job_id", job.ID))
	return nil
}

// RecordResult stores res as the post's latest result and moves the post to
// the matching status.
func (p *Pipeline) RecordResult(ctx context.Context, postID int64, res platform.Result) error {
	result := &models.PostResult{PostID: postID}
	status := models.PostStatusFailed

	if res.Success {
		status = models.PostStatusSuccess
		result.Status = models.PostResultStatusSuccess
		result.StatusText = postedSuccessfully
		if res.PlatformPostID != "" {
			id := res.PlatformPostID
			result.PlatformPostID = &id
		}
	} else {
		result.Status = models.PostResultStatusFailed
		result.StatusText = res.Error
	}

	if err := p.Store.Results.Upsert(ctx, result); err != nil {
		return err
	}
	return p.Store.Posts.UpdatePostStatus(ctx, status, postID)
}

// cancelled reports whether the job was cancelled through the inspector rather
// than timing out.
func cancelled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

// revoked marks err so asynq drops the cancelled job instead of moving it to
// the retry set.
func revoked(err error) error {
	if errors.Is(err, asynq.RevokeTask) {
		return err
	}
	return fmt.Errorf("job cancelled: %w: %w", err, asynq.RevokeTask)
}

// finalAttempt reports whether a failure now exhausts the task's retries.
// Outside an asynq handler every call counts as final.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
