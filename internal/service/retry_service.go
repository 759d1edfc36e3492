package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/queue"
	"github.com/maheshrc27/postgroup/internal/transfer"
	"go.uber.org/zap"
)

const (
	noFailedPosts = "no failed posts to retry"
	retryQueued   = "retry queued"
)

type RetryService interface {
	RetryGroup(ctx context.Context, userID int64, groupID string) (*transfer.RetryResponse, error)
}

type retryService struct {
	p *queue.Pipeline
}

func NewRetryService(p *queue.Pipeline) RetryService {
	return &retryService{p: p}
}

// RetryGroup restarts a group that has failed posts. Jobs still queued or
// running for the group are removed before any state is reset, so a stale job
// cannot overwrite the new attempt's results.
func (s *retryService) RetryGroup(ctx context.Context, userID int64, groupID string) (*transfer.RetryResponse, error) {
	posts, err := s.p.Store.Posts.ListByGroupAndUser(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrGroupNotFound
	}

	failedCount := 0
	ids := make([]int64, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
		if post.Status == models.PostStatusFailed {
			failedCount++
		}
	}
	if failedCount == 0 {
		return &transfer.RetryResponse{OK: true, RetriedCount: 0, GroupID: groupID, Message: noFailedPosts}, nil
	}

	log := s.p.Log.With(zap.String("group_id", groupID), zap.Int64("user_id", userID))

	removed, err := s.cancelJobs(ctx, groupID, posts)
	if err != nil {
		return nil, err
	}

	if err := s.p.Store.Posts.UpdatePostsStatus(ctx, models.PostStatusPending, ids); err != nil {
		return nil, err
	}
	for _, post := range posts {
		res := &models.PostResult{PostID: post.ID, Status: models.PostResultStatusPending, StatusText: retryQueued}
		if err := s.p.Store.Results.Upsert(ctx, res); err != nil {
			return nil, err
		}
	}

	job, err := queue.EnqueueRetryDownload(ctx, s.p.Jobs, groupID)
	if err != nil {
		return nil, fmt.Errorf("enqueue retry download job: %w", err)
	}

	log.Info("group retry queued",
		zap.Int("failed_posts", failedCount),
		zap.Int("removed_jobs", removed),
		zap.String("job_id", job.ID),
	)

	return &transfer.RetryResponse{OK: true, RetriedCount: failedCount, GroupID: groupID}, nil
}

func (s *retryService) cancelJobs(ctx context.Context, groupID string, posts []*models.Post) (int, error) {
	inGroup := make(map[int64]struct{}, len(posts))
	for _, post := range posts {
		inGroup[post.ID] = struct{}{}
	}

	var stale []*queue.Job

	downloads, err := s.p.Jobs.List(ctx, queue.DownloadQueue, func(job *queue.Job) bool {
		var payload queue.DownloadPayload
		return json.Unmarshal(job.Payload, &payload) == nil && payload.GroupID == groupID
	})
	if err != nil {
		return 0, err
	}
	stale = append(stale, downloads...)

	for _, p := range s.p.Providers.Implemented() {
		jobs, err := s.p.Jobs.List(ctx, queue.PostingQueue(p), func(job *queue.Job) bool {
			var payload queue.PostingPayload
			if json.Unmarshal(job.Payload, &payload) != nil {
				return false
			}
			_, ok := inGroup[payload.PostID]
			return ok
		})
		if err != nil {
			return 0, err
		}
		stale = append(stale, jobs...)
	}

	for _, job := range stale {
		if err := s.p.Jobs.Remove(ctx, job); err != nil {
			return 0, err
		}
		s.p.Log.Debug("removed stale job", zap.String("queue", job.Queue), zap.String("job_id", job.ID))
	}
	return len(stale), nil
}
