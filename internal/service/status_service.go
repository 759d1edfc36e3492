package service

import (
	"context"

	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/queue"
	"github.com/maheshrc27/postgroup/internal/repository"
	"github.com/maheshrc27/postgroup/internal/transfer"
)

const (
	DownloadStatusPending   = "pending"
	DownloadStatusWorking   = "working"
	DownloadStatusCompleted = "completed"
	DownloadStatusFailed    = "failed"
)

type StatusService interface {
	GroupStatus(ctx context.Context, userID int64, groupID string) (*transfer.StatusResponse, error)
}

type statusService struct {
	store repository.Store
}

func NewStatusService(store repository.Store) StatusService {
	return &statusService{store: store}
}

func (s *statusService) GroupStatus(ctx context.Context, userID int64, groupID string) (*transfer.StatusResponse, error) {
	posts, err := s.store.Posts.ListByGroupAndUser(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrGroupNotFound
	}

	ids := make([]int64, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	results, err := s.store.Results.ListByPostIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byPost := make(map[int64]*models.PostResult, len(results))
	for _, res := range results {
		byPost[res.PostID] = res
	}

	views := make([]transfer.PostStatusView, 0, len(posts))
	statuses := make([]string, 0, len(posts))
	for _, post := range posts {
		items, err := s.store.PostMedia.ListByPostID(ctx, post.ID)
		if err != nil {
			return nil, err
		}

		view := postView(post, items, byPost[post.ID])
		views = append(views, view)
		statuses = append(statuses, view.Status)
	}

	return &transfer.StatusResponse{
		GroupID: groupID,
		Status:  ReduceGroupStatus(statuses),
		Posts:   views,
	}, nil
}

func postView(post *models.Post, items []*models.PostMediaItem, res *models.PostResult) transfer.PostStatusView {
	downloads := make([]string, 0, len(items))
	succeeded := 0
	var downloadError *string
	for _, item := range items {
		if item.DownloadStatus == nil {
			downloads = append(downloads, "")
			continue
		}
		downloads = append(downloads, *item.DownloadStatus)
		switch *item.DownloadStatus {
		case models.DownloadStatusSuccess:
			succeeded++
		case models.DownloadStatusFailed:
			if downloadError == nil {
				downloadError = item.DownloadError
			}
		}
	}

	downloadStatus := ReduceDownloadStatus(downloads)

	view := transfer.PostStatusView{
		PostID:           post.ID,
		Platform:         post.Platform,
		Text:             post.Text,
		Status:           PostStatus(post.Status, downloadStatus),
		DownloadStatus:   downloadStatus,
		DownloadProgress: queue.Percent(succeeded, len(items)),
		DownloadError:    downloadError,
	}
	if res != nil {
		status, text := res.Status, res.StatusText
		view.PostStatus = &status
		view.PostStatusText = &text
		view.PlatformPostID = res.PlatformPostID
	}
	return view
}

// ReduceDownloadStatus folds a post's media download statuses. An empty string
// stands for media nobody has tried to download yet. A post without media is
// completed.
func ReduceDownloadStatus(statuses []string) string {
	if len(statuses) == 0 {
		return DownloadStatusCompleted
	}

	var downloading, failed, succeeded int
	for _, s := range statuses {
		switch s {
		case models.DownloadStatusDownloading:
			downloading++
		case models.DownloadStatusFailed:
			failed++
		case models.DownloadStatusSuccess:
			succeeded++
		}
	}

	switch {
	case downloading > 0:
		return DownloadStatusWorking
	case failed > 0:
		return DownloadStatusFailed
	case succeeded == len(statuses):
		return DownloadStatusCompleted
	case succeeded == 0:
		return DownloadStatusPending
	default:
		return DownloadStatusWorking
	}
}

// PostStatus is the aggregated status of one post. A post whose media are in
// flight is working whatever its stored status says. A pending post is working
// once its download has started, since the pipeline owns it from then on.
func PostStatus(stored, downloadStatus string) string {
	if downloadStatus == DownloadStatusWorking {
		return models.PostStatusWorking
	}

	switch stored {
	case models.PostStatusSuccess, models.PostStatusFailed, models.PostStatusWorking:
		return stored
	}

	if downloadStatus == DownloadStatusPending {
		return models.PostStatusPending
	}
	return models.PostStatusWorking
}

// ReduceGroupStatus folds per-post statuses: working, then pending, then
// failed, else success.
func ReduceGroupStatus(statuses []string) string {
	var pending, failed bool
	for _, s := range statuses {
		switch s {
		case models.PostStatusWorking:
			return models.PostStatusWorking
		case models.PostStatusPending:
			pending = true
		case models.PostStatusFailed:
			failed = true
		}
	}

	switch {
	case pending:
		return models.PostStatusPending
	case failed:
		return models.PostStatusFailed
	default:
		return models.PostStatusSuccess
	}
}
