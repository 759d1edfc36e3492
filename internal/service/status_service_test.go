package service_test

import (
	"context"
	"slices"
	"testing"

	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postStatuses = []string{
	models.PostStatusPending,
	models.PostStatusWorking,
	models.PostStatusFailed,
	models.PostStatusSuccess,
}

// combos returns every sequence of n statuses.
func combos(n int) [][]string {
	if n == 0 {
		return [][]string{{}}
	}
	var out [][]string
	for _, prefix := range combos(n - 1) {
		for _, s := range postStatuses {
			out = append(out, append(slices.Clone(prefix), s))
		}
	}
	return out
}

func TestReduceGroupStatus(t *testing.T) {
	for n := 1; n <= 4; n++ {
		for _, statuses := range combos(n) {
			var want string
			switch {
			case slices.Contains(statuses, models.PostStatusWorking):
				want = models.PostStatusWorking
			case slices.Contains(statuses, models.PostStatusPending):
				want = models.PostStatusPending
			case slices.Contains(statuses, models.PostStatusFailed):
				want = models.PostStatusFailed
			default:
				want = models.PostStatusSuccess
			}
			assert.Equal(t, want, service.ReduceGroupStatus(statuses), "%v", statuses)
		}
	}
}

func TestDownloadingPostKeepsGroupWorking(t *testing.T) {
	for n := 0; n <= 3; n++ {
		for _, others := range combos(n) {
			statuses := []string{service.PostStatus(models.PostStatusPending, service.DownloadStatusWorking)}
			for _, stored := range others {
				statuses = append(statuses, service.PostStatus(stored, service.DownloadStatusCompleted))
			}
			assert.Equal(t, models.PostStatusWorking, service.ReduceGroupStatus(statuses), "%v", others)
		}
	}
}

func TestReduceDownloadStatus(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, service.DownloadStatusCompleted},
		{[]string{""}, service.DownloadStatusPending},
		{[]string{"", ""}, service.DownloadStatusPending},
		{[]string{models.DownloadStatusDownloading, models.DownloadStatusFailed}, service.DownloadStatusWorking},
		{[]string{models.DownloadStatusSuccess, models.DownloadStatusFailed}, service.DownloadStatusFailed},
		{[]string{models.DownloadStatusSuccess, models.DownloadStatusSuccess}, service.DownloadStatusCompleted},
		{[]string{models.DownloadStatusSuccess, ""}, service.DownloadStatusWorking},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, service.ReduceDownloadStatus(tt.in), "%v", tt.in)
	}
}

func TestPostStatus(t *testing.T) {
	assert.Equal(t, models.PostStatusPending, service.PostStatus(models.PostStatusPending, service.DownloadStatusPending))
	assert.Equal(t, models.PostStatusWorking, service.PostStatus(models.PostStatusPending, service.DownloadStatusCompleted))
	assert.Equal(t, models.PostStatusWorking, service.PostStatus(models.PostStatusPending, service.DownloadStatusFailed))
	assert.Equal(t, models.PostStatusWorking, service.PostStatus(models.PostStatusSuccess, service.DownloadStatusWorking))
	assert.Equal(t, models.PostStatusFailed, service.PostStatus(models.PostStatusFailed, service.DownloadStatusFailed))
	assert.Equal(t, models.PostStatusSuccess, service.PostStatus(models.PostStatusSuccess, service.DownloadStatusCompleted))
}

func TestGroupStatus(t *testing.T) {
	mem, _, p := newPipeline(t)
	svc := service.NewStatusService(p.Store)

	tw := mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Text: "a"})
	bs := mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "bluesky", Text: "b", Status: models.PostStatusFailed})

	first := mem.AddMedia(tw, 0, "https://cdn.example.com/a.jpg", models.MediaTypeImage, "/media/a.jpg")
	second := mem.AddMedia(tw, 1, "https://cdn.example.com/b.jpg", models.MediaTypeImage, "")
	mem.SetDownload(models.MediaDownloadResult{MediaID: first, Status: models.DownloadStatusSuccess})
	mem.SetDownload(models.MediaDownloadResult{MediaID: second, Status: models.DownloadStatusDownloading})

	mem.SetResult(models.PostResult{PostID: bs, Status: models.PostResultStatusFailed, StatusText: "bluesky posting not yet implemented"})

	resp, err := svc.GroupStatus(context.Background(), 7, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", resp.GroupID)
	assert.Equal(t, models.PostStatusWorking, resp.Status)
	require.Len(t, resp.Posts, 2)

	twView := resp.Posts[0]
	assert.Equal(t, tw, twView.PostID)
	assert.Equal(t, models.PostStatusWorking, twView.Status)
	assert.Equal(t, service.DownloadStatusWorking, twView.DownloadStatus)
	assert.Equal(t, 50, twView.DownloadProgress)
	assert.Nil(t, twView.PostStatus)

	bsView := resp.Posts[1]
	assert.Equal(t, models.PostStatusFailed, bsView.Status)
	assert.Equal(t, service.DownloadStatusCompleted, bsView.DownloadStatus)
	assert.Equal(t, 100, bsView.DownloadProgress)
	require.NotNil(t, bsView.PostStatusText)
	assert.Equal(t, "bluesky posting not yet implemented", *bsView.PostStatusText)
	assert.Equal(t, models.PostResultStatusFailed, *bsView.PostStatus)
}

func TestGroupStatusDownloadError(t *testing.T) {
	mem, _, p := newPipeline(t)
	svc := service.NewStatusService(p.Store)

	id := mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter", Status: models.PostStatusFailed})
	mediaID := mem.AddMedia(id, 0, "https://cdn.example.com/a.jpg", models.MediaTypeImage, "")
	msg := "fetch https://cdn.example.com/a.jpg: status 404"
	mem.SetDownload(models.MediaDownloadResult{MediaID: mediaID, Status: models.DownloadStatusFailed, Error: &msg})

	resp, err := svc.GroupStatus(context.Background(), 7, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, resp.Status)
	assert.Equal(t, service.DownloadStatusFailed, resp.Posts[0].DownloadStatus)
	assert.Equal(t, &msg, resp.Posts[0].DownloadError)
	assert.Equal(t, 0, resp.Posts[0].DownloadProgress)
}

func TestGroupStatusNotFound(t *testing.T) {
	mem, _, p := newPipeline(t)
	svc := service.NewStatusService(p.Store)
	mem.AddPost(models.Post{UserID: 7, GroupID: "g1", Platform: "twitter"})

	_, err := svc.GroupStatus(context.Background(), 8, "g1")
	assert.ErrorIs(t, err, service.ErrGroupNotFound)

	_, err = svc.GroupStatus(context.Background(), 7, "missing")
	assert.ErrorIs(t, err, service.ErrGroupNotFound)
}
