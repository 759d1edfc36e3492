package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/platform"
	"go.uber.org/zap"
)

// Fetcher downloads a media URL to local disk and returns the file path.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DownloadWorker makes sure every media item of a group is on disk, then fans
// the group's posts out to the posting workers.
type DownloadWorker struct {
	p       *Pipeline
	fetcher Fetcher
}

func NewDownloadWorker(p *Pipeline, fetcher Fetcher) *DownloadWorker {
	return &DownloadWorker{p: p, fetcher: fetcher}
}

func (w *DownloadWorker) HandleDownloadTask(ctx context.Context, task *asynq.Task) error {
	var payload DownloadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode download payload: %v: %w", err, asynq.SkipRetry)
	}

	reporter := newTaskReporter(task, w.p.Log)
	outcome, err := w.Process(ctx, payload, reporter)
	if err != nil {
		if cancelled(ctx) {
			return revoked(err)
		}
		return err
	}

	if err := reporter.Result(ctx, outcome); err != nil {
		w.p.Log.Warn("unable to store download outcome", zap.String("group_id", payload.GroupID), zap.Error(err))
	}
	return nil
}

type postWork struct {
	post  *models.Post
	items []*models.PostMediaItem
}

// Process runs one attempt of a download job. A cancelled job stops without
// writing failures, since the retry that cancelled it owns the group's state.
func (w *DownloadWorker) Process(ctx context.Context, payload DownloadPayload, report ProgressReporter) (*DownloadOutcome, error) {
	log := w.p.Log.With(zap.String("group_id", payload.GroupID), zap.Bool("retry_only", payload.RetryOnly))

	var statuses []string
	if payload.RetryOnly {
		// A retry resets the whole group to pending before queueing this job,
		// so pending posts belong to the retry scope as well as failed ones.
		statuses = []string{models.PostStatusFailed, models.PostStatusPending}
	}

	posts, err := w.p.Store.Posts.ListByGroupID(ctx, payload.GroupID, statuses...)
	if err != nil {
		return nil, err
	}

	work := make([]postWork, 0, len(posts))
	total := 0
	for _, post := range posts {
		items, err := w.p.Store.PostMedia.ListByPostID(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		work = append(work, postWork{post: post, items: items})
		total += len(items)
	}

	w.emit(ctx, report, Starting{GroupID: payload.GroupID, RetryOnly: payload.RetryOnly})
	w.emit(ctx, report, Downloading{GroupID: payload.GroupID, Completed: 0, Total: total, Percent: 0})

	completed := 0
	onDisk := map[int64]string{}
	for _, pw := range work {
		for _, item := range pw.items {
			if cancelled(ctx) {
				log.Info("download job cancelled")
				return nil, revoked(ctx.Err())
			}
			if err := w.ensureDownloaded(ctx, &item.Media, onDisk); err != nil {
				if cancelled(ctx) {
					log.Info("download job cancelled", zap.Int64("media_id", item.Media.ID))
					return nil, revoked(err)
				}
				log.Error("media download failed",
					zap.Int64("post_id", pw.post.ID),
					zap.Int64("media_id", item.Media.ID),
					zap.String("url", item.Media.URL),
					zap.Error(err),
				)
				if w.p.lastAttempt(ctx) {
					w.failPosts(ctx, posts, err)
				}
				return nil, err
			}

			completed++
			w.emit(ctx, report, Downloading{
				GroupID:   payload.GroupID,
				Completed: completed,
				Total:     total,
				Percent:   Percent(completed, total),
				PostID:    pw.post.ID,
				MediaID:   item.Media.ID,
			})
		}
	}

	w.emit(ctx, report, Finished{GroupID: payload.GroupID, Completed: completed, Total: total, Percent: 100})

	if cancelled(ctx) {
		log.Info("download job cancelled before fan-out")
		return nil, revoked(ctx.Err())
	}

	dedupKey, _ := asynq.GetTaskID(ctx)
	if err := w.p.FanOut(ctx, posts, dedupKey); err != nil {
		return nil, err
	}

	log.Info("group media ready", zap.Int("posts", len(posts)), zap.Int("media", total))
	return &DownloadOutcome{OK: true, PostsProcessed: len(posts)}, nil
}

// ensureDownloaded fetches m unless a previous attempt already left it on disk.
func (w *DownloadWorker) ensureDownloaded(ctx context.Context, m *models.Media, onDisk map[int64]string) error {
	if path, ok := onDisk[m.ID]; ok {
		m.LocalPath = &path
		return nil
	}

	// Another job may have downloaded the item since this one loaded it.
	current, err := w.p.Store.Media.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	if current != nil && current.LocalPath != nil && fileExists(*current.LocalPath) {
		m.LocalPath = current.LocalPath
		onDisk[m.ID] = *current.LocalPath
		return nil
	}

	err = w.p.Store.Downloads.Upsert(ctx, &models.MediaDownloadResult{
		MediaID: m.ID,
		Status:  models.DownloadStatusDownloading,
	})
	if err != nil {
		return err
	}

	path, err := w.fetcher.Fetch(ctx, m.URL)
	if err != nil {
		if cancelled(ctx) {
			return fmt.Errorf("download media %d: %w", m.ID, err)
		}
		msg := err.Error()
		upsertErr := w.p.Store.Downloads.Upsert(ctx, &models.MediaDownloadResult{
			MediaID: m.ID,
			Status:  models.DownloadStatusFailed,
			Error:   &msg,
		})
		if upsertErr != nil {
			w.p.Log.Warn("unable to record failed download", zap.Int64("media_id", m.ID), zap.Error(upsertErr))
		}
		return fmt.Errorf("download media %d: %w", m.ID, err)
	}

	if err := w.p.Store.Media.SetLocalPath(ctx, m.ID, path); err != nil {
		return err
	}

	now := time.Now()
	err = w.p.Store.Downloads.Upsert(ctx, &models.MediaDownloadResult{
		MediaID:      m.ID,
		Status:       models.DownloadStatusSuccess,
		LocalPath:    &path,
		DownloadedAt: &now,
	})
	if err != nil {
		return err
	}

	m.LocalPath = &path
	onDisk[m.ID] = path
	return nil
}

// failPosts records a download failure on every post of the job that was not
// already posted, once the queue will not retry the job again.
func (w *DownloadWorker) failPosts(ctx context.Context, posts []*models.Post, cause error) {
	res := platform.Failed("media download failed: %v", cause)
	for _, post := range posts {
		if post.Status == models.PostStatusSuccess {
			continue
		}
		if err := w.p.RecordResult(ctx, post.ID, res); err != nil {
			w.p.Log.Warn("unable to record download failure", zap.Int64("post_id", post.ID), zap.Error(err))
		}
	}
}

func (w *DownloadWorker) emit(ctx context.Context, report ProgressReporter, event ProgressEvent) {
	if err := report.Report(ctx, event); err != nil {
		w.p.Log.Warn("unable to report progress", zap.String("phase", string(event.Phase())), zap.Error(err))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
