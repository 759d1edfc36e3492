package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postgroup/internal/platform"
	"go.uber.org/zap"
)

// PostingWorker publishes single posts through one platform's provider.
type PostingWorker struct {
	p        *Pipeline
	provider platform.Provider
}

func NewPostingWorker(p *Pipeline, provider platform.Provider) *PostingWorker {
	return &PostingWorker{p: p, provider: provider}
}

func (w *PostingWorker) Platform() platform.Platform {
	return w.provider.Platform()
}

func (w *PostingWorker) HandlePostTask(ctx context.Context, task *asynq.Task) error {
	var payload PostingPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode posting payload: %v: %w", err, asynq.SkipRetry)
	}

	reporter := newTaskReporter(task, w.p.Log)
	res, err := w.Process(ctx, payload, reporter)
	if err != nil {
		if cancelled(ctx) {
			return revoked(err)
		}
		return err
	}

	if err := reporter.Result(ctx, res); err != nil {
		w.p.Log.Warn("unable to store posting result", zap.Int64("post_id", payload.PostID), zap.Error(err))
	}
	return nil
}

// Process runs one attempt of a posting job. Provider failures end up as a
// failed PostResult; only store errors and transient provider errors that still
// have retries left are returned. A cancelled job records no failure.
func (w *PostingWorker) Process(ctx context.Context, payload PostingPayload, report ProgressReporter) (platform.Result, error) {
	name := w.provider.Platform()
	log := w.p.Log.With(zap.Int64("post_id", payload.PostID), zap.Int64("user_id", payload.UserID), zap.String("platform", name.String()))

	w.emit(ctx, report, Login{PostID: payload.PostID})

	post, err := w.p.Store.Posts.GetByID(ctx, payload.PostID)
	if err != nil {
		return platform.Result{}, err
	}
	if post == nil {
		return platform.Result{}, fmt.Errorf("post %d not found: %w", payload.PostID, asynq.SkipRetry)
	}

	connected, err := w.provider.IsConnected(ctx, payload.UserID)
	if err != nil {
		return w.transient(ctx, log, report, payload.PostID, err)
	}
	if !connected {
		return w.record(ctx, log, report, payload.PostID, platform.Failed("%s account is not connected", name))
	}

	items, err := w.p.Store.PostMedia.ListByPostID(ctx, post.ID)
	if err != nil {
		return platform.Result{}, err
	}

	files := make([]platform.MediaFile, 0, len(items))
	for _, item := range items {
		if item.Media.LocalPath == nil {
			return w.record(ctx, log, report, post.ID, platform.Failed("media %d has not been downloaded", item.Media.ID))
		}
		files = append(files, platform.MediaFile{Path: *item.Media.LocalPath, Type: item.Media.Type})
	}

	text := payload.Text
	if text == "" {
		text = post.Text
	}

	if cancelled(ctx) {
		log.Info("posting job cancelled before upload")
		return platform.Result{}, revoked(ctx.Err())
	}

	w.emit(ctx, report, Upload{PostID: post.ID, Media: len(files)})

	res, err := w.provider.Post(ctx, payload.UserID, platform.PostRequest{
		Platform: name,
		Post:     platform.Content{Text: text, Media: files},
	})
	if err != nil {
		return w.transient(ctx, log, report, post.ID, err)
	}
	return w.record(ctx, log, report, post.ID, res)
}

// transient hands err back to the queue while retries remain and records it as
// the post's failure on the last attempt.
func (w *PostingWorker) transient(ctx context.Context, log *zap.Logger, report ProgressReporter, postID int64, err error) (platform.Result, error) {
	if cancelled(ctx) {
		log.Info("posting job cancelled", zap.Error(err))
		return platform.Result{}, revoked(err)
	}
	if !w.p.lastAttempt(ctx) {
		log.Warn("posting attempt failed, will retry", zap.Error(err))
		return platform.Result{}, err
	}
	return w.record(ctx, log, report, postID, platform.Result{Error: err.Error()})
}

// record stores res and reports the post as done. A failure seen after the job
// was cancelled is dropped; a success is always stored because the post is live.
func (w *PostingWorker) record(ctx context.Context, log *zap.Logger, report ProgressReporter, postID int64, res platform.Result) (platform.Result, error) {
	if !res.Success && cancelled(ctx) {
		log.Info("posting job cancelled", zap.String("status_text", res.Error))
		return platform.Result{}, revoked(ctx.Err())
	}
	storeCtx := ctx
	if res.Success {
		storeCtx = context.WithoutCancel(ctx)
	}
	if err := w.p.RecordResult(storeCtx, postID, res); err != nil {
		return res, err
	}
	w.emit(ctx, report, Posted{PostID: postID, Done: true})
	if res.Success {
		log.Info("post published", zap.String("platform_post_id", res.PlatformPostID))
	} else {
		log.Info("post failed", zap.String("status_text", res.Error))
	}
	return res, nil
}

func (w *PostingWorker) emit(ctx context.Context, report ProgressReporter, event ProgressEvent) {
	if err := report.Report(ctx, event); err != nil {
		w.p.Log.Warn("unable to report progress", zap.String("phase", string(event.Phase())), zap.Error(err))
	}
}
