package queue

import (
	"context"
	"encoding/json"
	"math"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Phase string

const (
	PhaseStarting    Phase = "starting"
	PhaseDownloading Phase = "downloading"
	PhaseFinished    Phase = "finished"
	PhaseLogin       Phase = "login"
	PhaseUpload      Phase = "upload"
	PhasePost        Phase = "post"
)

// ProgressEvent is one of Starting, Downloading, Finished, Login, Upload or Posted.
type ProgressEvent interface {
	Phase() Phase
	progressEvent()
}

type Starting struct {
	GroupID   string `json:"groupId"`
	RetryOnly bool   `json:"retryOnly"`
}

type Downloading struct {
	GroupID   string `json:"groupId"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
	PostID    int64  `json:"postId,omitempty"`
	MediaID   int64  `json:"mediaId,omitempty"`
}

type Finished struct {
	GroupID   string `json:"groupId"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
}

type Login struct {
	PostID int64 `json:"postId"`
}

type Upload struct {
	PostID int64 `json:"postId"`
	Media  int   `json:"media"`
}

type Posted struct {
	PostID int64 `json:"postId"`
	Done   bool  `json:"done"`
}

func (Starting) Phase() Phase    { return PhaseStarting }
func (Downloading) Phase() Phase { return PhaseDownloading }
func (Finished) Phase() Phase    { return PhaseFinished }
func (Login) Phase() Phase       { return PhaseLogin }
func (Upload) Phase() Phase      { return PhaseUpload }
func (Posted) Phase() Phase      { return PhasePost }

func (Starting) progressEvent()    {}
func (Downloading) progressEvent() {}
func (Finished) progressEvent()    {}
func (Login) progressEvent()       {}
func (Upload) progressEvent()      {}
func (Posted) progressEvent()      {}

// MarshalProgress encodes an event as a JSON object with a "phase" discriminator.
func MarshalProgress(event ProgressEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	phase, _ := json.Marshal(event.Phase())
	fields["phase"] = phase
	return json.Marshal(fields)
}

// Percent is round(completed/total*100), and 100 for an empty job.
func Percent(completed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ProgressReporter receives a job's progress events in emission order.
type ProgressReporter interface {
	Report(ctx context.Context, event ProgressEvent) error
	// Result stores the job's return value.
	Result(ctx context.Context, v any) error
}

// taskReporter writes progress through the task's result writer. Tasks built
// outside an asynq server have no writer and are only logged.
type taskReporter struct {
	w   *asynq.ResultWriter
	log *zap.Logger
}

func newTaskReporter(task *asynq.Task, log *zap.Logger) ProgressReporter {
	return &taskReporter{w: task.ResultWriter(), log: log}
}

func (r *taskReporter) Report(ctx context.Context, event ProgressEvent) error {
	data, err := MarshalProgress(event)
	if err != nil {
		return err
	}
	r.log.Debug("job progress", zap.String("phase", string(event.Phase())), zap.ByteString("event", data))
	return r.write(data)
}

func (r *taskReporter) Result(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.write(data)
}

func (r *taskReporter) write(data []byte) error {
	if r.w == nil {
		return nil
	}
	_, err := r.w.Write(data)
	return err
}
