// Package queuetest provides a recording JobQueue for tests.
package queuetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postgroup/internal/queue"
)

const (
	OpEnqueue = "enqueue"
	OpRemove  = "remove"
)

// Op is one call made against the fake, in call order.
type Op struct {
	Kind string
	Job  queue.Job
	// MaxRetry is the retry option an enqueued job was given, -1 when unset.
	MaxRetry int
}

// Fake keeps jobs in memory. Jobs stay listed until they are removed.
type Fake struct {
	mu     sync.Mutex
	nextID int
	jobs   []*queue.Job
	ops    []Op

	// EnqueueErr, when set, fails every Enqueue.
	EnqueueErr error
}

func New() *Fake {
	return &Fake{}
}

// Seed adds a job as if it had been queued earlier, without recording an op.
func (f *Fake) Seed(job queue.Job) *queue.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == "" {
		f.nextID++
		job.ID = fmt.Sprintf("seed-%d", f.nextID)
	}
	if job.State == 0 {
		job.State = asynq.TaskStatePending
	}
	j := job
	f.jobs = append(f.jobs, &j)
	return &j
}

func (f *Fake) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnqueueErr != nil {
		return nil, f.EnqueueErr
	}

	job := &queue.Job{Queue: "default", Type: task.Type(), Payload: task.Payload(), State: asynq.TaskStatePending}
	maxRetry := -1
	for _, opt := range opts {
		switch opt.Type() {
		case asynq.QueueOpt:
			job.Queue = opt.Value().(string)
		case asynq.TaskIDOpt:
			job.ID = opt.Value().(string)
		case asynq.MaxRetryOpt:
			maxRetry = opt.Value().(int)
		}
	}

	if job.ID == "" {
		f.nextID++
		job.ID = fmt.Sprintf("job-%d", f.nextID)
	} else {
		for _, existing := range f.jobs {
			if existing.ID == job.ID && existing.Queue == job.Queue {
				return nil, fmt.Errorf("enqueue %s: %w", task.Type(), asynq.ErrTaskIDConflict)
			}
		}
	}

	f.jobs = append(f.jobs, job)
	f.ops = append(f.ops, Op{Kind: OpEnqueue, Job: *job, MaxRetry: maxRetry})
	cp := *job
	return &cp, nil
}

func (f *Fake) List(ctx context.Context, queueName string, match func(*queue.Job) bool) ([]*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*queue.Job
	for _, job := range f.jobs {
		if job.Queue != queueName {
			continue
		}
		cp := *job
		if match == nil || match(&cp) {
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *Fake) Remove(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.jobs {
		if existing.ID == job.ID && existing.Queue == job.Queue {
			f.jobs = append(f.jobs[:i], f.jobs[i+1:]...)
			break
		}
	}
	f.ops = append(f.ops, Op{Kind: OpRemove, Job: *job, MaxRetry: -1})
	return nil
}

// Ops returns every enqueue and remove made so far.
func (f *Fake) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Op(nil), f.ops...)
}

// Enqueued returns the jobs enqueued on queueName in call order.
func (f *Fake) Enqueued(queueName string) []queue.Job {
	var out []queue.Job
	for _, op := range f.Ops() {
		if op.Kind == OpEnqueue && op.Job.Queue == queueName {
			out = append(out, op.Job)
		}
	}
	return out
}

var ErrUnavailable = errors.New("queue unavailable")
