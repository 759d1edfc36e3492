package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Job is a queued or running task as seen by the pipeline.
type Job struct {
	ID      string
	Queue   string
	Type    string
	Payload []byte
	State   asynq.TaskState
}

// JobQueue is the queue capability the pipeline depends on.
type JobQueue interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*Job, error)
	// List returns the not yet finished jobs on queueName for which match is true.
	List(ctx context.Context, queueName string, match func(*Job) bool) ([]*Job, error)
	// Remove deletes a waiting job. A running job is cancelled and, once the
	// queue has settled it, deleted from wherever it landed. Jobs that are
	// already gone are not an error.
	Remove(ctx context.Context, job *Job) error
}

type asynqJobQueue struct {
	client         *asynq.Client
	inspector      *asynq.Inspector
	pageSize       int
	settleInterval time.Duration
	settleTimeout  time.Duration
}

func NewJobQueue(client *asynq.Client, inspector *asynq.Inspector) JobQueue {
	return &asynqJobQueue{
		client:         client,
		inspector:      inspector,
		pageSize:       100,
		settleInterval: 200 * time.Millisecond,
		settleTimeout:  30 * time.Second,
	}
}

func (q *asynqJobQueue) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*Job, error) {
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return jobFromInfo(info), nil
}

func (q *asynqJobQueue) List(ctx context.Context, queueName string, match func(*Job) bool) ([]*Job, error) {
	listers := []func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error){
		q.inspector.ListPendingTasks,
		q.inspector.ListScheduledTasks,
		q.inspector.ListRetryTasks,
		q.inspector.ListActiveTasks,
	}

	var jobs []*Job
	for _, list := range listers {
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			infos, err := list(queueName, asynq.Page(page), asynq.PageSize(q.pageSize))
			if err != nil {
				if errors.Is(err, asynq.ErrQueueNotFound) {
					return nil, nil
				}
				return nil, fmt.Errorf("list jobs on %s: %w", queueName, err)
			}
			for _, info := range infos {
				job := jobFromInfo(info)
				if match == nil || match(job) {
					jobs = append(jobs, job)
				}
			}
			if len(infos) < q.pageSize {
				break
			}
		}
	}
	return jobs, nil
}

func (q *asynqJobQueue) Remove(ctx context.Context, job *Job) error {
	if job.State != asynq.TaskStateActive {
		return q.delete(job)
	}

	if err := q.inspector.CancelProcessing(job.ID); err != nil {
		return fmt.Errorf("cancel job %s on %s: %w", job.ID, job.Queue, err)
	}

	// The processor may settle a cancelled task with its own context error, which
	// puts it in the retry set even when the handler revoked it.
	ctx, cancel := context.WithTimeout(ctx, q.settleTimeout)
	defer cancel()
	ticker := time.NewTicker(q.settleInterval)
	defer ticker.Stop()

	for {
		info, err := q.inspector.GetTaskInfo(job.Queue, job.ID)
		if err != nil {
			if gone(err) {
				return nil
			}
			return fmt.Errorf("inspect job %s on %s: %w", job.ID, job.Queue, err)
		}
		if info.State != asynq.TaskStateActive {
			return q.delete(job)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("job %s on %s still running: %w", job.ID, job.Queue, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (q *asynqJobQueue) delete(job *Job) error {
	if err := q.inspector.DeleteTask(job.Queue, job.ID); err != nil && !gone(err) {
		return fmt.Errorf("remove job %s from %s: %w", job.ID, job.Queue, err)
	}
	return nil
}

func gone(err error) bool {
	return errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound)
}

func jobFromInfo(info *asynq.TaskInfo) *Job {
	return &Job{
		ID:      info.ID,
		Queue:   info.Queue,
		Type:    info.Type,
		Payload: info.Payload,
		State:   info.State,
	}
}
