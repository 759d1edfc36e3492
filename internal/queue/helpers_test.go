package queue_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/queue"
	"github.com/maheshrc27/postgroup/internal/queue/queuetest"
	"github.com/maheshrc27/postgroup/internal/repository/repotest"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu     sync.Mutex
	events []queue.ProgressEvent
	result any
}

func (r *recorder) Report(ctx context.Context, event queue.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) Result(ctx context.Context, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = v
	return nil
}

func (r *recorder) phases() []queue.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.Phase, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Phase())
	}
	return out
}

// diskFetcher writes a small file per URL into dir. URLs listed in fail return
// an error instead.
type diskFetcher struct {
	mu    sync.Mutex
	dir   string
	fail  map[string]error
	calls []string
}

func (f *diskFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.fail[url]; ok {
		return "", err
	}
	path := filepath.Join(f.dir, filepath.Base(url))
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// cancellingFetcher cancels the job's context while the fetch is in flight, the
// way an inspector cancellation reaches a running handler.
type cancellingFetcher struct {
	cancel context.CancelFunc
	calls  int
}

func (f *cancellingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls++
	f.cancel()
	return "", ctx.Err()
}

type stubProvider struct {
	mu        sync.Mutex
	name      platform.Platform
	connected bool
	connErr   error
	result    platform.Result
	err       error
	requests  []platform.PostRequest
	// onPost runs before Post returns.
	onPost func()
}

func (s *stubProvider) Platform() platform.Platform { return s.name }

func (s *stubProvider) IsConnected(ctx context.Context, userID int64) (bool, error) {
	return s.connected, s.connErr
}

func (s *stubProvider) Post(ctx context.Context, userID int64, req platform.PostRequest) (platform.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.onPost != nil {
		s.onPost()
	}
	return s.result, s.err
}

type harness struct {
	mem      *repotest.Memory
	jobs     *queuetest.Fake
	twitter  *stubProvider
	pipeline *queue.Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem, store := repotest.NewStore()
	jobs := queuetest.New()
	twitter := &stubProvider{
		name:      platform.Twitter,
		connected: true,
		result:    platform.Result{Success: true, PlatformPostID: "1790"},
	}
	p := queue.NewPipeline(jobs, store, platform.NewRegistry(twitter), zaptest.NewLogger(t), 2)
	return &harness{mem: mem, jobs: jobs, twitter: twitter, pipeline: p}
}

func retriesLeft(context.Context) bool { return false }

var errFetch = errors.New("fetch https://cdn.example.com/broken.jpg: status 404")
