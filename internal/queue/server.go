package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postgroup/internal/platform"
	"go.uber.org/zap"
)

type ServerConfig struct {
	Redis               asynq.RedisConnOpt
	DownloadConcurrency int
	// PostingConcurrency applies to every posting queue not listed in
	// PlatformConcurrency.
	PostingConcurrency  int
	PlatformConcurrency map[platform.Platform]int
	Log                 *zap.Logger
}

type unit struct {
	name   string
	server *asynq.Server
	mux    *asynq.ServeMux
}

// Server runs one asynq server per queue so each queue has its own
// concurrency bound.
type Server struct {
	units []unit
	log   *zap.Logger
}

func NewServer(cfg ServerConfig, download *DownloadWorker, posting ...*PostingWorker) *Server {
	s := &Server{log: cfg.Log}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeDownload, download.HandleDownloadTask)
	s.add(cfg, DownloadQueue, cfg.DownloadConcurrency, mux)

	for _, w := range posting {
		concurrency := cfg.PostingConcurrency
		if n, ok := cfg.PlatformConcurrency[w.Platform()]; ok && n > 0 {
			concurrency = n
		}

		mux := asynq.NewServeMux()
		mux.HandleFunc(PostingTaskType(w.Platform()), w.HandlePostTask)
		s.add(cfg, PostingQueue(w.Platform()), concurrency, mux)
	}

	return s
}

func (s *Server) add(cfg ServerConfig, queueName string, concurrency int, mux *asynq.ServeMux) {
	server := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency:    concurrency,
		Queues:         map[string]int{queueName: 1},
		RetryDelayFunc: RetryDelay,
		Logger:         cfg.Log.Sugar(),
	})
	s.units = append(s.units, unit{name: queueName, server: server, mux: mux})
}

// Start starts every queue server. If one fails the ones already running are
// shut down again.
func (s *Server) Start() error {
	for i, u := range s.units {
		if err := u.server.Start(u.mux); err != nil {
			for _, started := range s.units[:i] {
				started.server.Shutdown()
			}
			return fmt.Errorf("start %s server: %w", u.name, err)
		}
		s.log.Info("queue server started", zap.String("queue", u.name))
	}
	return nil
}

func (s *Server) Shutdown() {
	for _, u := range s.units {
		u.server.Shutdown()
	}
}
