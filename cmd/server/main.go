package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postgroup/configs"
	"github.com/maheshrc27/postgroup/internal/api/handlers"
	"github.com/maheshrc27/postgroup/internal/api/middleware"
	job "github.com/maheshrc27/postgroup/internal/jobs"
	"github.com/maheshrc27/postgroup/internal/logger"
	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/queue"
	"github.com/maheshrc27/postgroup/internal/repository"
	"github.com/maheshrc27/postgroup/internal/service"
	"github.com/robfig/cron"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.LoadConfig()

	log, err := logger.New(cfg.Development())
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if envErr != nil {
		log.Warn("no .env file loaded", zap.Error(envErr))
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer closeDB(log, db)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("database is unreachable", zap.Error(err))
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal("failed to apply schema", zap.Error(err))
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI, Password: cfg.RedisPassword}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	store := repository.NewStore(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	httpClient := &http.Client{Timeout: 5 * time.Minute}

	var mirror service.Mirror
	if cfg.R2.Enabled() {
		r2, err := service.NewR2Service(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to configure r2", zap.Error(err))
		}
		mirror = r2
	}

	fetcher := service.NewFetchService(cfg.MediaDir, httpClient, mirror, log)
	twitterService := service.NewTwitterService(*cfg, socialAccountRepo, httpClient, log)
	providers := platform.NewRegistry(twitterService)

	pipeline := queue.NewPipeline(queue.NewJobQueue(client, inspector), store, providers, log, cfg.DownloadMaxRetry)

	postService := service.NewPostService(pipeline)
	statusService := service.NewStatusService(store)
	retryService := service.NewRetryService(pipeline)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService, log)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	groups := handlers.NewGroupHandler(postService, statusService, retryService, log)
	api.Post("/groups", groups.Submit)
	api.Get("/group/:groupId/status", groups.Status)
	api.Post("/group/:groupId/retry", groups.Retry)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, twitterService, log)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()
	defer c.Stop()

	// queue
	var posting []*queue.PostingWorker
	for _, p := range providers.Implemented() {
		provider, _ := providers.Worker(string(p))
		posting = append(posting, queue.NewPostingWorker(pipeline, provider))
	}

	workers := queue.NewServer(queue.ServerConfig{
		Redis:               redisConn,
		DownloadConcurrency: cfg.DownloadConcurrency,
		PostingConcurrency:  cfg.PostingConcurrency,
		PlatformConcurrency: map[platform.Platform]int{platform.Twitter: cfg.TwitterConcurrency},
		Log:                 log,
	}, queue.NewDownloadWorker(pipeline, fetcher), posting...)

	if err := workers.Start(); err != nil {
		log.Fatal("could not start queue servers", zap.Error(err))
	}

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()
	log.Info("server is running", zap.String("addr", cfg.ListenAddr))

	gracefulShutdown(log, app, workers)
}

func closeDB(log *zap.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error("failed to close database", zap.Error(err))
		return
	}
	log.Info("database connection closed")
}

func gracefulShutdown(log *zap.Logger, app *fiber.App, workers *queue.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info("shutting down server")

	if err := app.Shutdown(); err != nil {
		log.Error("failed to shut down http server", zap.Error(err))
	}
	workers.Shutdown()

	log.Info("server shutdown complete")
}
