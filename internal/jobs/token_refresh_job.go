package job

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/repository"
	"github.com/maheshrc27/postgroup/internal/service"
	"go.uber.org/zap"
)

const (
	refreshWindow    = 30 * time.Minute
	concurrencyLimit = 10
)

type TokenRefreshJob struct {
	sr  repository.SocialAccountRepository
	tw  service.TwitterService
	log *zap.Logger
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, tw service.TwitterService, log *zap.Logger) *TokenRefreshJob {
	return &TokenRefreshJob{sr: sr, tw: tw, log: log}
}

// RefreshTokens refreshes every Twitter token that expires within the next
// half hour, ten at a time.
func (c *TokenRefreshJob) RefreshTokens() {
	c.Run(context.Background())
}

func (c *TokenRefreshJob) Run(ctx context.Context) {
	currentTime := time.Now()

	accounts, err := c.sr.ListExpiring(ctx, string(platform.Twitter), currentTime, currentTime.Add(refreshWindow))
	if err != nil {
		c.log.Error("unable to list expiring accounts", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.tw.RefreshTwitterToken(ctx, acc); err != nil {
				c.log.Warn("unable to refresh twitter token", zap.Int64("account_id", acc.ID), zap.Error(err))
			}
		}(acc)
	}

	wg.Wait()
	c.log.Info("token refresh finished", zap.Int("accounts", len(accounts)))
}
