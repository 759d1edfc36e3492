package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/repository/repotest"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

type mockTwitter struct {
	mock.Mock
}

func (m *mockTwitter) Platform() platform.Platform { return platform.Twitter }

func (m *mockTwitter) IsConnected(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTwitter) Post(ctx context.Context, userID int64, req platform.PostRequest) (platform.Result, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(platform.Result), args.Error(1)
}

func (m *mockTwitter) RefreshTwitterToken(ctx context.Context, acc *models.SocialAccount) error {
	return m.Called(ctx, acc.ID).Error(0)
}

func TestRefreshTokensOnlyExpiringSoon(t *testing.T) {
	mem := repotest.New()
	now := time.Now()

	soon := mem.AddSocialAccount(models.SocialAccount{UserID: 1, Platform: "twitter", RefreshToken: "r", TokenExpiresAt: now.Add(10 * time.Minute)})
	failing := mem.AddSocialAccount(models.SocialAccount{UserID: 2, Platform: "twitter", RefreshToken: "r", TokenExpiresAt: now.Add(20 * time.Minute)})
	mem.AddSocialAccount(models.SocialAccount{UserID: 3, Platform: "twitter", RefreshToken: "r", TokenExpiresAt: now.Add(2 * time.Hour)})
	mem.AddSocialAccount(models.SocialAccount{UserID: 4, Platform: "twitter", RefreshToken: "r", TokenExpiresAt: now.Add(5 * time.Minute), AccountStatus: models.AccountStatusRevoked})
	mem.AddSocialAccount(models.SocialAccount{UserID: 5, Platform: "bluesky", RefreshToken: "r", TokenExpiresAt: now.Add(5 * time.Minute)})

	tw := &mockTwitter{}
	tw.On("RefreshTwitterToken", mock.Anything, soon).Return(nil).Once()
	tw.On("RefreshTwitterToken", mock.Anything, failing).Return(errors.New("twitter unavailable")).Once()

	NewTokenRefreshJob(mem.SocialAccounts(), tw, zaptest.NewLogger(t)).Run(context.Background())

	tw.AssertExpectations(t)
	tw.AssertNumberOfCalls(t, "RefreshTwitterToken", 2)
}
