package service

import (
	"context"
	"errors"

	"github.com/maheshrc27/postgroup/internal/repository"
)

var errUnknownKey = errors.New("key doesn't exist")

type ApiKeyService interface {
	GetUserID(ctx context.Context, apiKey string) (int64, error)
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{k: k}
}

func (s *apiKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	if apiKey == "" {
		return 0, errUnknownKey
	}

	userID, ok, err := s.k.GetUserIDByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errUnknownKey
	}
	return userID, nil
}
