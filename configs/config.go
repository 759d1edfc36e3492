package config

import (
	"os"

	"github.com/spf13/cast"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

// Enabled reports whether enough of R2 is configured to mirror media.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.BucketName != ""
}

type Twitter struct {
	ClientID     string
	ClientSecret string
	APIURL       string
	TokenURL     string
}

type Config struct {
	Environment         string
	ListenAddr          string
	PostgresURI         string
	RedisURI            string
	RedisPassword       string
	MediaDir            string
	SecretKey           string
	CookieName          string
	Twitter             Twitter
	R2                  R2
	DownloadConcurrency int
	PostingConcurrency  int
	TwitterConcurrency  int
	DownloadMaxRetry    int
}

func LoadConfig() *Config {
	return &Config{
		Environment:   getEnv("APP_ENV", "production"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":3000"),
		PostgresURI:   getEnv("POSTGRES_URI", ""),
		RedisURI:      getEnv("REDIS_URI", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MediaDir:      getEnv("MEDIA_DIR", "./media"),
		SecretKey:     getEnv("SECRET_KEY", ""),
		CookieName:    getEnv("COOKIE_NAME", "postgroup_session"),
		Twitter: Twitter{
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
			APIURL:       getEnv("TWITTER_API_URL", "https://api.x.com"),
			TokenURL:     getEnv("TWITTER_TOKEN_URL", "https://api.x.com/2/oauth2/token"),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		DownloadConcurrency: getEnvInt("DOWNLOAD_CONCURRENCY", 4),
		PostingConcurrency:  getEnvInt("POSTING_CONCURRENCY", 4),
		TwitterConcurrency:  getEnvInt("TWITTER_CONCURRENCY", 2),
		DownloadMaxRetry:    getEnvInt("DOWNLOAD_MAX_RETRY", 2),
	}
}

func (c *Config) Development() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := cast.ToIntE(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
