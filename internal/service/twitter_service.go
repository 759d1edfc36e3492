package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/h2non/filetype"
	config "github.com/maheshrc27/postgroup/configs"
	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/repository"
	"github.com/maheshrc27/postgroup/internal/transfer"
	"github.com/maheshrc27/postgroup/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	twitterChunkSize    = 4 << 20
	twitterStatusPolls  = 30
	twitterTokenLeeway  = time.Minute
	twitterMaxPollDelay = 30 * time.Second
)

type TwitterService interface {
	platform.Provider
	RefreshTwitterToken(ctx context.Context, acc *models.SocialAccount) error
}

type twitterService struct {
	cfg    config.Config
	sa     repository.SocialAccountRepository
	oauth  *oauth2.Config
	client *http.Client
	log    *zap.Logger
}

// NewTwitterService posts through the X API v2. client may be nil.
func NewTwitterService(cfg config.Config, sa repository.SocialAccountRepository, client *http.Client, log *zap.Logger) TwitterService {
	if client == nil {
		client = http.DefaultClient
	}
	return &twitterService{
		cfg: cfg,
		sa:  sa,
		oauth: &oauth2.Config{
			ClientID:     cfg.Twitter.ClientID,
			ClientSecret: cfg.Twitter.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.Twitter.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: []string{"tweet.read", "tweet.write", "users.read", "media.write", "offline.access"},
		},
		client: client,
		log:    log,
	}
}

// rejection is a 4xx answer from X. It ends the attempt with a failed result
// instead of a retry.
type rejection struct {
	status int
	msg    string
}

func (r *rejection) Error() string {
	return fmt.Sprintf("twitter rejected the request (%d): %s", r.status, r.msg)
}

func (s *twitterService) Platform() platform.Platform {
	return platform.Twitter
}

func (s *twitterService) IsConnected(ctx context.Context, userID int64) (bool, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return false, err
	}
	if acc == nil {
		return false, nil
	}
	return acc.TokenExpiresAt.After(time.Now()) || acc.RefreshToken != "", nil
}

func (s *twitterService) Post(ctx context.Context, userID int64, req platform.PostRequest) (platform.Result, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return platform.Result{}, err
	}
	if acc == nil {
		return platform.Failed("twitter account is not connected"), nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)

	token, err := s.token(ctx, acc)
	if err != nil {
		if res, ok := asFailure(err); ok {
			return res, nil
		}
		return platform.Result{}, err
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	mediaIDs := make([]string, 0, len(req.Post.Media))
	for _, file := range req.Post.Media {
		id, err := s.uploadMedia(ctx, client, file)
		if err != nil {
			if res, ok := asFailure(err); ok {
				return res, nil
			}
			return platform.Result{}, err
		}
		mediaIDs = append(mediaIDs, id)
	}

	tweetID, err := s.createTweet(ctx, client, req.Post.Text, mediaIDs)
	if err != nil {
		if res, ok := asFailure(err); ok {
			return res, nil
		}
		return platform.Result{}, err
	}

	return platform.Result{Success: true, PlatformPostID: tweetID}, nil
}

func (s *twitterService) account(ctx context.Context, userID int64) (*models.SocialAccount, error) {
	acc, err := s.sa.GetByUserAndPlatform(ctx, userID, string(platform.Twitter))
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.AccountStatus != models.AccountStatusActive {
		return nil, nil
	}
	return acc, nil
}

// token returns a usable access token for acc, refreshing it when it is about
// to expire.
func (s *twitterService) token(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error) {
	if acc.TokenExpiresAt.After(time.Now().Add(twitterTokenLeeway)) {
		access, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return nil, &rejection{status: http.StatusUnauthorized, msg: "stored twitter token is unreadable, reconnect the account"}
		}
		return &oauth2.Token{AccessToken: access, TokenType: "Bearer", Expiry: acc.TokenExpiresAt}, nil
	}
	return s.refresh(ctx, acc)
}

func (s *twitterService) RefreshTwitterToken(ctx context.Context, acc *models.SocialAccount) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	_, err := s.refresh(ctx, acc)
	return err
}

func (s *twitterService) refresh(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error) {
	key := []byte(s.cfg.SecretKey)

	if acc.RefreshToken == "" {
		return nil, &rejection{status: http.StatusUnauthorized, msg: "twitter session expired, reconnect the account"}
	}
	refreshToken, err := utils.Decrypt(acc.RefreshToken, key)
	if err != nil {
		return nil, &rejection{status: http.StatusUnauthorized, msg: "stored twitter token is unreadable, reconnect the account"}
	}

	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
			if err := s.sa.SetStatus(ctx, acc.ID, models.AccountStatusRevoked); err != nil {
				s.log.Warn("unable to mark twitter account revoked", zap.Int64("account_id", acc.ID), zap.Error(err))
			}
			return nil, &rejection{status: re.Response.StatusCode, msg: "twitter refused the token refresh, reconnect the account"}
		}
		return nil, fmt.Errorf("refresh twitter token: %w", err)
	}

	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), key)
	if err != nil {
		return nil, err
	}
	encryptedRefresh := acc.RefreshToken
	if token.RefreshToken != "" {
		if encryptedRefresh, err = utils.Encrypt([]byte(token.RefreshToken), key); err != nil {
			return nil, err
		}
	}

	if err := s.sa.SetToken(ctx, acc.ID, encryptedAccess, encryptedRefresh, token.Expiry); err != nil {
		return nil, err
	}
	acc.AccessToken, acc.RefreshToken, acc.TokenExpiresAt = encryptedAccess, encryptedRefresh, token.Expiry

	s.log.Info("twitter token refreshed", zap.Int64("account_id", acc.ID), zap.Time("expires_at", token.Expiry))
	return token, nil
}

func (s *twitterService) uploadMedia(ctx context.Context, client *http.Client, file platform.MediaFile) (string, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return "", err
	}

	mediaType := "application/octet-stream"
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		mediaType = kind.MIME.Value
	}

	category := "tweet_image"
	switch {
	case mediaType == "image/gif":
		category = "tweet_gif"
	case file.Type == models.MediaTypeVideo || strings.HasPrefix(mediaType, "video/"):
		category = "tweet_video"
	}

	endpoint := s.cfg.Twitter.APIURL + "/2/media/upload"

	var initResp transfer.TwitterMediaResponse
	err = s.do(ctx, client, http.MethodPost, endpoint, url.Values{
		"command":        {"INIT"},
		"media_type":     {mediaType},
		"total_bytes":    {strconv.Itoa(len(data))},
		"media_category": {category},
	}, &initResp)
	if err != nil {
		return "", err
	}
	mediaID := initResp.Data.ID

	for segment, offset := 0, 0; offset < len(data); segment, offset = segment+1, offset+twitterChunkSize {
		end := min(offset+twitterChunkSize, len(data))
		if err := s.appendChunk(ctx, client, endpoint, mediaID, segment, data[offset:end]); err != nil {
			return "", err
		}
	}

	var finalResp transfer.TwitterMediaResponse
	err = s.do(ctx, client, http.MethodPost, endpoint, url.Values{
		"command":  {"FINALIZE"},
		"media_id": {mediaID},
	}, &finalResp)
	if err != nil {
		return "", err
	}

	info := finalResp.Data.ProcessingInfo
	for polls := 0; info != nil && (info.State == "pending" || info.State == "in_progress"); polls++ {
		if polls == twitterStatusPolls {
			return "", fmt.Errorf("twitter media %s still processing after %d checks", mediaID, polls)
		}

		delay := min(time.Duration(info.CheckAfterSecs)*time.Second, twitterMaxPollDelay)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		var statusResp transfer.TwitterMediaResponse
		statusURL := endpoint + "?" + url.Values{"command": {"STATUS"}, "media_id": {mediaID}}.Encode()
		if err := s.do(ctx, client, http.MethodGet, statusURL, nil, &statusResp); err != nil {
			return "", err
		}
		info = statusResp.Data.ProcessingInfo
	}

	if info != nil && info.State == "failed" {
		msg := "media processing failed"
		if info.Error != nil && info.Error.Message != "" {
			msg = info.Error.Message
		}
		return "", &rejection{status: http.StatusUnprocessableEntity, msg: msg}
	}

	return mediaID, nil
}

func (s *twitterService) appendChunk(ctx context.Context, client *http.Client, endpoint, mediaID string, segment int, chunk []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("command", "APPEND")
	w.WriteField("media_id", mediaID)
	w.WriteField("segment_index", strconv.Itoa(segment))
	part, err := w.CreateFormFile("media", "chunk")
	if err != nil {
		return err
	}
	if _, err := part.Write(chunk); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.send(client, req, nil)
}

func (s *twitterService) createTweet(ctx context.Context, client *http.Client, text string, mediaIDs []string) (string, error) {
	tweet := transfer.TwitterTweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		tweet.Media = &transfer.TwitterTweetMedia{MediaIDs: mediaIDs}
	}

	payload, err := json.Marshal(tweet)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Twitter.APIURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp transfer.TwitterTweetResponse
	if err := s.send(client, req, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", errors.New("twitter returned no tweet id")
	}
	return resp.Data.ID, nil
}

// do sends form as a urlencoded body, or no body when form is nil.
func (s *twitterService) do(ctx context.Context, client *http.Client, method, endpoint string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return s.send(client, req, out)
}

func (s *twitterService) send(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("twitter %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("twitter %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &rejection{status: resp.StatusCode, msg: errorMessage(data, resp.Status)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode twitter response: %w", err)
	}
	return nil
}

func errorMessage(data []byte, fallback string) string {
	var apiErr transfer.TwitterError
	if json.Unmarshal(data, &apiErr) != nil {
		return fallback
	}
	switch {
	case apiErr.Detail != "":
		return apiErr.Detail
	case len(apiErr.Errors) > 0 && apiErr.Errors[0].Message != "":
		return apiErr.Errors[0].Message
	case apiErr.Title != "":
		return apiErr.Title
	}
	return fallback
}

func asFailure(err error) (platform.Result, bool) {
	var rej *rejection
	if !errors.As(err, &rej) {
		return platform.Result{}, false
	}
	if rej.status == http.StatusUnauthorized || rej.status == http.StatusForbidden {
		return platform.Failed("twitter authorization failed: %s", rej.msg), true
	}
	return platform.Failed("twitter: %s", rej.msg), true
}
