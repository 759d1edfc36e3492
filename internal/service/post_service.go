package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/platform"
	"github.com/maheshrc27/postgroup/internal/queue"
	"github.com/maheshrc27/postgroup/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

type PostService interface {
	SubmitGroup(ctx context.Context, userID int64, gs *transfer.GroupSubmission) (*transfer.SubmitResponse, error)
}

type postService struct {
	p *queue.Pipeline
}

func NewPostService(p *queue.Pipeline) PostService {
	return &postService{p: p}
}

func (s *postService) SubmitGroup(ctx context.Context, userID int64, gs *transfer.GroupSubmission) (*transfer.SubmitResponse, error) {
	if err := validateSubmission(gs); err != nil {
		return nil, err
	}

	groupID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate group id: %w", err)
	}

	var posts []*models.Post
	hasMedia := false

	err = s.p.Store.Tx.RunInTx(ctx, func(tx *sql.Tx) error {
		for _, ps := range gs.Posts {
			post := &models.Post{
				UserID:   userID,
				GroupID:  groupID,
				Platform: ps.Platform,
				Text:     ps.Text,
				Status:   models.PostStatusPending,
			}

			postID, err := s.p.Store.Posts.Create(ctx, tx, post)
			if err != nil {
				return err
			}
			post.ID = postID

			for i, ms := range ps.Media {
				mediaID, err := s.p.Store.Media.Upsert(ctx, tx, &models.Media{URL: ms.URL, Type: mediaType(ms)})
				if err != nil {
					return err
				}

				link := &models.PostMedia{PostID: postID, MediaID: mediaID, DisplayOrder: i}
				if err := s.p.Store.PostMedia.Upsert(ctx, tx, link); err != nil {
					return err
				}
				hasMedia = true
			}

			posts = append(posts, post)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save group: %w", err)
	}

	log := s.p.Log.With(zap.String("group_id", groupID), zap.Int64("user_id", userID))

	if hasMedia {
		job, err := queue.EnqueueDownload(ctx, s.p.Jobs, queue.DownloadPayload{GroupID: groupID}, s.p.DownloadMaxRetry)
		if err != nil {
			return nil, fmt.Errorf("enqueue download job: %w", err)
		}
		log.Info("group submitted", zap.Int("posts", len(posts)), zap.String("job_id", job.ID))
	} else {
		if err := s.p.FanOut(ctx, posts, ""); err != nil {
			return nil, err
		}
		log.Info("group submitted without media", zap.Int("posts", len(posts)))
	}

	return &transfer.SubmitResponse{GroupID: groupID, Status: models.PostStatusPending}, nil
}

func validateSubmission(gs *transfer.GroupSubmission) error {
	if gs == nil || len(gs.Posts) == 0 {
		return fmt.Errorf("%w: at least one post is required", ErrInvalidSubmission)
	}

	for i, ps := range gs.Posts {
		if _, err := platform.Parse(ps.Platform); err != nil {
			return fmt.Errorf("%w: post %d: %v", ErrInvalidSubmission, i, err)
		}
		if strings.TrimSpace(ps.Text) == "" && len(ps.Media) == 0 {
			return fmt.Errorf("%w: post %d has neither text nor media", ErrInvalidSubmission, i)
		}

		seen := make(map[string]struct{}, len(ps.Media))
		for j, ms := range ps.Media {
			u, err := url.Parse(ms.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("%w: post %d media %d: url must be absolute http(s)", ErrInvalidSubmission, i, j)
			}
			if _, ok := seen[ms.URL]; ok {
				return fmt.Errorf("%w: post %d references %s twice", ErrInvalidSubmission, i, ms.URL)
			}
			seen[ms.URL] = struct{}{}

			switch mediaType(ms) {
			case models.MediaTypeImage, models.MediaTypeVideo:
			default:
				return fmt.Errorf("%w: post %d media %d: type must be image or video", ErrInvalidSubmission, i, j)
			}
		}
	}
	return nil
}

// mediaType is the declared type, or the one implied by the url's extension.
func mediaType(ms transfer.MediaSubmission) string {
	if ms.Type != "" {
		return ms.Type
	}
	u, err := url.Parse(ms.URL)
	if err != nil {
		return ""
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if ext == "" {
		return ""
	}
	switch filetype.GetType(ext).MIME.Type {
	case "image":
		return models.MediaTypeImage
	case "video":
		return models.MediaTypeVideo
	}
	return ""
}
