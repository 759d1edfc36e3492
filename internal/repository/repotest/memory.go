// Package repotest provides an in-memory implementation of the repository
// interfaces for tests.
package repotest

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postgroup/internal/models"
	"github.com/maheshrc27/postgroup/internal/repository"
)

// Memory holds every row of the in-memory store. Fail, when set, is returned
// by every write so tests can simulate a broken database.
type Memory struct {
	mu sync.Mutex

	nextPostID  int64
	nextMediaID int64
	nextAccount int64

	posts     map[int64]*models.Post
	media     map[int64]*models.Media
	mediaURL  map[string]int64
	postMedia map[[2]int64]*models.PostMedia
	downloads map[int64]*models.MediaDownloadResult
	results   map[int64]*models.PostResult
	accounts  map[int64]*models.SocialAccount

	Fail error
}

func New() *Memory {
	return &Memory{
		posts:     map[int64]*models.Post{},
		media:     map[int64]*models.Media{},
		mediaURL:  map[string]int64{},
		postMedia: map[[2]int64]*models.PostMedia{},
		downloads: map[int64]*models.MediaDownloadResult{},
		results:   map[int64]*models.PostResult{},
		accounts:  map[int64]*models.SocialAccount{},
	}
}

// NewStore returns a fresh Memory together with a repository.Store backed by it.
func NewStore() (*Memory, repository.Store) {
	m := New()
	return m, m.Store()
}

func (m *Memory) Store() repository.Store {
	return repository.Store{
		Tx:        txRunner{},
		Posts:     posts{m},
		Media:     media{m},
		PostMedia: postMedia{m},
		Downloads: downloads{m},
		Results:   results{m},
	}
}

func (m *Memory) SocialAccounts() repository.SocialAccountRepository {
	return accounts{m}
}

// AddPost stores a copy of p, assigning an id, and returns the id.
func (m *Memory) AddPost(p models.Post) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPost(p)
}

func (m *Memory) addPost(p models.Post) int64 {
	m.nextPostID++
	p.ID = m.nextPostID
	if p.Status == "" {
		p.Status = models.PostStatusPending
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.posts[p.ID] = &p
	return p.ID
}

// AddMedia stores media for url, optionally downloaded to localPath, and links it
// to postID at the given order.
func (m *Memory) AddMedia(postID int64, order int, url, mediaType, localPath string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.upsertMedia(url, mediaType)
	if localPath != "" {
		path := localPath
		m.media[id].LocalPath = &path
	}
	m.postMedia[[2]int64{postID, id}] = &models.PostMedia{PostID: postID, MediaID: id, DisplayOrder: order}
	return id
}

func (m *Memory) AddSocialAccount(sa models.SocialAccount) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAccount++
	sa.ID = m.nextAccount
	if sa.AccountStatus == "" {
		sa.AccountStatus = models.AccountStatusActive
	}
	m.accounts[sa.ID] = &sa
	return sa.ID
}

func (m *Memory) Post(id int64) *models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (m *Memory) AllPosts() []*models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Media(id int64) *models.Media {
	m.mu.Lock()
	defer m.mu.Unlock()
	if md, ok := m.media[id]; ok {
		cp := *md
		return &cp
	}
	return nil
}

func (m *Memory) MediaCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.media)
}

func (m *Memory) PostMediaRows() []models.PostMedia {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PostMedia, 0, len(m.postMedia))
	for _, pm := range m.postMedia {
		out = append(out, *pm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PostID != out[j].PostID {
			return out[i].PostID < out[j].PostID
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out
}

func (m *Memory) Download(mediaID int64) *models.MediaDownloadResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.downloads[mediaID]; ok {
		cp := *d
		return &cp
	}
	return nil
}

func (m *Memory) SetDownload(res models.MediaDownloadResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[res.MediaID] = &res
}

func (m *Memory) Result(postID int64) *models.PostResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.results[postID]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (m *Memory) SetResult(res models.PostResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[res.PostID] = &res
}

func (m *Memory) Account(id int64) *models.SocialAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (m *Memory) upsertMedia(url, mediaType string) int64 {
	if id, ok := m.mediaURL[url]; ok {
		m.media[id].Type = mediaType
		return id
	}
	m.nextMediaID++
	id := m.nextMediaID
	m.media[id] = &models.Media{ID: id, URL: url, Type: mediaType, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.mediaURL[url] = id
	return id
}

type txRunner struct{}

func (txRunner) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type posts struct{ m *Memory }

func (r posts) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.Fail != nil {
		return 0, r.m.Fail
	}
	return r.m.addPost(*post), nil
}

func (r posts) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return r.m.Post(id), nil
}

func (r posts) ListByGroupID(ctx context.Context, groupID string, statuses ...string) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.m.AllPosts() {
		if p.GroupID != groupID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, p.Status) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r posts) ListByGroupAndUser(ctx context.Context, groupID string, userID int64) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.m.AllPosts() {
		if p.GroupID == groupID && p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r posts) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.Fail != nil {
		return r.m.Fail
	}
	if p, ok := r.m.posts[postID]; ok {
		p.Status = status
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (r posts) UpdatePostsStatus(ctx context.Context, status string, postIDs []int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.Fail != nil {
		return r.m.Fail
	}
	for _, id := range postIDs {
		if p, ok := r.m.posts[id]; ok {
			p.Status = status
			p.UpdatedAt = time.Now()
		}
	}
	return nil
}

type media struct{ m *Memory }

func (r media) Upsert(ctx context.Context, tx *sql.Tx, md *models.Media) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.Fail != nil {
		return 0, r.m.Fail
	}
	return r.m.upsertMedia(md.URL, md.Type), nil
}

func (r media) GetByID(ctx context.Context, id int64) (*models.Media, error) {
	return r.m.Media(id), nil
}

func (r media) SetLocalPath(ctx context.Context, id int64, localPath string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.Fail != nil {
		return r.m.Fail
	}
	md, ok := r.m.media[id]
	if !ok {
		return errors.New("media not found")
	}
	path := localPath
	md.LocalPath = &path
	return nil
}

type postMedia struct{ m *Memory }

func (r postMedia) Upsert(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.Fail != nil {
		return r.m.Fail
	}
	cp := *pm
	r.m.postMedia[[2]int64{pm.PostID, pm.MediaID}] = &cp
	return nil
}

func (r postMedia) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMediaItem, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var items []*models.PostMediaItem
	for key, pm := range r.m.postMedia {
		if key[0] != postID {
			continue
		}
		item := &models.PostMediaItem{PostID: postID, DisplayOrder: pm.DisplayOrder, Media: *r.m.media[pm.MediaID]}
		if d, ok := r.m.downloads[pm.MediaID]; ok {
			status := d.Status
			item.DownloadStatus = &status
			item.DownloadError = d.Error
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DisplayOrder < items[j].DisplayOrder })
	return items, nil
}

type downloads struct{ m *Memory }

func (r downloads) Upsert(ctx context.Context, res *models.MediaDownloadResult) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.Fail != nil {
		return r.m.Fail
	}
	cp := *res
	if prev, ok := r.m.downloads[res.MediaID]; ok {
		if cp.LocalPath == nil {
			cp.LocalPath = prev.LocalPath
		}
		if cp.DownloadedAt == nil {
			cp.DownloadedAt = prev.DownloadedAt
		}
	}
	cp.UpdatedAt = time.Now()
	r.m.downloads[res.MediaID] = &cp
	return nil
}

func (r downloads) GetByMediaID(ctx context.Context, mediaID int64) (*models.MediaDownloadResult, error) {
	return r.m.Download(mediaID), nil
}

type results struct{ m *Memory }

func (r results) Upsert(ctx context.Context, res *models.PostResult) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.Fail != nil {
		return r.m.Fail
	}
	cp := *res
	cp.UpdatedAt = time.Now()
	r.m.results[res.PostID] = &cp
	return nil
}

func (r results) GetByPostID(ctx context.Context, postID int64) (*models.PostResult, error) {
	return r.m.Result(postID), nil
}

func (r results) ListByPostIDs(ctx context.Context, postIDs []int64) ([]*models.PostResult, error) {
	var out []*models.PostResult
	for _, id := range postIDs {
		if res := r.m.Result(id); res != nil {
			out = append(out, res)
		}
	}
	return out, nil
}

type accounts struct{ m *Memory }

func (r accounts) GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var found *models.SocialAccount
	for _, a := range r.m.accounts {
		if a.UserID == userID && a.Platform == platform {
			if found == nil || a.ID > found.ID {
				found = a
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (r accounts) ListExpiring(ctx context.Context, platform string, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.m.accounts {
		if a.Platform != platform || a.AccountStatus != models.AccountStatusActive || a.RefreshToken == "" {
			continue
		}
		if a.TokenExpiresAt.Before(initialTime) || a.TokenExpiresAt.After(finalTime) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r accounts) SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return errors.New("account not found")
	}
	a.AccessToken, a.RefreshToken, a.TokenExpiresAt = accessToken, refreshToken, expiresAt
	a.AccountStatus = models.AccountStatusActive
	return nil
}

func (r accounts) SetStatus(ctx context.Context, id int64, status string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return errors.New("account not found")
	}
	a.AccountStatus = status
	return nil
}
