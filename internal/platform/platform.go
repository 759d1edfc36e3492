// Package platform defines the closed set of publishing targets and the
// capability every target provider exposes to the posting pipeline.
package platform

import (
	"context"
	"fmt"
	"sort"
)

type Platform string

const (
	Twitter  Platform = "twitter"
	Bluesky  Platform = "bluesky"
	OnlyFans Platform = "onlyfans"
	JFF      Platform = "jff"
)

// All lists every known platform.
var All = []Platform{Twitter, Bluesky, OnlyFans, JFF}

// Parse maps a stored platform name onto the closed set.
func Parse(name string) (Platform, error) {
	for _, p := range All {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", name)
}

func (p Platform) String() string {
	return string(p)
}

type MediaFile struct {
	Path string
	Type string // image, video
}

type Content struct {
	Text  string
	Media []MediaFile
}

type PostRequest struct {
	Platform Platform
	Post     Content
}

// Result is the normalized outcome of a posting attempt. A failed Result is a
// recorded outcome, not an error.
type Result struct {
	Success        bool   `json:"success"`
	PlatformPostID string `json:"platformPostId,omitempty"`
	Error          string `json:"error,omitempty"`
}

func Failed(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Provider publishes content to one platform on behalf of a user. Missing or
// expired credentials are reported as a failed Result; a non-nil error means
// the attempt hit a transient fault and may be retried.
type Provider interface {
	Platform() Platform
	IsConnected(ctx context.Context, userID int64) (bool, error)
	Post(ctx context.Context, userID int64, req PostRequest) (Result, error)
}

// Registry resolves every platform to a provider. Platforms without a real
// provider resolve to Unimplemented.
type Registry struct {
	providers map[Platform]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Platform]Provider, len(All))}
	for _, p := range All {
		r.providers[p] = Unimplemented{Name: p}
	}
	for _, p := range providers {
		r.providers[p.Platform()] = p
	}
	return r
}

// Lookup returns the provider for a stored platform name. Unknown names get an
// Unimplemented provider so callers have one failure path.
func (r *Registry) Lookup(name string) Provider {
	p, err := Parse(name)
	if err != nil {
		return Unimplemented{Name: Platform(name)}
	}
	return r.providers[p]
}

// Worker returns the provider for name and whether a posting worker runs for it.
func (r *Registry) Worker(name string) (Provider, bool) {
	provider := r.Lookup(name)
	_, unimplemented := provider.(Unimplemented)
	return provider, !unimplemented
}

// Implemented returns the platforms that have a posting worker, sorted by name.
func (r *Registry) Implemented() []Platform {
	var out []Platform
	for p, provider := range r.providers {
		if _, ok := provider.(Unimplemented); !ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
