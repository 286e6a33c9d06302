package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kerbaras/mangafetch/pkg/data"
)

// ChapterOptions carries per-call preferences for chapter listing and
// page resolution.
type ChapterOptions struct {
	HidePaid bool
}

// Source is implemented by every site adapter. Implementations must be
// safe for concurrent use.
type Source interface {
	ID() string
	Name() string

	ListPopular(ctx context.Context, page int) ([]data.Manga, error)
	Search(ctx context.Context, page int, query string, filters data.FilterList) ([]data.Manga, error)
	FetchDetails(ctx context.Context, manga data.Manga) (data.Manga, error)
	ListChapters(ctx context.Context, manga data.Manga, opts ChapterOptions) ([]data.Chapter, error)
	ResolvePages(ctx context.Context, chapter data.Chapter, opts ChapterOptions) ([]data.Page, error)
}

// Referer is implemented by sources whose image hosts check the Referer header.
type Referer interface {
	Referer() string
}

// Registry maps source ids to adapters.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry(srcs ...Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range srcs {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[s.ID()]; ok {
		return fmt.Errorf("source %q already registered", s.ID())
	}
	r.sources[s.ID()] = s
	return nil
}

func (r *Registry) Get(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", ErrBadArguments, id)
	}
	return s, nil
}

// List returns the registered sources sorted by id.
func (r *Registry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
