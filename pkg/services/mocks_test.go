package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/sources"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	id               string
	referer          string
	listPopularFunc  func(ctx context.Context, page int) ([]data.Manga, error)
	searchFunc       func(ctx context.Context, page int, query string, filters data.FilterList) ([]data.Manga, error)
	fetchDetailsFunc func(ctx context.Context, manga data.Manga) (data.Manga, error)
	listChaptersFunc func(ctx context.Context, manga data.Manga, opts sources.ChapterOptions) ([]data.Chapter, error)
	resolvePagesFunc func(ctx context.Context, chapter data.Chapter, opts sources.ChapterOptions) ([]data.Page, error)
}

func (m *mockSource) ID() string {
	if m.id == "" {
		return "mock"
	}
	return m.id
}

func (m *mockSource) Name() string { return "Mock" }

func (m *mockSource) ListPopular(ctx context.Context, page int) ([]data.Manga, error) {
	if m.listPopularFunc != nil {
		return m.listPopularFunc(ctx, page)
	}
	return nil, nil
}

func (m *mockSource) Search(ctx context.Context, page int, query string, filters data.FilterList) ([]data.Manga, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, page, query, filters)
	}
	return nil, nil
}

func (m *mockSource) FetchDetails(ctx context.Context, manga data.Manga) (data.Manga, error) {
	if m.fetchDetailsFunc != nil {
		return m.fetchDetailsFunc(ctx, manga)
	}
	return manga, nil
}

func (m *mockSource) ListChapters(ctx context.Context, manga data.Manga, opts sources.ChapterOptions) ([]data.Chapter, error) {
	if m.listChaptersFunc != nil {
		return m.listChaptersFunc(ctx, manga, opts)
	}
	return nil, nil
}

func (m *mockSource) ResolvePages(ctx context.Context, chapter data.Chapter, opts sources.ChapterOptions) ([]data.Page, error) {
	if m.resolvePagesFunc != nil {
		return m.resolvePagesFunc(ctx, chapter, opts)
	}
	return nil, nil
}

type refererSource struct {
	*mockSource
}

func (r refererSource) Referer() string { return r.referer }

var errFetch = errors.New("page fetch failed")

// mockFetcher records fetched pages and fails the indexes in failOn.
type mockFetcher struct {
	mu      sync.Mutex
	failOn  map[int]bool
	fetched []int
	block   chan struct{}
}

func (f *mockFetcher) FetchPage(_ context.Context, _ string, _ data.Chapter, page data.Page) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, page.Index)
	if f.failOn[page.Index] {
		return errFetch
	}
	return nil
}

func (f *mockFetcher) ChapterDir(mangaTitle string, chapter data.Chapter) string {
	return "/downloads/" + mangaTitle + "/" + chapter.Name
}

func (f *mockFetcher) Fetched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.fetched...)
}

type mockRepository struct {
	saveMangaFunc           func(manga *data.Manga) error
	getMangaFunc            func(source, key string) (*data.Manga, error)
	chapterCountFunc        func(source, key string) (*data.Manga, int, int, error)
	getChaptersFunc         func(source, mangaKey string) ([]*data.Chapter, error)
	saveChapterFunc         func(chapter *data.Chapter) error
	updateChapterStatusFunc func(source, chapterKey string, downloaded bool, filePath string) error
	listMangasFunc          func() ([]*data.Manga, error)
	deleteMangaFunc         func(source, key string) error
}

func (m *mockRepository) SaveManga(manga *data.Manga) error {
	if m.saveMangaFunc != nil {
		return m.saveMangaFunc(manga)
	}
	return nil
}

func (m *mockRepository) GetManga(source, key string) (*data.Manga, error) {
	if m.getMangaFunc != nil {
		return m.getMangaFunc(source, key)
	}
	return nil, nil
}

func (m *mockRepository) GetMangaWithChapterCount(source, key string) (*data.Manga, int, int, error) {
	if m.chapterCountFunc != nil {
		return m.chapterCountFunc(source, key)
	}
	return nil, 0, 0, nil
}

func (m *mockRepository) GetChapters(source, mangaKey string) ([]*data.Chapter, error) {
	if m.getChaptersFunc != nil {
		return m.getChaptersFunc(source, mangaKey)
	}
	return nil, nil
}

func (m *mockRepository) SaveChapter(chapter *data.Chapter) error {
	if m.saveChapterFunc != nil {
		return m.saveChapterFunc(chapter)
	}
	return nil
}

func (m *mockRepository) UpdateChapterStatus(source, chapterKey string, downloaded bool, filePath string) error {
	if m.updateChapterStatusFunc != nil {
		return m.updateChapterStatusFunc(source, chapterKey, downloaded, filePath)
	}
	return nil
}

func (m *mockRepository) ListMangas() ([]*data.Manga, error) {
	if m.listMangasFunc != nil {
		return m.listMangasFunc()
	}
	return nil, nil
}

func (m *mockRepository) DeleteManga(source, key string) error {
	if m.deleteMangaFunc != nil {
		return m.deleteMangaFunc(source, key)
	}
	return nil
}

func createTestPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 3))))
	return buf.Bytes()
}

func readyPages(n int) []data.Page {
	pages := make([]data.Page, n)
	for i := range pages {
		pages[i] = data.Page{Index: i, ImageURL: "https://img.example.com/" + string(rune('a'+i)) + ".jpg", Status: data.PageReady, Progress: 100}
	}
	return pages
}
