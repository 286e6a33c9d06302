package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kerbaras/mangafetch/pkg/config"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/services"
	"github.com/kerbaras/mangafetch/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	imageBase   string
	err         error
	lastQuery   string
	lastFilters data.FilterList
	lastPage    int
}

func (f *fakeSource) ID() string   { return "fake" }
func (f *fakeSource) Name() string { return "Fake" }

func (f *fakeSource) ListPopular(_ context.Context, page int) ([]data.Manga, error) {
	f.lastPage = page
	if f.err != nil {
		return nil, f.err
	}
	return []data.Manga{{Key: "/m/1", Title: "One"}, {Key: "/m/2", Title: "Two", Genres: []string{"A"}}}, nil
}

func (f *fakeSource) Search(_ context.Context, page int, query string, filters data.FilterList) ([]data.Manga, error) {
	f.lastPage, f.lastQuery, f.lastFilters = page, query, filters
	if f.err != nil {
		return nil, f.err
	}
	return []data.Manga{{Key: "/m/" + query, Title: query}}, nil
}

func (f *fakeSource) FetchDetails(_ context.Context, m data.Manga) (data.Manga, error) {
	if f.err != nil {
		return m, f.err
	}
	return m.Merge(data.Manga{Title: "Details", Author: "X"}), nil
}

func (f *fakeSource) ListChapters(_ context.Context, m data.Manga, _ sources.ChapterOptions) ([]data.Chapter, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []data.Chapter{{Key: m.Key + "/c2", Name: "Chapter 2", Number: 2}, {Key: m.Key + "/c1", Name: "Chapter 1", Number: 1}}, nil
}

func (f *fakeSource) ResolvePages(_ context.Context, ch data.Chapter, _ sources.ChapterOptions) ([]data.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	base := f.imageBase
	if base == "" {
		base = "https://img.example.com"
	}
	return []data.Page{
		{Index: 0, URL: ch.Key + "/0", ImageURL: base + "/0.jpg", Status: data.PageReady},
		{Index: 1, URL: ch.Key + "/1", ImageURL: base + "/1.jpg", Status: data.PageReady},
	}, nil
}

func newTestServer(t *testing.T, src *fakeSource) (*Server, *services.MangaController) {
	t.Helper()
	registry, err := sources.NewRegistry(src)
	require.NoError(t, err)

	dir := t.TempDir()
	var cfg config.Config
	cfg.DownloadDir = dir
	cfg.DBPath = dir + "/library.db"
	cfg.HTTP.PageDelay = -1

	controller := services.NewController(registry, nil, cfg, nil)
	t.Cleanup(func() { controller.Close() })
	return New(controller, nil), controller
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndSources(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{})

	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/sources", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"fake","name":"Fake"}]`, w.Body.String())
}

func TestPopular(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestServer(t, src)

	w := do(t, s, http.MethodGet, "/sources/fake/popular?page=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	mangas := decode[[]data.MangaInfo](t, w)
	require.Len(t, mangas, 2)
	assert.Equal(t, "/m/1", mangas[0].Key)
	assert.Equal(t, []string{}, mangas[0].Genres)
	assert.Equal(t, 2, src.lastPage)

	do(t, s, http.MethodGet, "/sources/fake/popular", "")
	assert.Equal(t, 1, src.lastPage)
}

func TestBadPageAndUnknownSource(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{})

	for _, target := range []string{"/sources/fake/popular?page=0", "/sources/fake/popular?page=x", "/sources/fake/details"} {
		w := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}

	w := do(t, s, http.MethodGet, "/sources/nope/popular", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchFilters(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestServer(t, src)

	w := do(t, s, http.MethodGet, "/sources/fake/search?q=solo&sort=updated&genres=Romance,Comedy&exclude=Harem", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "solo", src.lastQuery)
	assert.Equal(t, data.FilterList{
		sources.SortFilter{Value: sources.LxSortUpdated},
		sources.GenreFilter{ID: 10},
		sources.GenreFilter{ID: 19},
		sources.GenreFilter{ID: 18, Exclude: true},
	}, src.lastFilters)

	w = do(t, s, http.MethodGet, "/sources/fake/search?sort=random", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sources.ErrAccessDenied, http.StatusForbidden},
		{sources.ErrProtocolExtraction, http.StatusBadGateway},
		{sources.ErrUpstreamResponse, http.StatusBadGateway},
		{sources.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{sources.ErrBadArguments, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s, _ := newTestServer(t, &fakeSource{err: fmt.Errorf("failed to resolve: %w", tt.err)})
			w := do(t, s, http.MethodGet, "/sources/fake/pages?key=/c/1", "")
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestDetailsChaptersPages(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{})

	w := do(t, s, http.MethodGet, "/sources/fake/details?key=/m/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	manga := decode[data.MangaInfo](t, w)
	assert.Equal(t, "X", manga.Author)

	w = do(t, s, http.MethodGet, "/sources/fake/chapters?key=/m/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	chapters := decode[[]data.ChapterInfo](t, w)
	require.Len(t, chapters, 2)
	assert.Equal(t, "/m/1/c2", chapters[0].Key)

	w = do(t, s, http.MethodGet, "/sources/fake/pages?key=/m/1/c1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"url":"https://img.example.com/0.jpg"},{"url":"https://img.example.com/1.jpg"}]`, w.Body.String())
}

func TestDownloads(t *testing.T) {
	images := httptest.NewServer(http.NotFoundHandler())
	defer images.Close()
	s, controller := newTestServer(t, &fakeSource{imageBase: images.URL})

	w := do(t, s, http.MethodPost, "/downloads", `{"source":"fake"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/downloads", `{"source":"nope","mangaTitle":"M","chapters":[{"key":"/c1"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/downloads", `{"source":"fake","mangaTitle":"M","chapters":[{"key":"/c1","name":"c1"},{"key":"/c1"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"added":1}`, w.Body.String())

	q, err := controller.Queue("fake")
	require.NoError(t, err)
	q.Wait()

	w = do(t, s, http.MethodGet, "/downloads", "")
	require.Equal(t, http.StatusOK, w.Code)
	queues := decode[map[string]struct {
		Running bool                `json:"running"`
		Stats   services.QueueStats `json:"stats"`
		Jobs    []struct {
			Status   string `json:"status"`
			Progress string `json:"progress"`
		} `json:"jobs"`
	}](t, w)
	require.Contains(t, queues, "fake")
	require.Len(t, queues["fake"].Jobs, 1)
	// The image host answers 404 for every page.
	assert.Equal(t, "Failed", queues["fake"].Jobs[0].Status)
	assert.Equal(t, "0/2", queues["fake"].Jobs[0].Progress)
	assert.Equal(t, 1, queues["fake"].Stats.Failed)

	w = do(t, s, http.MethodDelete, "/downloads/completed", "")
	assert.JSONEq(t, `{"removed":0}`, w.Body.String())
	w = do(t, s, http.MethodDelete, "/downloads/failed?source=fake", "")
	assert.JSONEq(t, `{"removed":1}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/downloads/pause", "")
	assert.JSONEq(t, `{"paused":1}`, w.Body.String())
	w = do(t, s, http.MethodPost, "/downloads/start?source=fake", "")
	assert.JSONEq(t, `{"started":1}`, w.Body.String())
	q.Wait()
}

func TestLibrary(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{})

	w := do(t, s, http.MethodPost, "/library", `{"source":"fake","manga":{"title":"no key"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/library", `{"source":"fake","manga":{"key":"/m/1","title":"One"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[struct {
		Manga    data.MangaInfo `json:"manga"`
		Chapters int            `json:"chapters"`
	}](t, w)
	assert.Equal(t, "Details", added.Manga.Title)
	assert.Equal(t, 2, added.Chapters)

	w = do(t, s, http.MethodGet, "/library", "")
	require.Equal(t, http.StatusOK, w.Code)
	library := decode[[]data.MangaInfo](t, w)
	require.Len(t, library, 1)
	assert.Equal(t, "X", library[0].Author)
}
