package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/integrations"
	"github.com/kerbaras/mangafetch/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageServer(t *testing.T, body []byte) (*httptest.Server, func() http.Header) {
	t.Helper()
	var (
		mu   sync.Mutex
		last http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.Header.Clone()
		mu.Unlock()
		switch r.URL.Path {
		case "/missing.jpg":
			w.WriteHeader(http.StatusNotFound)
		case "/html.jpg":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>hotlink blocked</html>"))
		default:
			w.Header().Set("Content-Type", "image/png")
			w.Write(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() http.Header {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestDownloaderFetchPage(t *testing.T) {
	png := createTestPNG(t)
	srv, lastHeader := imageServer(t, png)
	store := integrations.NewDiskStore(t.TempDir())
	d := NewDownloader(store, time.Second, "https://site.example.com/", nil)

	chapter := data.Chapter{Key: "/c/1", Name: "Chapter 1"}
	page := data.Page{Index: 4, ImageURL: srv.URL + "/a.jpg"}

	require.NoError(t, d.FetchPage(context.Background(), "Manga", chapter, page))

	content, err := os.ReadFile(filepath.Join(d.ChapterDir("Manga", chapter), "page_005.jpg"))
	require.NoError(t, err)
	assert.Equal(t, png, content)
	assert.Equal(t, "https://site.example.com/", lastHeader().Get("Referer"))
	assert.Contains(t, lastHeader().Get("Accept"), "image/")
}

func TestDownloaderFetchPageFallsBackToURL(t *testing.T) {
	srv, _ := imageServer(t, createTestPNG(t))
	d := NewDownloader(integrations.NewDiskStore(t.TempDir()), time.Second, "", nil)

	err := d.FetchPage(context.Background(), "Manga", data.Chapter{Key: "/c"}, data.Page{URL: srv.URL + "/a.jpg"})
	assert.NoError(t, err)
}

func TestDownloaderFetchPageErrors(t *testing.T) {
	srv, _ := imageServer(t, createTestPNG(t))
	store := integrations.NewDiskStore(t.TempDir())
	d := NewDownloader(store, time.Second, "", nil)
	chapter := data.Chapter{Key: "/c", Name: "c"}

	err := d.FetchPage(context.Background(), "Manga", chapter, data.Page{ImageURL: srv.URL + "/missing.jpg"})
	assert.ErrorContains(t, err, "bad status")

	err = d.FetchPage(context.Background(), "Manga", chapter, data.Page{ImageURL: srv.URL + "/html.jpg"})
	assert.ErrorIs(t, err, integrations.ErrInvalidImage)

	err = d.FetchPage(context.Background(), "Manga", chapter, data.Page{Index: 2})
	assert.ErrorContains(t, err, "no image url")

	_, statErr := os.Stat(d.ChapterDir("Manga", chapter))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	d := NewDownloader(integrations.NewDiskStore(t.TempDir()), 20*time.Millisecond, "", nil)
	err := d.FetchPage(context.Background(), "Manga", data.Chapter{Key: "/c"}, data.Page{ImageURL: srv.URL})
	assert.Error(t, err)
}

func TestDownloadCover(t *testing.T) {
	png := createTestPNG(t)
	srv, _ := imageServer(t, png)
	d := NewDownloader(integrations.NewDiskStore(t.TempDir()), 0, "", nil)

	img, err := d.DownloadCover(context.Background(), srv.URL+"/cover.png")
	require.NoError(t, err)
	assert.Equal(t, png, img.Content)
	assert.Equal(t, "image/png", img.ContentType)

	_, err = d.DownloadCover(context.Background(), srv.URL+"/missing.jpg")
	assert.Error(t, err)
}

func TestChapterDirName(t *testing.T) {
	assert.Equal(t, "Chapter 1", chapterDirName(data.Chapter{Key: "/c/1", Name: "Chapter 1"}))
	assert.Equal(t, "/c/1", chapterDirName(data.Chapter{Key: "/c/1"}))
}

func TestQueueWithDownloader(t *testing.T) {
	srv, _ := imageServer(t, createTestPNG(t))
	store := integrations.NewDiskStore(t.TempDir())

	src := &mockSource{
		resolvePagesFunc: func(context.Context, data.Chapter, sources.ChapterOptions) ([]data.Page, error) {
			return []data.Page{
				{Index: 0, ImageURL: srv.URL + "/0.jpg", Status: data.PageReady},
				{Index: 1, ImageURL: srv.URL + "/missing.jpg", Status: data.PageReady},
				{Index: 2, ImageURL: srv.URL + "/2.jpg", Status: data.PageReady},
			}, nil
		},
	}
	q := newTestQueue(src, NewDownloader(store, time.Second, "", nil), QueueOptions{})
	q.Enqueue("Manga", data.Chapter{Key: "/c1", Name: "Chapter 1"})
	jobs := runQueue(t, q)

	assert.Equal(t, data.JobPartial, jobs[0].Status)
	assert.Equal(t, "2/3", jobs[0].Progress)

	pages, err := store.Pages(store.ChapterDir("Manga", "Chapter 1"))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "page_001.jpg", filepath.Base(pages[0]))
	assert.Equal(t, "page_003.jpg", filepath.Base(pages[1]))
}
