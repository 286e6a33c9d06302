package sources

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLxManga(t *testing.T, baseURL string) *LxManga {
	t.Helper()
	l, err := NewLxManga(baseURL, 2*time.Second, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return l
}

func TestLxSearchParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		filters data.FilterList
		want    map[string]string
		absent  []string
	}{
		{
			name:   "defaults",
			want:   map[string]string{"page": "1", "sort": "-views", "filter[status]": "1,2"},
			absent: []string{"filter[name]", "filter[artist]", "filter[accept_genres]", "filter[reject_genres]"},
		},
		{
			name:    "filters only",
			filters: data.FilterList{SortFilter{Value: LxSortUpdated}, StatusFilter{Value: LxStatusCompleted}, GenreFilter{ID: 1}, GenreFilter{ID: 6}, GenreFilter{ID: 16, Exclude: true}},
			want: map[string]string{
				"sort":                  "-updated_at",
				"filter[status]":        "1",
				"filter[accept_genres]": "1,6",
				"filter[reject_genres]": "16",
			},
		},
		{
			name:    "query wins over author",
			query:   " naruto ",
			filters: data.FilterList{AuthorFilter{Value: "kishimoto"}},
			want:    map[string]string{"filter[name]": "naruto"},
			absent:  []string{"filter[artist]"},
		},
		{
			name:    "author without query",
			filters: data.FilterList{AuthorFilter{Value: "kishimoto"}},
			want:    map[string]string{"filter[artist]": "kishimoto"},
			absent:  []string{"filter[name]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := lxSearchParams(1, tt.query, tt.filters)
			for k, v := range tt.want {
				assert.Equal(t, v, params.Get(k), k)
			}
			for _, k := range tt.absent {
				assert.False(t, params.Has(k), k)
			}
		})
	}
}

const lxListHTML = `<html><body><div class="grid">
<div class="manga-vertical">
  <div class="cover" data-bg="/covers/1.jpg"></div>
  <div class="p-2 truncate"><a href="/truyen/one">One</a></div>
</div>
<div class="manga-vertical">
  <img src="https://cdn.example.com/2.jpg">
  <div class="p-2 truncate"><a href="/truyen/two" title="Two Title"></a></div>
</div>
<div class="manga-vertical"><span>no link</span></div>
</div></body></html>`

func TestLxManga_ListPopular(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tim-kiem", r.URL.Path)
		assert.Equal(t, "-views", r.URL.Query().Get("sort"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		serveHTML(lxListHTML)(w, r)
	}))
	defer server.Close()
	l := newTestLxManga(t, server.URL)

	mangas, err := l.ListPopular(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, mangas, 2)

	assert.Equal(t, "/truyen/one", mangas[0].Key)
	assert.Equal(t, "One", mangas[0].Title)
	assert.Equal(t, server.URL+"/covers/1.jpg", mangas[0].CoverURL)
	assert.Equal(t, "lxmanga", mangas[0].Source)

	assert.Equal(t, "Two Title", mangas[1].Title)
	assert.Equal(t, "https://cdn.example.com/2.jpg", mangas[1].CoverURL)
}

func TestLxManga_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()
	l := newTestLxManga(t, server.URL)

	_, err := l.Search(context.Background(), 1, "x", nil)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = l.FetchDetails(context.Background(), data.Manga{Key: "/truyen/x"})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = l.ResolvePages(context.Background(), data.Chapter{Key: "/truyen/x/1"}, ChapterOptions{})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestLxManga_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	l := newTestLxManga(t, server.URL)

	_, err := l.ListPopular(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

const lxDetailsHTML = `<html><body>
<div class="mb-4"><span>Truyện LX</span></div>
<div class="grow">
  <div class="mt-2"><span>Tác giả:</span> <span><a href="/tac-gia/a">Tác Giả A</a></span></div>
  <div class="mt-2"><span>Thể loại:</span> <span><a>Romance,</a> <a>Drama</a></span></div>
  <div class="mt-2">Tình trạng: <a href="#">Đã hoàn thành</a></div>
</div>
<div class="cover" style="background-image: url('/covers/lx.jpg')"></div>
<p>Tóm tắt</p>
<p>Dòng một.</p>
<p>Dòng hai.</p>
</body></html>`

func TestLxManga_FetchDetails(t *testing.T) {
	server := httptest.NewServer(serveHTML(lxDetailsHTML))
	defer server.Close()
	l := newTestLxManga(t, server.URL)

	got, err := l.FetchDetails(context.Background(), data.Manga{Key: "/truyen/lx", Artist: "kept"})
	require.NoError(t, err)

	assert.Equal(t, "Truyện LX", got.Title)
	assert.Equal(t, "Tác Giả A", got.Author)
	assert.Equal(t, "kept", got.Artist)
	assert.Equal(t, []string{"Romance", "Drama"}, got.Genres)
	assert.Equal(t, "Dòng một.\nDòng hai.", got.Description)
	assert.Equal(t, server.URL+"/covers/lx.jpg", got.CoverURL)
	assert.Equal(t, data.StatusCompleted, got.Status)
	assert.True(t, got.Initialized)
}

const lxChaptersHTML = `<html><body>
<ul class="overflow-y-auto overflow-x-hidden">
  <a href="/truyen/lx/chap-10.5"><span class="text-ellipsis">Chương 10.5</span><span class="timeago" datetime="2024-03-01T12:00:00+07:00"></span></a>
  <a href="/truyen/lx/chap-10"><span class="text-ellipsis">Chương 10</span><span class="timeago" datetime="2024-02-01 08:00:00"></span></a>
  <a href="/truyen/lx/chap-9">Chương 9</a>
</ul></body></html>`

func TestLxManga_ListChapters(t *testing.T) {
	server := httptest.NewServer(serveHTML(lxChaptersHTML))
	defer server.Close()
	l := newTestLxManga(t, server.URL)

	chapters, err := l.ListChapters(context.Background(), data.Manga{Key: "/truyen/lx"}, ChapterOptions{HidePaid: true})
	require.NoError(t, err)
	require.Len(t, chapters, 3)

	assert.Equal(t, "/truyen/lx/chap-10.5", chapters[0].Key)
	assert.Equal(t, "Chương 10.5", chapters[0].Name)
	assert.Equal(t, 10.5, chapters[0].Number)
	assert.Equal(t, time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC).Unix(), chapters[0].DateUpload)
	assert.Equal(t, time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC).Unix(), chapters[1].DateUpload)
	assert.Equal(t, "Chương 9", chapters[2].Name)
	assert.Equal(t, int64(0), chapters[2].DateUpload)
}

func TestLxManga_ResolvePages(t *testing.T) {
	server := httptest.NewServer(serveHTML(`<div class="text-center">
		<div class="lazy" data-src="/img/1.jpg"></div>
		<div class="lazy" data-original="https://cdn.example.com/2.jpg"></div>
		<div class="lazy"></div>
		<div class="lazy" src="/img/3.jpg"></div>
	</div>`))
	defer server.Close()
	l := newTestLxManga(t, server.URL)

	pages, err := l.ResolvePages(context.Background(), data.Chapter{Key: "/truyen/lx/chap-1"}, ChapterOptions{})
	require.NoError(t, err)
	require.Len(t, pages, 3)

	want := []string{server.URL + "/img/1.jpg", "https://cdn.example.com/2.jpg", server.URL + "/img/3.jpg"}
	for i, page := range pages {
		assert.Equal(t, i, page.Index)
		assert.Equal(t, want[i], page.ImageURL)
		assert.Equal(t, data.PageReady, page.Status)
	}
}

func TestLxManga_ResolvePagesEmpty(t *testing.T) {
	server := httptest.NewServer(serveHTML(`<html><body>nothing</body></html>`))
	defer server.Close()
	l := newTestLxManga(t, server.URL)

	_, err := l.ResolvePages(context.Background(), data.Chapter{Key: "/truyen/lx/chap-1"}, ChapterOptions{})
	assert.ErrorIs(t, err, ErrProtocolExtraction)
}
