package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/utils"
)

const (
	DefaultMangaDexURL = "https://api.mangadex.org"
	mangaDexCoversURL  = "https://uploads.mangadex.org/covers"
	mangaDexPageSize   = 20
)

type mdRelationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type mdManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       map[string]string `json:"title"`
		Description map[string]string `json:"description"`
		Status      string            `json:"status"`
		Tags        []struct {
			Attributes struct {
				Name map[string]string `json:"name"`
			} `json:"attributes"`
		} `json:"tags"`
	} `json:"attributes"`
	Relationships []mdRelationship `json:"relationships"`
}

func (m *mdManga) toManga(source string) data.Manga {
	manga := data.Manga{
		Key:         m.ID,
		Source:      source,
		Title:       localized(m.Attributes.Title),
		Description: localized(m.Attributes.Description),
		Status:      mdStatus(m.Attributes.Status),
	}
	for _, tag := range m.Attributes.Tags {
		if name := localized(tag.Attributes.Name); name != "" {
			manga.Genres = append(manga.Genres, name)
		}
	}
	for _, rel := range m.Relationships {
		switch rel.Type {
		case "author":
			manga.Author = rel.Attributes.Name
		case "artist":
			manga.Artist = rel.Attributes.Name
		case "cover_art":
			if rel.Attributes.FileName != "" {
				manga.CoverURL = fmt.Sprintf("%s/%s/%s", mangaDexCoversURL, m.ID, rel.Attributes.FileName)
			}
		}
	}
	return manga
}

type mdChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title     string `json:"title"`
		Volume    string `json:"volume"`
		Number    string `json:"chapter"`
		PublishAt string `json:"publishAt"`
	} `json:"attributes"`
	Relationships []mdRelationship `json:"relationships"`
}

func (c *mdChapter) toChapter(mangaKey string) data.Chapter {
	chapter := data.Chapter{
		Key:      c.ID,
		MangaKey: mangaKey,
		Number:   -1,
	}
	var name []string
	if c.Attributes.Volume != "" {
		name = append(name, "Vol."+c.Attributes.Volume)
	}
	if c.Attributes.Number != "" {
		name = append(name, "Ch."+c.Attributes.Number)
		if n, err := strconv.ParseFloat(c.Attributes.Number, 64); err == nil {
			chapter.Number = n
		}
	}
	if c.Attributes.Title != "" {
		if len(name) > 0 {
			name = append(name, "-")
		}
		name = append(name, c.Attributes.Title)
	}
	chapter.Name = strings.Join(name, " ")
	if chapter.Name == "" {
		chapter.Name = "Oneshot"
	}
	if t, err := time.Parse(time.RFC3339, c.Attributes.PublishAt); err == nil {
		chapter.DateUpload = t.Unix()
	}
	for _, rel := range c.Relationships {
		if rel.Type == "scanlation_group" {
			chapter.Scanlator = rel.Attributes.Name
		}
	}
	return chapter
}

// MangaDex reads from the public MangaDex JSON API. Keys are MangaDex ids.
type MangaDex struct {
	api      *utils.API
	logger   *slog.Logger
	language string
}

func NewMangaDex(baseURL string, timeout time.Duration, logger *slog.Logger) (*MangaDex, error) {
	if baseURL == "" {
		baseURL = DefaultMangaDexURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	api, err := utils.NewAPI(baseURL, timeout, map[string]string{"User-Agent": "mangafetch"})
	if err != nil {
		return nil, err
	}
	return &MangaDex{api: api, logger: logger.With("source", "mangadex"), language: "en"}, nil
}

func (m *MangaDex) ID() string   { return "mangadex" }
func (m *MangaDex) Name() string { return "MangaDex" }

func (m *MangaDex) ListPopular(ctx context.Context, page int) ([]data.Manga, error) {
	if err := checkPage(page); err != nil {
		return nil, err
	}
	params := m.listParams(page)
	params.Set("order[followedCount]", "desc")
	return m.list(ctx, params)
}

// Search honours a SortFilter by passing its value as the order field.
func (m *MangaDex) Search(ctx context.Context, page int, query string, filters data.FilterList) ([]data.Manga, error) {
	if err := checkPage(page); err != nil {
		return nil, err
	}
	params := m.listParams(page)
	if query != "" {
		params.Set("title", query)
	}
	params.Set("order[relevance]", "desc")
	for _, f := range filters {
		if s, ok := f.(SortFilter); ok && s.Value != "" {
			params.Del("order[relevance]")
			params.Set("order["+s.Value+"]", "desc")
		}
	}
	return m.list(ctx, params)
}

func (m *MangaDex) listParams(page int) url.Values {
	return url.Values{
		"limit":      {strconv.Itoa(mangaDexPageSize)},
		"offset":     {strconv.Itoa((page - 1) * mangaDexPageSize)},
		"includes[]": {"cover_art"},
	}
}

func (m *MangaDex) list(ctx context.Context, params url.Values) ([]data.Manga, error) {
	var resp struct {
		Data []mdManga `json:"data"`
	}
	if err := m.api.GetJSON(ctx, "/manga", params, &resp); err != nil {
		return nil, unavailable("list mangas", err)
	}
	out := make([]data.Manga, 0, len(resp.Data))
	for _, manga := range resp.Data {
		if mg := manga.toManga(m.ID()); mg.Title != "" {
			out = append(out, mg)
		}
	}
	return out, nil
}

func (m *MangaDex) FetchDetails(ctx context.Context, manga data.Manga) (data.Manga, error) {
	if manga.Key == "" {
		return manga, fmt.Errorf("%w: manga key is empty", ErrBadArguments)
	}
	var resp struct {
		Data mdManga `json:"data"`
	}
	params := url.Values{"includes[]": {"author", "artist", "cover_art"}}
	if err := m.api.GetJSON(ctx, "/manga/"+url.PathEscape(manga.Key), params, &resp); err != nil {
		return manga, unavailable("fetch details", err)
	}
	return manga.Merge(resp.Data.toManga(m.ID())), nil
}

func (m *MangaDex) ListChapters(ctx context.Context, manga data.Manga, _ ChapterOptions) ([]data.Chapter, error) {
	if manga.Key == "" {
		return nil, fmt.Errorf("%w: manga key is empty", ErrBadArguments)
	}
	var feed struct {
		Data []mdChapter `json:"data"`
	}
	params := url.Values{
		"translatedLanguage[]": {m.language},
		"order[chapter]":       {"desc"},
		"includes[]":           {"scanlation_group"},
		"limit":                {"500"},
	}
	if err := m.api.GetJSON(ctx, "/manga/"+url.PathEscape(manga.Key)+"/feed", params, &feed); err != nil {
		return nil, unavailable("list chapters", err)
	}
	out := make([]data.Chapter, len(feed.Data))
	for i, chapter := range feed.Data {
		out[i] = chapter.toChapter(manga.Key)
	}
	return out, nil
}

func (m *MangaDex) ResolvePages(ctx context.Context, chapter data.Chapter, _ ChapterOptions) ([]data.Page, error) {
	if chapter.Key == "" {
		return nil, fmt.Errorf("%w: chapter key is empty", ErrBadArguments)
	}
	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := m.api.GetJSON(ctx, "/at-home/server/"+url.PathEscape(chapter.Key), nil, &server); err != nil {
		return nil, unavailable("resolve pages", err)
	}
	if server.BaseURL == "" || server.Chapter.Hash == "" {
		return nil, fmt.Errorf("%w: at-home response missing base url or hash", ErrUpstreamResponse)
	}
	pages := make([]data.Page, len(server.Chapter.Data))
	for i, file := range server.Chapter.Data {
		pages[i] = data.NewPage(i, file)
		pages[i].ImageURL = fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, file)
		pages[i].Advance(data.PageReady)
	}
	return pages, nil
}

// localized picks the English value, falling back to any value.
func localized(values map[string]string) string {
	if v := values["en"]; v != "" {
		return v
	}
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mdStatus(s string) data.MangaStatus {
	switch s {
	case "ongoing":
		return data.StatusOngoing
	case "completed":
		return data.StatusCompleted
	case "hiatus":
		return data.StatusOnHiatus
	case "cancelled":
		return data.StatusCancelled
	default:
		return data.StatusUnknown
	}
}
