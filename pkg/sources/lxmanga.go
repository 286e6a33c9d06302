package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/utils"
)

const DefaultLxMangaURL = "https://lxmanga.help"

const (
	LxSortUpdated  = "-updated_at"
	LxSortCreated  = "-created_at"
	LxSortOldest   = "created_at"
	LxSortViews    = "-views"
	LxSortNameAsc  = "name"
	LxSortNameDesc = "-name"

	LxStatusAll       = "1,2"
	LxStatusOngoing   = "2"
	LxStatusCompleted = "1"
)

// LxMangaGenres are the genre ids accepted by GenreFilter.
var LxMangaGenres = map[string]int{
	"Mature":  1,
	"Manhwa":  2,
	"Adult":   6,
	"Romance": 10,
	"Fantasy": 15,
	"Ecchi":   16,
	"Harem":   18,
	"Comedy":  19,
}

type SortFilter struct{ Value string }

func (SortFilter) Name() string { return "sort" }

type StatusFilter struct{ Value string }

func (StatusFilter) Name() string { return "status" }

// GenreFilter includes a genre, or excludes it when Exclude is set.
type GenreFilter struct {
	ID      int
	Exclude bool
}

func (GenreFilter) Name() string { return "genre" }

type AuthorFilter struct{ Value string }

func (AuthorFilter) Name() string { return "author" }

var coverStyleRe = regexp.MustCompile(`url\(['"]?([^'")]+)`)

var (
	lxListSelectors    = []string{"div.grid div.manga-vertical", "div.manga-item", "article.manga", "div.comic-item"}
	lxLinkSelectors    = []string{"div.p-2.truncate a", "a[href*='/truyen/']", "h3 a", "a"}
	lxCoverSelectors   = []string{"div.cover", "img.cover", "img"}
	lxChapterSelectors = []string{"ul.overflow-y-auto.overflow-x-hidden > a", "div.chapter-list a", "a[href*='/chuong/']", "a[href*='/chapter/']"}
	lxPageSelectors    = []string{"div.text-center div.lazy", "div.reading-content img", "img.page-img", "div.page-chapter img"}
	lxTitleSelectors   = []string{"div.mb-4 span", "h1", "h1.manga-title", "div.title"}
)

type LxManga struct {
	api    *utils.API
	logger *slog.Logger
}

func NewLxManga(baseURL string, timeout time.Duration, logger *slog.Logger) (*LxManga, error) {
	if baseURL == "" {
		baseURL = DefaultLxMangaURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	api, err := utils.NewAPI(baseURL, timeout, utils.CommonHeaders())
	if err != nil {
		return nil, err
	}
	return &LxManga{api: api, logger: logger.With("source", "lxmanga")}, nil
}

func (l *LxManga) ID() string   { return "lxmanga" }
func (l *LxManga) Name() string { return "LxManga" }

func (l *LxManga) Referer() string {
	return l.api.BaseURL() + "/"
}

func (l *LxManga) ListPopular(ctx context.Context, page int) ([]data.Manga, error) {
	return l.Search(ctx, page, "", data.FilterList{SortFilter{Value: LxSortViews}})
}

func (l *LxManga) Search(ctx context.Context, page int, query string, filters data.FilterList) ([]data.Manga, error) {
	if err := checkPage(page); err != nil {
		return nil, err
	}
	resp, err := l.api.Get(ctx, "/tim-kiem", lxSearchParams(page, query, filters), utils.PageHeaders(l.Referer()))
	if err != nil {
		return nil, upstreamError("search", err)
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, unavailable("parse manga list", err)
	}
	return l.parseList(doc), nil
}

// lxSearchParams builds the /tim-kiem query. A text query wins over an
// author filter.
func lxSearchParams(page int, query string, filters data.FilterList) url.Values {
	params := url.Values{
		"page":           {strconv.Itoa(page)},
		"sort":           {LxSortViews},
		"filter[status]": {LxStatusAll},
	}
	var accept, reject []string
	author := ""
	for _, f := range filters {
		switch f := f.(type) {
		case SortFilter:
			if f.Value != "" {
				params.Set("sort", f.Value)
			}
		case StatusFilter:
			if f.Value != "" {
				params.Set("filter[status]", f.Value)
			}
		case GenreFilter:
			if f.Exclude {
				reject = append(reject, strconv.Itoa(f.ID))
			} else {
				accept = append(accept, strconv.Itoa(f.ID))
			}
		case AuthorFilter:
			author = f.Value
		}
	}
	if query = strings.TrimSpace(query); query != "" {
		params.Set("filter[name]", query)
	} else if author != "" {
		params.Set("filter[artist]", author)
	}
	if len(accept) > 0 {
		params.Set("filter[accept_genres]", strings.Join(accept, ","))
	}
	if len(reject) > 0 {
		params.Set("filter[reject_genres]", strings.Join(reject, ","))
	}
	return params
}

func (l *LxManga) parseList(doc *goquery.Document) []data.Manga {
	mangas := []data.Manga{}
	selectFirst(doc, lxListSelectors...).Each(func(_ int, item *goquery.Selection) {
		link := selectFirst(item, lxLinkSelectors...).First()
		href, _ := link.Attr("href")
		if link.Length() == 0 || href == "" {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(link.AttrOr("title", ""))
		}
		if title == "" {
			return
		}
		cover := ""
		for _, sel := range lxCoverSelectors {
			if c := item.Find(sel).First(); c.Length() > 0 {
				if v := firstAttr(c, "data-bg", "data-src", "src"); v != "" {
					cover = l.api.URL(v)
					break
				}
			}
		}
		mangas = append(mangas, data.Manga{
			Key:      l.api.RelativeKey(href),
			Source:   l.ID(),
			Title:    title,
			CoverURL: cover,
		})
	})
	return mangas
}

func (l *LxManga) FetchDetails(ctx context.Context, manga data.Manga) (data.Manga, error) {
	if manga.Key == "" {
		return manga, fmt.Errorf("%w: manga key is empty", ErrBadArguments)
	}
	resp, err := l.api.Get(ctx, manga.Key, nil, utils.PageHeaders(l.Referer()))
	if err != nil {
		return manga, upstreamError("fetch details", err)
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return manga, unavailable("parse details", err)
	}

	update := data.Manga{
		Source: l.ID(),
		Title:  strings.TrimSpace(selectFirst(doc, lxTitleSelectors...).First().Text()),
		Author: strings.TrimSpace(doc.Find(`div.grow div.mt-2 > span:contains("Tác giả:") + span a`).First().Text()),
	}
	doc.Find(`div.grow div.mt-2 > span:contains("Thể loại:") + span a`).Each(func(_ int, s *goquery.Selection) {
		if g := strings.Trim(strings.TrimSpace(s.Text()), ","); g != "" {
			update.Genres = append(update.Genres, g)
		}
	})

	var description []string
	doc.Find(`p:contains("Tóm tắt") ~ p`).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			description = append(description, t)
		}
	})
	update.Description = strings.Join(description, "\n")

	if style, ok := doc.Find(".cover").First().Attr("style"); ok {
		if m := coverStyleRe.FindStringSubmatch(style); m != nil {
			update.CoverURL = l.api.URL(m[1])
		}
	}

	status := strings.ToLower(doc.Find(`div.grow div.mt-2:contains("Tình trạng") a`).First().Text())
	switch {
	case strings.Contains(status, "hoàn thành"):
		update.Status = data.StatusCompleted
	case strings.Contains(status, "tiến hành"):
		update.Status = data.StatusOngoing
	}

	return manga.Merge(update), nil
}

// ListChapters ignores HidePaid; the site has no paid chapters.
func (l *LxManga) ListChapters(ctx context.Context, manga data.Manga, _ ChapterOptions) ([]data.Chapter, error) {
	if manga.Key == "" {
		return nil, fmt.Errorf("%w: manga key is empty", ErrBadArguments)
	}
	resp, err := l.api.Get(ctx, manga.Key, nil, utils.PageHeaders(l.Referer()))
	if err != nil {
		return nil, upstreamError("list chapters", err)
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, unavailable("parse chapters", err)
	}

	chapters := []data.Chapter{}
	selectFirst(doc, lxChapterSelectors...).Each(func(_ int, item *goquery.Selection) {
		href, _ := item.Attr("href")
		name := strings.TrimSpace(item.Find("span.text-ellipsis").First().Text())
		if name == "" {
			name = strings.TrimSpace(item.Text())
		}
		if href == "" || name == "" {
			return
		}
		chapters = append(chapters, data.Chapter{
			Key:        l.api.RelativeKey(href),
			MangaKey:   manga.Key,
			Name:       name,
			DateUpload: parseLxDate(item.Find("span.timeago").First().AttrOr("datetime", "")),
			Number:     parseChapterNumber(name),
		})
	})
	return chapters, nil
}

var lxDateLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly}

func parseLxDate(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range lxDateLayouts {
		if t, err := time.ParseInLocation(layout, s, xxmanhwaZone); err == nil {
			return t.Unix()
		}
	}
	return 0
}

func (l *LxManga) ResolvePages(ctx context.Context, chapter data.Chapter, _ ChapterOptions) ([]data.Page, error) {
	if chapter.Key == "" {
		return nil, fmt.Errorf("%w: chapter key is empty", ErrBadArguments)
	}
	resp, err := l.api.Get(ctx, chapter.Key, nil, utils.PageHeaders(l.Referer()))
	if err != nil {
		return nil, upstreamError("load chapter", err)
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, extraction("chapter document: %v", err)
	}

	pages := []data.Page{}
	selectFirst(doc, lxPageSelectors...).Each(func(_ int, s *goquery.Selection) {
		src := firstAttr(s, "data-src", "data-original", "src")
		if src == "" {
			return
		}
		page := data.NewPage(len(pages), src)
		page.ImageURL = l.api.URL(src)
		page.Advance(data.PageReady)
		pages = append(pages, page)
	})
	if len(pages) == 0 {
		return nil, extraction("no page images in %s", chapter.Key)
	}
	return pages, nil
}
