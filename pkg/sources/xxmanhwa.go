package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/utils"
)

const DefaultXXManhwaURL = "https://google.xxmanhwa2.top"

// Upload times on the site are local to Vietnam.
var xxmanhwaZone = time.FixedZone("ICT", 7*60*60)

type XXManhwa struct {
	api       *utils.API
	logger    *slog.Logger
	challenge *challenge
}

func NewXXManhwa(baseURL string, timeout time.Duration, logger *slog.Logger) (*XXManhwa, error) {
	if baseURL == "" {
		baseURL = DefaultXXManhwaURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	api, err := utils.NewAPI(baseURL, timeout, utils.CommonHeaders())
	if err != nil {
		return nil, err
	}
	logger = logger.With("source", "xxmanhwa")
	return &XXManhwa{
		api:    api,
		logger: logger,
		challenge: &challenge{
			api:        api,
			logger:     logger,
			instanceID: newInstanceID,
		},
	}, nil
}

func (x *XXManhwa) ID() string   { return "xxmanhwa" }
func (x *XXManhwa) Name() string { return "XXManhwa" }

func (x *XXManhwa) Referer() string {
	return x.api.BaseURL() + "/"
}

func (x *XXManhwa) ListPopular(ctx context.Context, page int) ([]data.Manga, error) {
	if err := checkPage(page); err != nil {
		return nil, err
	}
	return x.fetchList(ctx, "/tat-ca-cac-truyen", url.Values{"page_num": {strconv.Itoa(page)}})
}

// Search ignores filters; the site only supports a text query.
func (x *XXManhwa) Search(ctx context.Context, page int, query string, _ data.FilterList) ([]data.Manga, error) {
	if err := checkPage(page); err != nil {
		return nil, err
	}
	return x.fetchList(ctx, "/search", url.Values{
		"page_num":  {strconv.Itoa(page)},
		"s":         {query},
		"post_type": {"story"},
	})
}

func (x *XXManhwa) fetchList(ctx context.Context, ref string, params url.Values) ([]data.Manga, error) {
	resp, err := x.api.Get(ctx, ref, params, utils.PageHeaders(x.Referer()))
	if err != nil {
		return nil, unavailable("list mangas", err)
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, unavailable("parse manga list", err)
	}

	mangas := []data.Manga{}
	doc.Find("div[data-type=story]").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a").First()
		href, _ := link.Attr("href")
		title, _ := link.Attr("title")
		title = strings.TrimSpace(title)
		if href == "" || title == "" {
			return
		}
		cover, _ := s.Find("div.posts-list-avt").Attr("data-img")
		mangas = append(mangas, data.Manga{
			Key:      x.api.RelativeKey(href),
			Source:   x.ID(),
			Title:    title,
			CoverURL: cover,
		})
	})
	return mangas, nil
}

func (x *XXManhwa) FetchDetails(ctx context.Context, manga data.Manga) (data.Manga, error) {
	if manga.Key == "" {
		return manga, fmt.Errorf("%w: manga key is empty", ErrBadArguments)
	}
	resp, err := x.api.Get(ctx, manga.Key, nil, utils.PageHeaders(x.Referer()))
	if err != nil {
		return manga, unavailable("fetch details", err)
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return manga, unavailable("parse details", err)
	}

	update := data.Manga{
		Source:      x.ID(),
		Title:       strings.TrimSpace(doc.Find("h1").First().Text()),
		Description: strings.TrimSpace(doc.Find(".story-details-content p").First().Text()),
	}
	if src, ok := doc.Find("div.col-inner.img-max-width img").First().Attr("src"); ok {
		update.CoverURL = src
	}
	genres, err := xxmanhwaGenres(doc)
	if err != nil {
		x.logger.Warn("failed to read genres", "manga", manga.Key, "error", err)
	}
	update.Genres = genres

	return manga.Merge(update), nil
}

// xxmanhwaGenres maps the taxonomy ids of the page onto the category
// table embedded in the StoryType_CAT script.
func xxmanhwaGenres(doc *goquery.Document) ([]string, error) {
	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := s.Text(); strings.Contains(t, "StoryType_CAT") {
			script = t
			return false
		}
		return true
	})
	if script == "" {
		return nil, nil
	}

	raw, ok := between(script, "'cat_story': [", "],")
	if !ok {
		return nil, fmt.Errorf("category table not found")
	}
	dec := json.NewDecoder(strings.NewReader("[" + raw + "]"))
	dec.UseNumber()
	var categories []map[string]any
	if err := dec.Decode(&categories); err != nil {
		return nil, fmt.Errorf("failed to decode category table: %w", err)
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[fmt.Sprint(c["term_id"])] = fmt.Sprint(c["name"])
	}

	ids, _ := doc.Find("div[data-taxonomy]").First().Attr("data-id")
	if strings.TrimSpace(ids) == "" {
		return nil, nil
	}
	var genres []string
	for _, id := range strings.Split(ids, ",") {
		if name, ok := names[strings.TrimSpace(id)]; ok {
			genres = append(genres, name)
		} else {
			genres = append(genres, "Unknown")
		}
	}
	return genres, nil
}

type xxmanhwaChapter struct {
	PostModified string `json:"post_modified"`
	PostTitle    string `json:"post_title"`
	ChapLink     string `json:"chap_link"`
	MemberType   string `json:"member_type"`
}

func (c xxmanhwaChapter) paid() bool {
	return strings.TrimSpace(c.MemberType) != ""
}

func (c xxmanhwaChapter) toChapter(mangaKey string) data.Chapter {
	name := c.PostTitle
	if c.paid() {
		name += " (" + c.MemberType + ")"
	}
	var uploaded int64
	if t, err := time.ParseInLocation(time.DateTime, c.PostModified, xxmanhwaZone); err == nil {
		uploaded = t.Unix()
	}
	return data.Chapter{
		Key:        "/" + strings.TrimPrefix(c.ChapLink, "/"),
		MangaKey:   mangaKey,
		Name:       name,
		DateUpload: uploaded,
		Number:     parseChapterNumber(c.PostTitle),
	}
}

// ListChapters returns chapters in page order, newest first.
func (x *XXManhwa) ListChapters(ctx context.Context, manga data.Manga, opts ChapterOptions) ([]data.Chapter, error) {
	if manga.Key == "" {
		return nil, fmt.Errorf("%w: manga key is empty", ErrBadArguments)
	}
	resp, err := x.api.Get(ctx, manga.Key, nil, utils.PageHeaders(x.Referer()))
	if err != nil {
		return nil, unavailable("list chapters", err)
	}
	raw, ok := between(resp.Text(), "var scope_data=", ";</script")
	if !ok {
		return nil, extraction("chapter data not found")
	}
	var records []xxmanhwaChapter
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, extraction("chapter data: %v", err)
	}

	chapters := make([]data.Chapter, 0, len(records))
	for _, r := range records {
		if opts.HidePaid && r.paid() {
			continue
		}
		chapters = append(chapters, r.toChapter(manga.Key))
	}
	return chapters, nil
}

func (x *XXManhwa) ResolvePages(ctx context.Context, chapter data.Chapter, _ ChapterOptions) ([]data.Page, error) {
	res, err := x.Resolve(ctx, chapter)
	if err != nil {
		return nil, err
	}
	return res.Pages, nil
}

// Resolve runs the image handshake and returns its trace. The returned
// Resolution is non-nil even on error.
func (x *XXManhwa) Resolve(ctx context.Context, chapter data.Chapter) (*Resolution, error) {
	if chapter.Key == "" {
		res := (&Resolution{State: StateInit}).fail(fmt.Errorf("%w: chapter key is empty", ErrBadArguments))
		return res, res.Err
	}
	res := x.challenge.resolve(ctx, chapter.Key)
	if res.State == StateFailed {
		x.logger.Warn("page resolution failed", "chapter", chapter.Key, "at", res.FailedAt, "error", res.Err)
	}
	return res, res.Err
}
