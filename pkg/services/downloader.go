package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/integrations"
	"github.com/kerbaras/mangafetch/pkg/utils"
)

const DefaultImageTimeout = 30 * time.Second

// Repository is the library storage the services need. Keys are scoped
// by source id.
type Repository interface {
	SaveManga(manga *data.Manga) error
	GetManga(source, key string) (*data.Manga, error)
	GetMangaWithChapterCount(source, key string) (*data.Manga, int, int, error)
	GetChapters(source, mangaKey string) ([]*data.Chapter, error)
	SaveChapter(chapter *data.Chapter) error
	UpdateChapterStatus(source, chapterKey string, downloaded bool, filePath string) error
	ListMangas() ([]*data.Manga, error)
	DeleteManga(source, key string) error
}

// Downloader fetches page images and hands them to a DiskStore.
type Downloader struct {
	store   *integrations.DiskStore
	client  *http.Client
	headers map[string]string
	logger  *slog.Logger
}

// NewDownloader creates a Downloader sending referer with every image
// request. Image hosts commonly refuse hotlinked requests without it.
func NewDownloader(store *integrations.DiskStore, timeout time.Duration, referer string, logger *slog.Logger) *Downloader {
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Downloader{
		store:   store,
		client:  &http.Client{Timeout: timeout},
		headers: utils.ImageHeaders(referer),
		logger:  logger,
	}
}

// FetchPage downloads the resolved image of page into the chapter directory.
func (d *Downloader) FetchPage(ctx context.Context, mangaTitle string, chapter data.Chapter, page data.Page) error {
	url := page.ImageURL
	if url == "" {
		url = page.URL
	}
	if url == "" {
		return fmt.Errorf("page %d has no image url", page.Index)
	}

	img, err := d.downloadImage(ctx, url, page.Index)
	if err != nil {
		return fmt.Errorf("failed to download page %d: %w", page.Index, err)
	}
	path, err := d.store.SavePage(mangaTitle, chapterDirName(chapter), img)
	if err != nil {
		return fmt.Errorf("failed to store page %d: %w", page.Index, err)
	}
	d.logger.Debug("page stored", "chapter", chapter.Key, "page", page.Index, "path", path)
	return nil
}

func (d *Downloader) ChapterDir(mangaTitle string, chapter data.Chapter) string {
	return d.store.ChapterDir(mangaTitle, chapterDirName(chapter))
}

// DownloadCover fetches a cover image without storing it.
func (d *Downloader) DownloadCover(ctx context.Context, url string) (integrations.ImageData, error) {
	img, err := d.downloadImage(ctx, url, 0)
	if err != nil {
		return integrations.ImageData{}, fmt.Errorf("failed to download cover: %w", err)
	}
	return img, nil
}

// downloadImage downloads a single image and returns its data
func (d *Downloader) downloadImage(ctx context.Context, url string, index int) (integrations.ImageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return integrations.ImageData{}, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return integrations.ImageData{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return integrations.ImageData{}, fmt.Errorf("bad status: %s", resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return integrations.ImageData{}, fmt.Errorf("failed to read image content: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return integrations.ImageData{
		Content:     content,
		ContentType: contentType,
		Index:       index,
	}, nil
}

// chapterDirName falls back to the chapter key for unnamed chapters.
func chapterDirName(chapter data.Chapter) string {
	if chapter.Name != "" {
		return chapter.Name
	}
	return chapter.Key
}
