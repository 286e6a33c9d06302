package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kerbaras/mangafetch/pkg/config"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/integrations"
	"github.com/kerbaras/mangafetch/pkg/sources"
)

var ErrNotInLibrary = errors.New("manga is not in the library")

// MangaController wires sources, download queues and the library together.
type MangaController struct {
	cfg      config.Config
	registry *sources.Registry
	store    *integrations.DiskStore
	logger   *slog.Logger

	mu       sync.Mutex
	repo     Repository
	closer   func() error
	queues   map[string]*DownloadQueue
	onChange func(source string, job data.DownloadJob)
}

// NewMangaController builds every known source from cfg. The library
// database is opened on first use.
func NewMangaController(cfg config.Config, logger *slog.Logger) (*MangaController, error) {
	xx, err := sources.NewXXManhwa(cfg.Sources.XXManhwaURL, cfg.HTTP.MetadataTimeout, logger)
	if err != nil {
		return nil, err
	}
	lx, err := sources.NewLxManga(cfg.Sources.LxMangaURL, cfg.HTTP.MetadataTimeout, logger)
	if err != nil {
		return nil, err
	}
	md, err := sources.NewMangaDex(cfg.Sources.MangaDexURL, cfg.HTTP.MetadataTimeout, logger)
	if err != nil {
		return nil, err
	}
	registry, err := sources.NewRegistry(xx, lx, md)
	if err != nil {
		return nil, err
	}
	return NewController(registry, nil, cfg, logger), nil
}

// NewController uses the given registry and repository. A nil repo is
// opened lazily from cfg.DBPath.
func NewController(registry *sources.Registry, repo Repository, cfg config.Config, logger *slog.Logger) *MangaController {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MangaController{
		cfg:      cfg,
		registry: registry,
		store:    integrations.NewDiskStore(cfg.DownloadDir),
		logger:   logger,
		repo:     repo,
		queues:   make(map[string]*DownloadQueue),
	}
}

func (c *MangaController) Config() config.Config {
	return c.cfg
}

func (c *MangaController) Store() *integrations.DiskStore {
	return c.store
}

func (c *MangaController) Source(id string) (sources.Source, error) {
	return c.registry.Get(id)
}

func (c *MangaController) Sources() []sources.Source {
	return c.registry.List()
}

func (c *MangaController) ChapterOptions() sources.ChapterOptions {
	return sources.ChapterOptions{HidePaid: c.cfg.Sources.HidePaid}
}

// OnJobChange registers fn to receive every job change of every queue.
func (c *MangaController) OnJobChange(fn func(source string, job data.DownloadJob)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *MangaController) notify(source string, job data.DownloadJob) {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(source, job)
	}
}

// Queue returns the download queue of a source, creating it on first use.
func (c *MangaController) Queue(id string) (*DownloadQueue, error) {
	src, err := c.registry.Get(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queues[id]; ok {
		return q, nil
	}
	q := NewDownloadQueue(src, c.downloader(src), QueueOptions{
		PageDelay: c.cfg.HTTP.PageDelay,
		HidePaid:  c.cfg.Sources.HidePaid,
		Recorder:  c,
		Logger:    c.logger,
		OnChange:  func(job data.DownloadJob) { c.notify(id, job) },
	})
	c.queues[id] = q
	return q, nil
}

// Queues returns the queues created so far, keyed by source id.
func (c *MangaController) Queues() map[string]*DownloadQueue {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*DownloadQueue, len(c.queues))
	for id, q := range c.queues {
		out[id] = q
	}
	return out
}

// QueueIDs lists the ids of created queues in order.
func (c *MangaController) QueueIDs() []string {
	queues := c.Queues()
	ids := make([]string, 0, len(queues))
	for id := range queues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Download enqueues chapters on the source queue and starts its worker.
func (c *MangaController) Download(sourceID, mangaTitle string, chapters ...data.Chapter) (int, error) {
	q, err := c.Queue(sourceID)
	if err != nil {
		return 0, err
	}
	added := q.Enqueue(mangaTitle, chapters...)
	q.Start()
	return added, nil
}

func (c *MangaController) downloader(src sources.Source) *Downloader {
	referer := ""
	if r, ok := src.(sources.Referer); ok {
		referer = r.Referer()
	}
	return NewDownloader(c.store, c.cfg.HTTP.ImageTimeout, referer, c.logger)
}

// Repository returns the library, opening it on first use.
func (c *MangaController) Repository() (Repository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.repo != nil {
		return c.repo, nil
	}
	repo, err := data.OpenRepository(c.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	c.repo = repo
	c.closer = repo.Close
	return repo, nil
}

// UpdateChapterStatus records a finished download in the library.
func (c *MangaController) UpdateChapterStatus(source, chapterKey string, downloaded bool, filePath string) error {
	repo, err := c.Repository()
	if err != nil {
		return err
	}
	return repo.UpdateChapterStatus(source, chapterKey, downloaded, filePath)
}

// AddToLibrary fetches details and chapters of manga and saves both.
func (c *MangaController) AddToLibrary(ctx context.Context, sourceID string, manga data.Manga) (data.Manga, []data.Chapter, error) {
	src, err := c.registry.Get(sourceID)
	if err != nil {
		return manga, nil, err
	}
	repo, err := c.Repository()
	if err != nil {
		return manga, nil, err
	}

	manga, err = src.FetchDetails(ctx, manga)
	if err != nil {
		return manga, nil, fmt.Errorf("failed to fetch details: %w", err)
	}
	manga.Source = src.ID()
	if err := repo.SaveManga(&manga); err != nil {
		return manga, nil, fmt.Errorf("failed to save manga: %w", err)
	}

	chapters, err := src.ListChapters(ctx, manga, c.ChapterOptions())
	if err != nil {
		return manga, nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	for i := range chapters {
		chapters[i].Source = src.ID()
		chapters[i].MangaKey = manga.Key
		if err := repo.SaveChapter(&chapters[i]); err != nil {
			return manga, nil, fmt.Errorf("failed to save chapter %q: %w", chapters[i].Key, err)
		}
	}
	c.logger.Info("added to library", "source", src.ID(), "manga", manga.Key, "chapters", len(chapters))
	return manga, chapters, nil
}

func (c *MangaController) Library() ([]*data.Manga, error) {
	repo, err := c.Repository()
	if err != nil {
		return nil, err
	}
	return repo.ListMangas()
}

type LibraryEntry struct {
	Manga      data.Manga
	Chapters   int
	Downloaded int
}

// LibraryEntries lists the library with saved and downloaded chapter counts.
func (c *MangaController) LibraryEntries() ([]LibraryEntry, error) {
	repo, err := c.Repository()
	if err != nil {
		return nil, err
	}
	mangas, err := repo.ListMangas()
	if err != nil {
		return nil, err
	}
	out := make([]LibraryEntry, 0, len(mangas))
	for _, m := range mangas {
		manga, total, downloaded, err := repo.GetMangaWithChapterCount(m.Source, m.Key)
		if err != nil {
			return nil, err
		}
		if manga == nil {
			continue
		}
		out = append(out, LibraryEntry{Manga: *manga, Chapters: total, Downloaded: downloaded})
	}
	return out, nil
}

// LibraryManga returns a saved manga with its saved chapters.
func (c *MangaController) LibraryManga(source, key string) (data.Manga, []data.Chapter, error) {
	repo, err := c.Repository()
	if err != nil {
		return data.Manga{}, nil, err
	}
	manga, err := repo.GetManga(source, key)
	if err != nil {
		return data.Manga{}, nil, err
	}
	if manga == nil {
		return data.Manga{}, nil, fmt.Errorf("%w: %s %s", ErrNotInLibrary, source, key)
	}
	saved, err := repo.GetChapters(source, key)
	if err != nil {
		return *manga, nil, err
	}
	chapters := make([]data.Chapter, len(saved))
	for i, ch := range saved {
		chapters[i] = *ch
	}
	return *manga, chapters, nil
}

func (c *MangaController) RemoveFromLibrary(source, key string) error {
	repo, err := c.Repository()
	if err != nil {
		return err
	}
	return repo.DeleteManga(source, key)
}

type ExportOptions struct {
	Device    string // Device profile id, empty to keep pages untouched
	WithCover bool
}

// ExportEPub compiles the downloaded chapters of a library manga.
func (c *MangaController) ExportEPub(ctx context.Context, source, key string, opts ExportOptions) (string, error) {
	manga, chapters, err := c.LibraryManga(source, key)
	if err != nil {
		return "", err
	}

	builder := integrations.NewEPubBuilder(c.cfg.DownloadDir, c.store)
	if opts.Device != "" {
		profile, ok := integrations.GetDeviceProfile(opts.Device)
		if !ok {
			return "", fmt.Errorf("%w: unknown device %q", sources.ErrBadArguments, opts.Device)
		}
		builder.SetOptimizer(integrations.NewPageOptimizer(profile))
	}

	if opts.WithCover && manga.CoverURL != "" {
		var referer sources.Source
		if src, err := c.registry.Get(manga.Source); err == nil {
			referer = src
		}
		cover, err := c.coverDownloader(referer).DownloadCover(ctx, manga.CoverURL)
		if err == nil {
			err = builder.SetCover(cover)
		}
		if err != nil {
			c.logger.Warn("skipping cover", "manga", key, "error", err)
		}
	}

	return builder.Export(manga, chapters)
}

func (c *MangaController) coverDownloader(src sources.Source) *Downloader {
	if src == nil {
		return NewDownloader(c.store, c.cfg.HTTP.ImageTimeout, "", c.logger)
	}
	return c.downloader(src)
}

// Close pauses every queue, waits for the chapters in flight to finish
// and be recorded, then closes the library if it was opened here.
func (c *MangaController) Close() error {
	c.mu.Lock()
	queues := make([]*DownloadQueue, 0, len(c.queues))
	for _, q := range c.queues {
		queues = append(queues, q)
	}
	c.mu.Unlock()

	for _, q := range queues {
		q.Pause()
	}
	for _, q := range queues {
		q.Wait()
	}

	c.mu.Lock()
	closer := c.closer
	if closer != nil {
		c.repo, c.closer = nil, nil
	}
	c.mu.Unlock()
	if closer != nil {
		return closer()
	}
	return nil
}
