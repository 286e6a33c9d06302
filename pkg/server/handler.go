package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/services"
	"github.com/kerbaras/mangafetch/pkg/sources"
)

type Handler struct {
	controller *services.MangaController
	logger     *slog.Logger
}

func NewHandler(controller *services.MangaController, logger *slog.Logger) *Handler {
	return &Handler{controller: controller, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sources", h.listSources)

	src := rg.Group("/sources/:id")
	src.GET("/popular", h.popular)   // ?page=
	src.GET("/search", h.search)     // ?q=&page=&sort=&status=&author=&genres=&exclude=
	src.GET("/details", h.details)   // ?key=
	src.GET("/chapters", h.chapters) // ?key=
	src.GET("/pages", h.pages)       // ?key=

	rg.GET("/downloads", h.listDownloads)
	rg.POST("/downloads", h.enqueue)
	rg.POST("/downloads/start", h.start) // ?source=
	rg.POST("/downloads/pause", h.pause) // ?source=
	rg.DELETE("/downloads/completed", h.clearCompleted)
	rg.DELETE("/downloads/failed", h.clearFailed)

	rg.GET("/library", h.library)
	rg.POST("/library", h.addToLibrary)
}

type sourceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type jobInfo struct {
	ID         string           `json:"id"`
	MangaTitle string           `json:"mangaTitle"`
	Chapter    data.ChapterInfo `json:"chapter"`
	Status     data.JobStatus   `json:"status"`
	Progress   string           `json:"progress"`
}

type queueInfo struct {
	Running bool                `json:"running"`
	Stats   services.QueueStats `json:"stats"`
	Jobs    []jobInfo           `json:"jobs"`
}

type enqueueRequest struct {
	Source     string             `json:"source" binding:"required"`
	MangaTitle string             `json:"mangaTitle" binding:"required"`
	Chapters   []data.ChapterInfo `json:"chapters" binding:"required,min=1"`
}

type addRequest struct {
	Source string         `json:"source" binding:"required"`
	Manga  data.MangaInfo `json:"manga"`
}

func (h *Handler) listSources(c *gin.Context) {
	out := []sourceInfo{}
	for _, s := range h.controller.Sources() {
		out = append(out, sourceInfo{ID: s.ID(), Name: s.Name()})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) source(c *gin.Context) (sources.Source, bool) {
	src, err := h.controller.Source(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return src, true
}

func (h *Handler) popular(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	page, ok := h.page(c)
	if !ok {
		return
	}
	mangas, err := src.ListPopular(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mangaInfos(mangas))
}

func (h *Handler) search(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	page, ok := h.page(c)
	if !ok {
		return
	}
	filters, err := sources.FilterOptions{
		Sort:    c.Query("sort"),
		Status:  c.Query("status"),
		Author:  c.Query("author"),
		Genres:  queryList(c, "genres"),
		Exclude: queryList(c, "exclude"),
	}.FilterList()
	if err != nil {
		h.fail(c, err)
		return
	}
	mangas, err := src.Search(c.Request.Context(), page, c.Query("q"), filters)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mangaInfos(mangas))
}

func (h *Handler) details(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	key, ok := h.key(c)
	if !ok {
		return
	}
	manga, err := src.FetchDetails(c.Request.Context(), data.Manga{Key: key})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, manga.ToMangaInfo())
}

func (h *Handler) chapters(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	key, ok := h.key(c)
	if !ok {
		return
	}
	chapters, err := src.ListChapters(c.Request.Context(), data.Manga{Key: key}, h.controller.ChapterOptions())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]data.ChapterInfo, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, ch.ToChapterInfo())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) pages(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	key, ok := h.key(c)
	if !ok {
		return
	}
	pages, err := src.ResolvePages(c.Request.Context(), data.Chapter{Key: key}, h.controller.ChapterOptions())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]data.PageURL, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.ToPageURL())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) listDownloads(c *gin.Context) {
	out := map[string]queueInfo{}
	for id, q := range h.controller.Queues() {
		jobs := []jobInfo{}
		for _, job := range q.Snapshot() {
			jobs = append(jobs, jobInfo{
				ID:         job.ID,
				MangaTitle: job.MangaTitle,
				Chapter:    job.Chapter.ToChapterInfo(),
				Status:     job.Status,
				Progress:   job.Progress,
			})
		}
		out[id] = queueInfo{Running: q.Running(), Stats: q.Stats(), Jobs: jobs}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chapters := make([]data.Chapter, 0, len(req.Chapters))
	for _, info := range req.Chapters {
		if info.Key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chapter key is required"})
			return
		}
		chapters = append(chapters, data.ChapterFromInfo(info))
	}
	added, err := h.controller.Download(req.Source, req.MangaTitle, chapters...)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"added": added})
}

// queues returns the queue named by ?source=, or every created queue.
func (h *Handler) queues(c *gin.Context) ([]*services.DownloadQueue, bool) {
	if id := c.Query("source"); id != "" {
		q, err := h.controller.Queue(id)
		if err != nil {
			h.fail(c, err)
			return nil, false
		}
		return []*services.DownloadQueue{q}, true
	}
	var out []*services.DownloadQueue
	for _, q := range h.controller.Queues() {
		out = append(out, q)
	}
	return out, true
}

func (h *Handler) start(c *gin.Context) {
	queues, ok := h.queues(c)
	if !ok {
		return
	}
	started := 0
	for _, q := range queues {
		if q.Start() {
			started++
		}
	}
	c.JSON(http.StatusOK, gin.H{"started": started})
}

func (h *Handler) pause(c *gin.Context) {
	queues, ok := h.queues(c)
	if !ok {
		return
	}
	for _, q := range queues {
		q.Pause()
	}
	c.JSON(http.StatusOK, gin.H{"paused": len(queues)})
}

func (h *Handler) clearCompleted(c *gin.Context) {
	h.clear(c, (*services.DownloadQueue).ClearCompleted)
}

func (h *Handler) clearFailed(c *gin.Context) {
	h.clear(c, (*services.DownloadQueue).ClearFailed)
}

func (h *Handler) clear(c *gin.Context, fn func(*services.DownloadQueue) int) {
	queues, ok := h.queues(c)
	if !ok {
		return
	}
	removed := 0
	for _, q := range queues {
		removed += fn(q)
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handler) library(c *gin.Context) {
	mangas, err := h.controller.Library()
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]data.MangaInfo, 0, len(mangas))
	for _, m := range mangas {
		out = append(out, m.ToMangaInfo())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) addToLibrary(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Manga.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "manga key is required"})
		return
	}
	manga, chapters, err := h.controller.AddToLibrary(c.Request.Context(), req.Source, data.MangaFromInfo(req.Manga))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"manga": manga.ToMangaInfo(), "chapters": len(chapters)})
}

func (h *Handler) page(c *gin.Context) (int, bool) {
	s := c.DefaultQuery("page", "1")
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return 0, false
	}
	return page, true
}

func (h *Handler) key(c *gin.Context) (string, bool) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return "", false
	}
	return key, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sources.ErrBadArguments):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotInLibrary):
		return http.StatusNotFound
	case errors.Is(err, sources.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, sources.ErrProtocolExtraction), errors.Is(err, sources.ErrUpstreamResponse):
		return http.StatusBadGateway
	case errors.Is(err, sources.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mangaInfos(mangas []data.Manga) []data.MangaInfo {
	out := make([]data.MangaInfo, 0, len(mangas))
	for _, m := range mangas {
		out = append(out, m.ToMangaInfo())
	}
	return out
}

// queryList accepts genres=a,b as well as genres=a&genres=b.
func queryList(c *gin.Context, name string) []string {
	var out []string
	for _, v := range c.QueryArray(name) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
