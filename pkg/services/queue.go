package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/sources"
	"golang.org/x/time/rate"
)

const (
	DefaultPageDelay = 100 * time.Millisecond
	errorSummaryLen  = 30
)

// PageFetcher stores one resolved page image of a chapter.
type PageFetcher interface {
	FetchPage(ctx context.Context, mangaTitle string, chapter data.Chapter, page data.Page) error
	ChapterDir(mangaTitle string, chapter data.Chapter) string
}

// ChapterRecorder is told about chapters whose pages were all stored.
type ChapterRecorder interface {
	UpdateChapterStatus(source, chapterKey string, downloaded bool, filePath string) error
}

type QueueOptions struct {
	PageDelay time.Duration // Spacing between page fetches. Zero means DefaultPageDelay, negative means none
	HidePaid  bool
	Recorder  ChapterRecorder
	Logger    *slog.Logger
	OnChange  func(data.DownloadJob) // Called outside the queue lock
}

// QueueStats counts jobs by status. Partial jobs count as failed.
type QueueStats struct {
	Queued      int `json:"queued"`
	Downloading int `json:"downloading"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

// DownloadQueue downloads chapters of one source, one job at a time.
type DownloadQueue struct {
	source  sources.Source
	fetcher PageFetcher
	opts    QueueOptions
	logger  *slog.Logger

	mu      sync.Mutex
	jobs    []*data.DownloadJob
	running bool
	paused  bool
	idle    chan struct{}
}

func NewDownloadQueue(source sources.Source, fetcher PageFetcher, opts QueueOptions) *DownloadQueue {
	if opts.PageDelay == 0 {
		opts.PageDelay = DefaultPageDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DownloadQueue{
		source:  source,
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.With("component", "queue", "source", source.ID()),
	}
}

// Enqueue adds a Queued job for every chapter whose key is not in the
// queue yet, whatever that job's status. It returns the number added
// and never starts the worker.
func (q *DownloadQueue) Enqueue(mangaTitle string, chapters ...data.Chapter) int {
	q.mu.Lock()
	var added []data.DownloadJob
	for _, chapter := range chapters {
		if q.contains(chapter.Key) {
			continue
		}
		job := &data.DownloadJob{
			ID:         uuid.NewString(),
			MangaTitle: mangaTitle,
			Chapter:    chapter,
			Status:     data.JobQueued,
			Progress:   "0/0",
		}
		q.jobs = append(q.jobs, job)
		added = append(added, *job)
	}
	q.mu.Unlock()

	for _, job := range added {
		q.notify(job)
	}
	return len(added)
}

func (q *DownloadQueue) contains(key string) bool {
	for _, job := range q.jobs {
		if job.Chapter.Key == key {
			return true
		}
	}
	return false
}

// Start launches the worker and lifts a pending Pause. It returns false
// when a worker is already running; that worker then keeps going.
func (q *DownloadQueue) Start() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	if q.running {
		return false
	}
	q.running = true
	q.idle = make(chan struct{})
	go q.work(q.idle)
	return true
}

// Pause stops the worker once the current job is finished.
func (q *DownloadQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

func (q *DownloadQueue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Wait blocks until the worker is idle.
func (q *DownloadQueue) Wait() {
	q.mu.Lock()
	idle, running := q.idle, q.running
	q.mu.Unlock()
	if running {
		<-idle
	}
}

func (q *DownloadQueue) Snapshot() []data.DownloadJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]data.DownloadJob, len(q.jobs))
	for i, job := range q.jobs {
		out[i] = *job
	}
	return out
}

func (q *DownloadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *DownloadQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s QueueStats
	for _, job := range q.jobs {
		switch job.Status {
		case data.JobQueued:
			s.Queued++
		case data.JobDownloading:
			s.Downloading++
		case data.JobCompleted:
			s.Completed++
		case data.JobPartial, data.JobFailed:
			s.Failed++
		}
	}
	return s
}

// ClearCompleted drops Completed jobs and returns how many were removed.
func (q *DownloadQueue) ClearCompleted() int {
	return q.remove(func(s data.JobStatus) bool { return s == data.JobCompleted })
}

// ClearFailed drops Failed and Partial jobs.
func (q *DownloadQueue) ClearFailed() int {
	return q.remove(func(s data.JobStatus) bool { return s == data.JobFailed || s == data.JobPartial })
}

func (q *DownloadQueue) remove(match func(data.JobStatus) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.jobs[:0]
	removed := 0
	for _, job := range q.jobs {
		if match(job.Status) {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept
	return removed
}

func (q *DownloadQueue) work(idle chan struct{}) {
	defer close(idle)

	for {
		job, ok := q.next()
		if !ok {
			return
		}
		q.run(job)
	}
}

// next claims the first Queued job in collection order. When there is
// none, or the queue is paused, the worker is marked idle under the same
// lock so a concurrent Start can launch a new one.
func (q *DownloadQueue) next() (data.DownloadJob, bool) {
	q.mu.Lock()
	if q.paused {
		q.running = false
		q.mu.Unlock()
		return data.DownloadJob{}, false
	}
	var claimed *data.DownloadJob
	for _, job := range q.jobs {
		if job.Status == data.JobQueued {
			job.Status = data.JobDownloading
			claimed = job
			break
		}
	}
	if claimed == nil {
		q.running = false
		q.mu.Unlock()
		return data.DownloadJob{}, false
	}
	job := *claimed
	q.mu.Unlock()

	q.notify(job)
	return job, true
}

func (q *DownloadQueue) run(job data.DownloadJob) {
	ctx := context.Background()
	logger := q.logger.With("job", job.ID, "chapter", job.Chapter.Key)

	pages, err := q.source.ResolvePages(ctx, job.Chapter, sources.ChapterOptions{HidePaid: q.opts.HidePaid})
	if err != nil {
		logger.Error("failed to resolve pages", "error", err)
		q.update(job.ID, data.JobFailed, summarize(err))
		return
	}

	total := len(pages)
	if total == 0 {
		logger.Warn("chapter has no pages")
	}

	// rate.Every turns a negative delay into an unlimited rate.
	limiter := rate.NewLimiter(rate.Every(q.opts.PageDelay), 1)

	done := 0
	for i, page := range pages {
		q.update(job.ID, data.JobDownloading, fmt.Sprintf("%d/%d", i+1, total))
		if err := limiter.Wait(ctx); err != nil {
			logger.Error("page throttle failed", "error", err)
		}
		if err := q.fetcher.FetchPage(ctx, job.MangaTitle, job.Chapter, page); err != nil {
			logger.Warn("failed to fetch page", "page", page.Index, "error", err)
			continue
		}
		done++
	}

	switch {
	case done == total:
		q.update(job.ID, data.JobCompleted, fmt.Sprintf("%d/%d", total, total))
		q.record(logger, job)
	case done > 0:
		q.update(job.ID, data.JobPartial, fmt.Sprintf("%d/%d", done, total))
	default:
		q.update(job.ID, data.JobFailed, fmt.Sprintf("0/%d", total))
	}
	logger.Info("chapter finished", "done", done, "total", total)
}

func (q *DownloadQueue) record(logger *slog.Logger, job data.DownloadJob) {
	if q.opts.Recorder == nil {
		return
	}
	dir := q.fetcher.ChapterDir(job.MangaTitle, job.Chapter)
	if err := q.opts.Recorder.UpdateChapterStatus(q.source.ID(), job.Chapter.Key, true, dir); err != nil {
		logger.Warn("failed to record downloaded chapter", "error", err)
	}
}

func (q *DownloadQueue) update(id string, status data.JobStatus, progress string) {
	q.mu.Lock()
	var changed *data.DownloadJob
	for _, job := range q.jobs {
		if job.ID == id {
			job.Status = status
			job.Progress = progress
			changed = job
			break
		}
	}
	var snapshot data.DownloadJob
	if changed != nil {
		snapshot = *changed
	}
	q.mu.Unlock()

	if changed != nil {
		q.notify(snapshot)
	}
}

func (q *DownloadQueue) notify(job data.DownloadJob) {
	if q.opts.OnChange != nil {
		q.opts.OnChange(job)
	}
}

// summarize keeps the first runes of an error message for the progress column.
func summarize(err error) string {
	r := []rune(err.Error())
	if len(r) > errorSummaryLen {
		r = r[:errorSummaryLen]
	}
	return string(r)
}
