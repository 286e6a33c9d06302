package data

import (
	"errors"
	"fmt"
)

// MangaStatus is the publication status reported by a source.
type MangaStatus int

const (
	StatusUnknown            MangaStatus = 0
	StatusOngoing            MangaStatus = 1
	StatusCompleted          MangaStatus = 2
	StatusLicensed           MangaStatus = 3
	StatusPublishingFinished MangaStatus = 4
	StatusCancelled          MangaStatus = 5
	StatusOnHiatus           MangaStatus = 6
	StatusRecommends         MangaStatus = 69
)

func (s MangaStatus) String() string {
	switch s {
	case StatusOngoing:
		return "Ongoing"
	case StatusCompleted:
		return "Completed"
	case StatusLicensed:
		return "Licensed"
	case StatusPublishingFinished:
		return "Publishing finished"
	case StatusCancelled:
		return "Cancelled"
	case StatusOnHiatus:
		return "On hiatus"
	case StatusRecommends:
		return "Recommends"
	default:
		return "Unknown"
	}
}

type Manga struct {
	Key            string // Source-scoped identifier, usually a path under the source base URL
	Source         string
	Title          string
	Artist         string
	Author         string
	Description    string
	Genres         []string
	Status         MangaStatus
	CoverURL       string
	UpdateStrategy int
	Initialized    bool // Details were fetched at least once
}

// Merge applies the populated fields of update on top of m.
// Empty strings, empty genre lists and an unknown status never blank
// a value m already has.
func (m Manga) Merge(update Manga) Manga {
	out := m
	if update.Key != "" {
		out.Key = update.Key
	}
	if update.Source != "" {
		out.Source = update.Source
	}
	if update.Title != "" {
		out.Title = update.Title
	}
	if update.Artist != "" {
		out.Artist = update.Artist
	}
	if update.Author != "" {
		out.Author = update.Author
	}
	if update.Description != "" {
		out.Description = update.Description
	}
	if len(update.Genres) > 0 {
		out.Genres = append([]string(nil), update.Genres...)
	}
	if update.Status != StatusUnknown {
		out.Status = update.Status
	}
	if update.CoverURL != "" {
		out.CoverURL = update.CoverURL
	}
	if update.UpdateStrategy != 0 {
		out.UpdateStrategy = update.UpdateStrategy
	}
	out.Initialized = true
	return out
}

type Chapter struct {
	Key        string
	Source     string // Adapter id, set when saved to the library
	MangaKey   string
	Name       string
	DateUpload int64   // Unix seconds, 0 when unknown
	Number     float64 // Supports fractional numbering such as 10.5
	Scanlator  string
	Downloaded bool
	FilePath   string // Path to downloaded images directory
}

// PageStatus tracks a page through resolution and download.
type PageStatus int

const (
	PageQueued PageStatus = iota
	PageLoading
	PageDownloading
	PageReady
	PageError
)

func (s PageStatus) String() string {
	switch s {
	case PageQueued:
		return "queued"
	case PageLoading:
		return "loading"
	case PageDownloading:
		return "downloading"
	case PageReady:
		return "ready"
	case PageError:
		return "error"
	default:
		return fmt.Sprintf("PageStatus(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s PageStatus) Terminal() bool {
	return s == PageReady || s == PageError
}

var ErrInvalidTransition = errors.New("invalid page status transition")

type Page struct {
	Index    int // 0-based reading order
	URL      string
	ImageURL string
	Status   PageStatus
	Progress int // 0-100
}

func NewPage(index int, url string) Page {
	return Page{Index: index, URL: url, Status: PageQueued}
}

// Advance moves the page forward. Statuses only move forward, and any
// non-terminal page may move to PageError.
func (p *Page) Advance(next PageStatus) error {
	if p.Status.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, p.Status)
	}
	if next != PageError && next <= p.Status {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	if next == PageReady {
		p.Progress = 100
	}
	return nil
}

// Filter is a query refinement understood by a specific source.
type Filter interface {
	Name() string
}

type FilterList []Filter

type JobStatus int

const (
	JobQueued JobStatus = iota
	JobDownloading
	JobCompleted
	JobPartial
	JobFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobQueued:
		return "Queued"
	case JobDownloading:
		return "Downloading"
	case JobCompleted:
		return "Completed"
	case JobPartial:
		return "Partial"
	case JobFailed:
		return "Failed"
	default:
		return fmt.Sprintf("JobStatus(%d)", int(s))
	}
}

func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type DownloadJob struct {
	ID         string
	MangaTitle string
	Chapter    Chapter
	Status     JobStatus
	Progress   string // "done/total", or an error summary once Failed
}
