package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kerbaras/mangafetch/pkg/app/styles"
	"github.com/kerbaras/mangafetch/pkg/data"
)

type trackedJob struct {
	source string
	job    data.DownloadJob
}

// JobTracker keeps the latest state of download jobs in arrival order.
type JobTracker struct {
	order []string
	jobs  map[string]trackedJob
	width int
}

func NewJobTracker(width int) *JobTracker {
	return &JobTracker{
		jobs:  make(map[string]trackedJob),
		width: width,
	}
}

func (p *JobTracker) SetWidth(width int) {
	p.width = width
}

func (p *JobTracker) Update(source string, job data.DownloadJob) {
	if _, ok := p.jobs[job.ID]; !ok {
		p.order = append(p.order, job.ID)
	}
	p.jobs[job.ID] = trackedJob{source: source, job: job}
}

// Sync replaces the jobs of source with a queue snapshot. Jobs missing
// from the snapshot were cleared and are dropped.
func (p *JobTracker) Sync(source string, jobs []data.DownloadJob) {
	present := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		present[job.ID] = true
		p.Update(source, job)
	}
	kept := p.order[:0]
	for _, id := range p.order {
		t := p.jobs[id]
		if t.source == source && !present[id] {
			delete(p.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	p.order = kept
}

func (p *JobTracker) Len() int {
	return len(p.order)
}

// Pending counts Queued and Downloading jobs.
func (p *JobTracker) Pending() int {
	n := 0
	for _, t := range p.jobs {
		if t.job.Status == data.JobQueued || t.job.Status == data.JobDownloading {
			n++
		}
	}
	return n
}

func (p *JobTracker) Counts() map[data.JobStatus]int {
	out := make(map[data.JobStatus]int)
	for _, t := range p.jobs {
		out[t.job.Status]++
	}
	return out
}

func (p *JobTracker) View() string {
	if len(p.order) == 0 {
		return styles.MutedStyle.Render("No downloads queued")
	}

	var b strings.Builder
	for _, id := range p.order {
		t := p.jobs[id]
		name := t.job.Chapter.Name
		if name == "" {
			name = t.job.Chapter.Key
		}
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("[%s] %s - %s", t.source, t.job.MangaTitle, name)))
		b.WriteString("\n")

		status := styles.StatusStyle(t.job.Status).Render(t.job.Status.String())
		if done, total, ok := ParseProgress(t.job.Progress); ok && total > 0 {
			b.WriteString(renderProgressBar(done, total, p.width-4))
			b.WriteString("\n")
			b.WriteString(fmt.Sprintf("%s %s", status, styles.MutedStyle.Render(fmt.Sprintf("(%d/%d pages)", done, total))))
		} else if t.job.Status == data.JobFailed && t.job.Progress != "" {
			b.WriteString(fmt.Sprintf("%s %s", status, styles.StatusError.Render(t.job.Progress)))
		} else {
			b.WriteString(status)
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ParseProgress reads a "done/total" progress string.
func ParseProgress(s string) (done, total int, ok bool) {
	a, b, found := strings.Cut(s, "/")
	if !found {
		return 0, 0, false
	}
	done, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	total, err = strconv.Atoi(b)
	if err != nil {
		return 0, 0, false
	}
	return done, total, true
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}
