package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangafetch/pkg/app/components"
	"github.com/kerbaras/mangafetch/pkg/app/styles"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/services"
)

const syncInterval = 500 * time.Millisecond

// QueueSet is the part of the controller the monitor watches.
type QueueSet interface {
	Queues() map[string]*services.DownloadQueue
}

// JobMsg carries a single job change pushed by a queue.
type JobMsg struct {
	Source string
	Job    data.DownloadJob
}

type syncMsg time.Time

// Monitor shows the download queues until the user quits or, when
// exitWhenDone is set, until every worker is idle.
type Monitor struct {
	queues       QueueSet
	tracker      *components.JobTracker
	spinner      spinner.Model
	exitWhenDone bool
	running      bool
	notice       string
	width        int
}

func NewMonitor(queues QueueSet, exitWhenDone bool) *Monitor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.StatusDownloading

	return &Monitor{
		queues:       queues,
		tracker:      components.NewJobTracker(60),
		spinner:      s,
		exitWhenDone: exitWhenDone,
		width:        64,
	}
}

func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(syncInterval, func(t time.Time) tea.Msg {
		return syncMsg(t)
	})
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.tracker.SetWidth(msg.Width - 4)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			for _, q := range m.queues.Queues() {
				q.Pause()
			}
			m.notice = "Pausing after the current chapter"
		case "s":
			started := 0
			for _, q := range m.queues.Queues() {
				if q.Start() {
					started++
				}
			}
			m.notice = fmt.Sprintf("Started %d queue(s)", started)
		case "c":
			m.notice = fmt.Sprintf("Cleared %d completed", m.clear((*services.DownloadQueue).ClearCompleted))
		case "f":
			m.notice = fmt.Sprintf("Cleared %d failed", m.clear((*services.DownloadQueue).ClearFailed))
		}

	case JobMsg:
		m.tracker.Update(msg.Source, msg.Job)

	case syncMsg:
		m.sync()
		if m.exitWhenDone && !m.running {
			return m, tea.Quit
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// sync reloads every queue snapshot, which also picks up cleared jobs
// and changes made outside the monitor.
func (m *Monitor) sync() {
	m.running = false
	for id, q := range m.queues.Queues() {
		m.tracker.Sync(id, q.Snapshot())
		if q.Running() {
			m.running = true
		}
	}
}

func (m *Monitor) clear(fn func(*services.DownloadQueue) int) int {
	removed := 0
	for _, q := range m.queues.Queues() {
		removed += fn(q)
	}
	m.sync()
	return removed
}

func (m *Monitor) View() string {
	var b strings.Builder

	title := "Downloads"
	if m.running {
		title = m.spinner.View() + " " + title
	}
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.tracker.View())
	b.WriteString("\n\n")
	b.WriteString(m.Summary())

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(styles.SubtitleStyle.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("p: pause • s: start • c: clear completed • f: clear failed • q: quit"))
	return b.String()
}

// Summary counts tracked jobs by status.
func (m *Monitor) Summary() string {
	counts := m.tracker.Counts()
	statuses := make([]data.JobStatus, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, styles.StatusStyle(s).Render(fmt.Sprintf("%s: %d", s, counts[s])))
	}
	if len(parts) == 0 {
		return styles.MutedStyle.Render("Nothing to do")
	}
	return strings.Join(parts, "  ")
}
