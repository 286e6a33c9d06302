package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/services"
)

type App struct {
	controller   *services.MangaController
	exitWhenDone bool
}

func NewApp(controller *services.MangaController, exitWhenDone bool) *App {
	return &App{controller: controller, exitWhenDone: exitWhenDone}
}

// Run shows the download monitor and returns the final job summary.
func (a *App) Run() (string, error) {
	monitor := NewMonitor(a.controller, a.exitWhenDone)
	p := tea.NewProgram(monitor, tea.WithAltScreen())

	a.controller.OnJobChange(func(source string, job data.DownloadJob) {
		p.Send(JobMsg{Source: source, Job: job})
	})
	defer a.controller.OnJobChange(nil)

	if _, err := p.Run(); err != nil {
		return "", err
	}
	monitor.sync()
	return monitor.Summary(), nil
}
