package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangafetch/pkg/app/styles"
	"github.com/kerbaras/mangafetch/pkg/services"
)

const titleWidth = 40

func libraryColumns() []table.Column {
	return []table.Column{
		{Title: "Title", Width: titleWidth},
		{Title: "Source", Width: 10},
		{Title: "Status", Width: 12},
		{Title: "Chapters", Width: 10},
		{Title: "Key", Width: 40},
	}
}

func LibraryRows(entries []services.LibraryEntry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, table.Row{
			truncate(e.Manga.Title, titleWidth),
			e.Manga.Source,
			e.Manga.Status.String(),
			fmt.Sprintf("%d/%d", e.Downloaded, e.Chapters),
			e.Manga.Key,
		})
	}
	return rows
}

// RenderLibrary draws the library as a static table.
func RenderLibrary(entries []services.LibraryEntry) string {
	if len(entries) == 0 {
		return styles.MutedStyle.Render("Library is empty. Use 'mangas add' to add manga.")
	}
	t := table.New(
		table.WithColumns(libraryColumns()),
		table.WithRows(LibraryRows(entries)),
		table.WithHeight(len(entries)+1),
		table.WithFocused(false),
	)
	s := table.DefaultStyles()
	s.Header = styles.TableHeaderStyle.Padding(0, 1)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t.View()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
