package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kerbaras/mangafetch/pkg/app/styles"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/sources"
	"github.com/spf13/cobra"
)

var (
	page    int
	filters sources.FilterOptions
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available sources",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range controller.Sources() {
			fmt.Printf("%-10s %s\n", s.ID(), s.Name())
		}
	},
}

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "List popular manga of a source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := controller.Source(sourceID)
		if err != nil {
			return err
		}
		results, err := src.ListPopular(cmd.Context(), page)
		if err != nil {
			return fmt.Errorf("popular failed: %w", err)
		}
		printMangas(results)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search for manga",
	Long:  "Search a source and display results in a table. Filters are understood by lxmanga.",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := controller.Source(sourceID)
		if err != nil {
			return err
		}
		list, err := filters.FilterList()
		if err != nil {
			return err
		}
		results, err := src.Search(cmd.Context(), page, strings.Join(args, " "), list)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		printMangas(results)
		return nil
	},
}

func init() {
	popularCmd.Flags().IntVarP(&page, "page", "p", 1, "Result page")
	searchCmd.Flags().IntVarP(&page, "page", "p", 1, "Result page")
	searchCmd.Flags().StringVar(&filters.Sort, "sort", "", "updated, created, oldest, views, name or -name")
	searchCmd.Flags().StringVar(&filters.Status, "status", "", "all, ongoing or completed")
	searchCmd.Flags().StringVar(&filters.Author, "author", "", "Author name")
	searchCmd.Flags().StringSliceVar(&filters.Genres, "genre", nil, "Genres to include, by name or id")
	searchCmd.Flags().StringSliceVar(&filters.Exclude, "exclude", nil, "Genres to exclude, by name or id")
}

func newTable(headers ...string) *table.Table {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := styles.TableHeaderStyle.UnsetBorderBottom().Padding(0, 1)

	return table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func printMangas(results []data.Manga) {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}
	t := newTable("#", "Title", "Key")
	for i, manga := range results {
		t.Row(strconv.Itoa(i+1), truncateString(manga.Title, 58), manga.Key)
	}
	fmt.Println(t)
}
