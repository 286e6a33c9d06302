package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kerbaras/mangafetch/pkg/app/styles"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/spf13/cobra"
)

var detailsCmd = &cobra.Command{
	Use:   "details [manga-key]",
	Short: "Show manga details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := controller.Source(sourceID)
		if err != nil {
			return err
		}
		manga, err := src.FetchDetails(cmd.Context(), data.Manga{Key: args[0]})
		if err != nil {
			return fmt.Errorf("details failed: %w", err)
		}

		fmt.Println(styles.TitleStyle.Render(manga.Title))
		field := func(name, value string) {
			if value != "" {
				fmt.Printf("%s %s\n", styles.MutedStyle.Render(name+":"), value)
			}
		}
		field("Author", manga.Author)
		field("Artist", manga.Artist)
		field("Status", manga.Status.String())
		field("Genres", data.JoinGenres(manga.Genres))
		field("Cover", manga.CoverURL)
		if manga.Description != "" {
			fmt.Println()
			fmt.Println(manga.Description)
		}
		return nil
	},
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters [manga-key]",
	Short: "List chapters of a manga",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := controller.Source(sourceID)
		if err != nil {
			return err
		}
		chapters, err := src.ListChapters(cmd.Context(), data.Manga{Key: args[0]}, controller.ChapterOptions())
		if err != nil {
			return fmt.Errorf("chapters failed: %w", err)
		}
		if len(chapters) == 0 {
			fmt.Println("No chapters found.")
			return nil
		}

		t := newTable("Number", "Name", "Uploaded", "Key")
		for _, ch := range chapters {
			uploaded := ""
			if ch.DateUpload > 0 {
				uploaded = time.Unix(ch.DateUpload, 0).Format("2006-01-02")
			}
			t.Row(strconv.FormatFloat(ch.Number, 'f', -1, 64), truncateString(ch.Name, 40), uploaded, ch.Key)
		}
		fmt.Println(t)
		return nil
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages [chapter-key]",
	Short: "Print the image URLs of a chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := controller.Source(sourceID)
		if err != nil {
			return err
		}
		pages, err := src.ResolvePages(cmd.Context(), data.Chapter{Key: args[0]}, controller.ChapterOptions())
		if err != nil {
			return fmt.Errorf("pages failed: %w", err)
		}
		for _, p := range pages {
			fmt.Println(p.ToPageURL().URL)
		}
		return nil
	},
}
