package cmd

import (
	"fmt"

	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [manga-key]",
	Short: "Add a manga to your library",
	Long:  "Fetch details and chapters of a manga and save them to your library (metadata only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manga, chapters, err := controller.AddToLibrary(cmd.Context(), sourceID, data.Manga{Key: args[0]})
		if err != nil {
			return err
		}
		fmt.Printf("Added '%s' to library with %d chapters\n", manga.Title, len(chapters))
		fmt.Printf("To download chapters, use: mangas download -s %s %q\n", manga.Source, manga.Key)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [manga-key]",
	Short: "Remove a manga and its chapters from your library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, _, err := controller.LibraryManga(sourceID, args[0]); err != nil {
			return err
		}
		if err := controller.RemoveFromLibrary(sourceID, args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}
