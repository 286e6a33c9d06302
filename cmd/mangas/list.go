package cmd

import (
	"fmt"

	"github.com/kerbaras/mangafetch/pkg/app/components"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all manga in your library",
	Long:  "Display all manga in your library in a formatted table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := controller.LibraryEntries()
		if err != nil {
			return err
		}

		if len(entries) > 0 {
			fmt.Printf("\nLibrary (%d manga)\n\n", len(entries))
		}
		fmt.Println(components.RenderLibrary(entries))
		return nil
	},
}
