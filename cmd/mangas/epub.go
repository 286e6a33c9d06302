package cmd

import (
	"fmt"

	"github.com/kerbaras/mangafetch/pkg/integrations"
	"github.com/kerbaras/mangafetch/pkg/services"
	"github.com/spf13/cobra"
)

var (
	exportOpts  services.ExportOptions
	listDevices bool
)

var epubCmd = &cobra.Command{
	Use:   "epub [manga-key]",
	Short: "Generate an EPUB from downloaded chapters",
	Long:  "Compile the downloaded chapters of a library manga into an EPUB, optionally resized for a reading device",
	Args: func(cmd *cobra.Command, args []string) error {
		if listDevices {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if listDevices {
			for _, line := range integrations.ListDevices() {
				fmt.Println(line)
			}
			return nil
		}
		path, err := controller.ExportEPub(cmd.Context(), sourceID, args[0], exportOpts)
		if err != nil {
			return fmt.Errorf("EPUB generation failed: %w", err)
		}
		fmt.Printf("EPUB created: %s\n", path)
		return nil
	},
}

func init() {
	epubCmd.Flags().StringVarP(&exportOpts.Device, "device", "d", "", "Resize pages for a device profile")
	epubCmd.Flags().BoolVar(&exportOpts.WithCover, "cover", true, "Download and embed the cover image")
	epubCmd.Flags().BoolVar(&listDevices, "list-devices", false, "List device profiles")
}
