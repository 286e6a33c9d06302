package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kerbaras/mangafetch/pkg/config"
	"github.com/kerbaras/mangafetch/pkg/services"
	"github.com/spf13/cobra"
)

var (
	configPath string
	sourceID   string
	logLevel   string

	cfg        config.Config
	logger     *slog.Logger
	controller *services.MangaController
)

var rootCmd = &cobra.Command{
	Use:           "mangas",
	Short:         "Fetch manga from web sources",
	Long:          "Browse manga sources, download chapters and compile them into device-ready EPUBs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			if _, err := config.ParseLevel(logLevel); err != nil {
				return err
			}
			cfg.LogLevel = logLevel
		}
		logger = config.NewLogger(cfg.LogLevel, os.Stderr)

		controller, err = services.NewMangaController(cfg, logger)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if controller == nil {
			return nil
		}
		return controller.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&sourceID, "source", "s", "xxmanhwa", "Source id (see 'mangas sources')")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")

	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(popularCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(epubCmd)
	rootCmd.AddCommand(serveCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func truncateString(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
