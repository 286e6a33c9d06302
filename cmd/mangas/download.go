package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kerbaras/mangafetch/pkg/app"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/sources"
	"github.com/spf13/cobra"
)

var (
	chapterRange string
	plain        bool
)

var downloadCmd = &cobra.Command{
	Use:   "download [manga-key]",
	Short: "Download manga chapters",
	Long:  "Queue chapters of a manga for download and follow their progress",
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
		all, err := src.ListChapters(cmd.Context(), manga, controller.ChapterOptions())
		if err != nil {
			return fmt.Errorf("chapters failed: %w", err)
		}
		chapters, err := selectChapters(all, chapterRange)
		if err != nil {
			return err
		}
		if len(chapters) == 0 {
			fmt.Println("No chapters to download.")
			return nil
		}

		if plain {
			controller.OnJobChange(func(source string, job data.DownloadJob) {
				if job.Status >= data.JobCompleted {
					fmt.Printf("%-9s %s (%s)\n", job.Status, job.Chapter.Name, job.Progress)
				}
			})
		}
		added, err := controller.Download(src.ID(), manga.Title, chapters...)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %d chapter(s) of %s\n", added, manga.Title)

		if plain {
			q, err := controller.Queue(src.ID())
			if err != nil {
				return err
			}
			q.Wait()
			stats := q.Stats()
			fmt.Printf("Completed: %d  Failed: %d\n", stats.Completed, stats.Failed)
			return nil
		}

		summary, err := app.NewApp(controller, true).Run()
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&chapterRange, "chapters", "c", "", "Chapter number or range (e.g. 5 or 1-10), all when empty")
	downloadCmd.Flags().BoolVar(&plain, "plain", false, "Print finished chapters instead of the interactive monitor")
}

// selectChapters keeps the chapters whose number falls in expr and sorts
// them by number.
func selectChapters(chapters []data.Chapter, expr string) ([]data.Chapter, error) {
	lo, hi, err := parseRange(expr)
	if err != nil {
		return nil, err
	}
	var out []data.Chapter
	for _, ch := range chapters {
		if ch.Number >= lo && ch.Number <= hi {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func parseRange(expr string) (float64, float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return -1, 1 << 30, nil
	}
	from, to, isRange := strings.Cut(expr, "-")
	lo, err := strconv.ParseFloat(strings.TrimSpace(from), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid chapter range %q", sources.ErrBadArguments, expr)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(to), 64)
	if err != nil || hi < lo {
		return 0, 0, fmt.Errorf("%w: invalid chapter range %q", sources.ErrBadArguments, expr)
	}
	return lo, hi, nil
}
