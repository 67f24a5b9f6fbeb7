package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/designscan/internal/api"
)

var (
	analyzeIndex       bool
	analyzeRaw         bool
	analyzeConcurrency int
	analyzeHint        string
	analyzeNoWatch     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <figma-url>",
	Short: "Analyze every frame of a Figma file",
	Long: `Start an analysis job for a Figma file and follow its progress.

A node-id in the URL limits the analysis to that subtree. The job runs on
the server; pressing Ctrl+C only stops watching.

Examples:
  designscan analyze https://www.figma.com/design/AbC123/Checkout
  designscan analyze "https://www.figma.com/design/AbC123/Checkout?node-id=12-34" --index
  designscan analyze https://www.figma.com/file/AbC123/App --hint "banking app" --no-watch`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeIndex, "index", false, "store analyzed frames in the search index")
	analyzeCmd.Flags().BoolVar(&analyzeRaw, "raw", false, "keep raw model responses in the result")
	analyzeCmd.Flags().IntVarP(&analyzeConcurrency, "concurrency", "c", 0, "frames analyzed at once, 1-10 (0 = server default)")
	analyzeCmd.Flags().StringVar(&analyzeHint, "hint", "", "extra product context for the vision model")
	analyzeCmd.Flags().BoolVar(&analyzeNoWatch, "no-watch", false, "print the job id and return immediately")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeConcurrency < 0 || analyzeConcurrency > 10 {
		return fmt.Errorf("--concurrency must be between 1 and 10")
	}

	job, err := apiClient.StartJob(cmd.Context(), api.StartRequest{
		URL:            args[0],
		Index:          analyzeIndex,
		IncludeRawText: analyzeRaw,
		MaxConcurrency: analyzeConcurrency,
		ContextHint:    analyzeHint,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeNoWatch {
		fmt.Fprintln(out, job.ID)
		return nil
	}
	fmt.Fprintf(out, "Started job %s for file %s\n", job.ID, job.Source.FileKey)
	return followJob(cmd, job)
}
