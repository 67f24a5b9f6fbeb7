package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export the frame specs of a completed job",
	Long: `Export the aggregated result of a completed job as JSON, YAML or Markdown.

Examples:
  designscan export abc123
  designscan export abc123 --format yaml -o checkout.yaml
  designscan export abc123 --format markdown -o checkout.md`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", FormatJSON, "output format: json, yaml or markdown")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	job, err := apiClient.GetJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if job.Result == nil {
		return fmt.Errorf("job %s has no result (status %s)", job.ID, job.Status)
	}

	var buf bytes.Buffer
	if err := writeExport(&buf, job.Result, exportFormat); err != nil {
		return fmt.Errorf("render %s: %w", exportFormat, err)
	}

	if exportOutput == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(exportOutput, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d frames to %s\n", len(job.Result.Frames), exportOutput)
	}
	return nil
}
