package cli

import (
	"github.com/spf13/cobra"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect analysis jobs",
	Long: `List recent analysis jobs or inspect a specific job by ID.

Examples:
  designscan jobs           # List jobs, newest first
  designscan jobs abc123    # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "max jobs to list")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		job, err := apiClient.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		printJob(out, job)
		return nil
	}

	list, err := apiClient.ListJobs(ctx, jobsLimit)
	if err != nil {
		return err
	}
	printJobTable(out, list)
	return nil
}
