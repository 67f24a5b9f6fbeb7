package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete an analysis job",
	Long: `Delete an analysis job and its result from the server.

A running job keeps going in the background but its result is discarded.
Requires confirmation unless --force is used.

Examples:
  designscan delete abc123
  designscan delete abc123 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	job, err := apiClient.GetJob(ctx, args[0])
	if err != nil {
		return err
	}

	if !deleteForce {
		fmt.Fprintf(out, "About to delete job %s (%s, %s)\n", job.ID, job.Status, job.Source.URL)
		fmt.Fprint(out, "\nContinue? [y/N]: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		response, err := reader.ReadString('\n')
		if err != nil && response == "" {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := apiClient.DeleteJob(ctx, job.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted: %s\n", job.ID)
	return nil
}
