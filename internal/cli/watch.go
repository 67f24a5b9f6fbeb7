package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/designscan/internal/client"
	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Follow a running job until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := apiClient.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return followJob(cmd, job)
	},
}

// followJob streams a job's progress: a progress bar on a terminal, plain lines otherwise.
func followJob(cmd *cobra.Command, job *models.Job) error {
	out := cmd.OutOrStdout()
	if isTerminal(out) {
		return RunJobProgress(cmd.Context(), apiClient, job)
	}
	return streamPlain(cmd, out, apiClient, job.ID)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// streamPlain prints one line per progress change, then the result summary.
func streamPlain(cmd *cobra.Command, w io.Writer, c *client.Client, jobID string) error {
	last := ""
	final, err := c.Watch(cmd.Context(), jobID, func(s jobs.Snapshot) error {
		line := progressLine(&s.Job)
		if line != last {
			fmt.Fprintln(w, line)
			last = line
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed := jobError(final); failed != nil {
		return fmt.Errorf("job %s failed: %w", jobID, failed)
	}
	if final != nil && final.Result != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, resultSummary(final.Result))
	}
	return nil
}
