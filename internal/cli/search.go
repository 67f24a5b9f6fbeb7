package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over indexed frames",
	Long: `Search frames indexed with 'analyze --index' by meaning.

Examples:
  designscan search "checkout with saved cards"
  designscan search "empty state" --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	resp, err := apiClient.Search(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Count == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d results:\n\n", resp.Count)
	for i, f := range resp.Results {
		fmt.Fprintf(out, "%d. %s [%s] %.3f\n", i+1, f.FrameName, f.ID, f.Score)
		if verbose {
			fmt.Fprintf(out, "   %s\n", f.Content)
		} else if line := snippet(f.Content); line != "" {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// snippet returns the first content line after the frame title, cut to 100 bytes.
func snippet(content string) string {
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Frame: ") {
			continue
		}
		if len(line) > 100 {
			return line[:100] + "..."
		}
		return line
	}
	return ""
}
