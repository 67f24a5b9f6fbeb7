// Package cli provides the command-line interface for designscan.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/designscan/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "designscan",
	Short: "Turn Figma designs into structured frame specs",
	Long: `Designscan sends every frame of a Figma file to a vision model and
collects a structured spec per frame: components, business rules, UI states
and interactions. Results can be exported or indexed for semantic search.

The CLI talks to a running designscan-server (DESIGNSCAN_SERVER_URL).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL)
	},
}

// Execute runs the root command. Cancelling ctx aborts in-flight requests and streams.
func Execute(ctx context.Context) error {
	// cobra only fills in a subcommand's context when it has none, so a
	// context left over from an earlier run would otherwise stick.
	setContext(rootCmd, ctx)
	return rootCmd.ExecuteContext(ctx)
}

func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContext(sub, ctx)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $DESIGNSCAN_SERVER_URL or http://localhost:8484)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(searchCmd)
}
