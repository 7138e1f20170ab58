package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/castline-dev/castline/internal/cli/commands"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "castline",
	Short: "Castline - marketing dashboard tooling",
	Long: `Castline CLI - inspect the dashboard's access gate and segment filters.

Evaluate gate decisions offline from a described session, ask a running
server what it decides for a path, or print the segment filter schema.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "castline version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewGateCmd())
	rootCmd.AddCommand(commands.NewCheckCmd())
	rootCmd.AddCommand(commands.NewFiltersCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
