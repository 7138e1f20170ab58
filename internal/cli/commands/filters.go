package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/castline-dev/castline/internal/filters"
)

// NewFiltersCmd creates the filters command
func NewFiltersCmd() *cobra.Command {
	var configFile, checkFile string

	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Print the segment filter schema as YAML",
		Long: `Print the segment filter schema as YAML.

With --check, validate a JSON filter definition against the schema instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilters(cmd.OutOrStdout(), configFile, checkFile)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Filter schema YAML (defaults to the built-in schema)")
	cmd.Flags().StringVar(&checkFile, "check", "", "JSON filter definition to validate")

	return cmd
}

func runFilters(out io.Writer, configFile, checkFile string) error {
	schema := filters.Default()
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to read filter schema: %w", err)
		}
		schema, err = filters.Load(data)
		if err != nil {
			return err
		}
	}

	if checkFile == "" {
		data, err := schema.YAML()
		if err != nil {
			return fmt.Errorf("failed to render filter schema: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	data, err := os.ReadFile(checkFile)
	if err != nil {
		return fmt.Errorf("failed to read filter: %w", err)
	}

	var g filters.Group
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("failed to parse filter: %w", err)
	}
	if g.Match == "" {
		g.Match = filters.MatchAll
	}
	if err := schema.Validate(g); err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Filter is valid (%d conditions, %d groups)\n", len(g.Conditions), len(g.Groups))
	return nil
}
