package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/castline-dev/castline/internal/cli/client"
)

// gateClient is the part of the API client the check command needs
type gateClient interface {
	EvaluateGate(mode, path, from string) (*client.GateResult, error)
}

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	var serverURL, token, path, from string
	var public bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Ask a running server what the gate decides for a path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("CASTLINE_TOKEN")
			}
			mode := "protected"
			if public {
				mode = "public"
			}
			return runCheck(cmd.OutOrStdout(), client.New(serverURL, token), mode, path, from)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&token, "token", "", "Session token (defaults to $CASTLINE_TOKEN)")
	cmd.Flags().StringVar(&path, "path", "/dashboard", "Path being navigated to")
	cmd.Flags().StringVar(&from, "from", "", "Origin path (public pages)")
	cmd.Flags().BoolVar(&public, "public", false, "Evaluate as a public page")

	return cmd
}

func runCheck(out io.Writer, c gateClient, mode, path, from string) error {
	res, err := c.EvaluateGate(mode, path, from)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "state:\t%s\n", res.State)
	fmt.Fprintf(w, "outcome:\t%s\n", res.Outcome)
	if res.RedirectURL != "" {
		fmt.Fprintf(w, "redirect:\t%s\n", res.RedirectURL)
	}
	fmt.Fprintf(w, "needs onboarding:\t%t\n", res.Onboarding.NeedsOnboarding)
	return w.Flush()
}
