package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/castline-dev/castline/internal/gate"
)

type gateOptions struct {
	loading       bool
	authenticated bool
	noUser        bool
	userType      string
	completed     string
	localDone     bool
	path          string
	from          string
	dest          gate.Destinations
	jsonOutput    bool
}

// NewGateCmd creates the gate command
func NewGateCmd() *cobra.Command {
	opts := gateOptions{dest: gate.DefaultDestinations()}

	cmd := &cobra.Command{
		Use:       "gate protected|public",
		Short:     "Evaluate the access gate for a session snapshot",
		Long:      "Evaluate the access gate for a session described by flags and print the decision.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"protected", "public"},
		Example: `  castline gate protected --authenticated --path /campaigns
  castline gate protected --authenticated --completed=true --local-completed --path /inbox
  castline gate public --authenticated --from /contacts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.loading, "loading", false, "Session is still resolving")
	cmd.Flags().BoolVar(&opts.authenticated, "authenticated", false, "Session is authenticated")
	cmd.Flags().BoolVar(&opts.noUser, "no-user", false, "Authenticated, but the user record is not available")
	cmd.Flags().StringVar(&opts.userType, "user-type", string(gate.UserTypeNew), "User type (newUser or existingUser)")
	cmd.Flags().StringVar(&opts.completed, "completed", "", "Account onboarding flag (true, false, or empty for unset)")
	cmd.Flags().BoolVar(&opts.localDone, "local-completed", false, "Locally cached onboarding flag")
	cmd.Flags().StringVar(&opts.path, "path", "/dashboard", "Path being navigated to")
	cmd.Flags().StringVar(&opts.from, "from", "", "Origin path (public pages)")
	cmd.Flags().StringVar(&opts.dest.Login, "login-path", opts.dest.Login, "Login page path")
	cmd.Flags().StringVar(&opts.dest.Onboarding, "onboarding-path", opts.dest.Onboarding, "Onboarding page path")
	cmd.Flags().StringVar(&opts.dest.Landing, "landing-path", opts.dest.Landing, "Landing page path")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the decision as JSON")

	return cmd
}

func runGate(out io.Writer, mode string, opts gateOptions) error {
	session, err := opts.session()
	if err != nil {
		return err
	}
	state := gate.OnboardingState{HasCompletedOnboarding: opts.localDone}
	nav := gate.NavigationIntent{CurrentPath: opts.path, OriginPath: opts.from}

	g := gate.New(opts.dest)

	var d gate.Decision
	switch mode {
	case "protected":
		d = g.Protected(session, state, nav)
	case "public":
		d = g.Public(session, state, nav)
	default:
		return fmt.Errorf("unknown gate %q (expected protected or public)", mode)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "state:\t%s\n", d.State)
	fmt.Fprintf(w, "outcome:\t%s\n", d.Outcome)
	if d.IsRedirect() {
		fmt.Fprintf(w, "location:\t%s\n", d.Location)
	}
	if d.Origin != "" {
		fmt.Fprintf(w, "origin:\t%s\n", d.Origin)
	}
	return w.Flush()
}

func (o gateOptions) session() (gate.Session, error) {
	if o.loading {
		return gate.Session{IsLoading: true}, nil
	}
	if !o.authenticated {
		return gate.Session{}, nil
	}
	if o.noUser {
		return gate.Session{IsAuthenticated: true}, nil
	}

	userType := gate.UserType(o.userType)
	if userType != gate.UserTypeNew && userType != gate.UserTypeExisting {
		return gate.Session{}, fmt.Errorf("invalid --user-type %q (expected newUser or existingUser)", o.userType)
	}

	user := &gate.User{ID: "cli", UserType: userType}
	if o.completed != "" {
		completed, err := strconv.ParseBool(o.completed)
		if err != nil {
			return gate.Session{}, fmt.Errorf("invalid --completed %q: %w", o.completed, err)
		}
		user.OnboardingCompleted = &completed
	}

	return gate.Session{IsAuthenticated: true, User: user}, nil
}
