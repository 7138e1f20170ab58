// Package gate decides, for every navigation, whether a visitor sees the
// requested content, is sent to login, or is sent to onboarding.
//
// The gate is a pure function of its inputs. It holds no state between
// evaluations and never mutates the snapshots it is handed, so callers must
// re-evaluate it on every request rather than caching a decision.
package gate

// UserType distinguishes freshly created accounts from established ones
type UserType string

const (
	UserTypeNew      UserType = "newUser"
	UserTypeExisting UserType = "existingUser"
)

// DefaultOnboardingPath is the path on which the onboarding redirect is suppressed
const DefaultOnboardingPath = "/onboarding"

// User is the subset of the account record that affects gating
type User struct {
	ID       string
	UserType UserType
	// OnboardingCompleted is tri-state: nil means never set.
	OnboardingCompleted *bool
}

// Session is the authentication snapshot for the current request
type Session struct {
	IsAuthenticated bool
	IsLoading       bool
	User            *User
}

// OnboardingState is the locally cached onboarding flag
type OnboardingState struct {
	HasCompletedOnboarding bool
}

// NavigationIntent describes where the visitor is and where they came from
type NavigationIntent struct {
	CurrentPath string
	OriginPath  string // empty when no origin was recorded
}

// Outcome is the kind of decision the gate produced
type Outcome string

const (
	OutcomeLoading  Outcome = "loading"
	OutcomeRender   Outcome = "render"
	OutcomeRedirect Outcome = "redirect"
)

// Decision is the result of a single gate evaluation
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
	// Origin is set on login redirects so the login flow can return the visitor.
	Origin string `json:"origin,omitempty"`
	State  State  `json:"state"`
}

// IsRedirect reports whether the decision sends the visitor elsewhere
func (d Decision) IsRedirect() bool {
	return d.Outcome == OutcomeRedirect
}

// Destinations holds the paths the gate redirects to
type Destinations struct {
	Login      string
	Onboarding string
	Landing    string
}

// DefaultDestinations returns the dashboard's standard redirect targets
func DefaultDestinations() Destinations {
	return Destinations{
		Login:      "/login",
		Onboarding: DefaultOnboardingPath,
		Landing:    "/dashboard",
	}
}

// Gate evaluates access decisions against a fixed set of destinations
type Gate struct {
	dest Destinations
}

// New creates a gate. Empty destinations fall back to the defaults.
func New(dest Destinations) *Gate {
	def := DefaultDestinations()
	if dest.Login == "" {
		dest.Login = def.Login
	}
	if dest.Onboarding == "" {
		dest.Onboarding = def.Onboarding
	}
	if dest.Landing == "" {
		dest.Landing = def.Landing
	}
	return &Gate{dest: dest}
}

// Destinations returns the configured redirect targets
func (g *Gate) Destinations() Destinations {
	return g.dest
}

// Protected decides what a visitor sees on a route that requires
// authentication and, conditionally, completed onboarding.
func (g *Gate) Protected(session Session, onboarding OnboardingState, nav NavigationIntent) Decision {
	state := Classify(session, onboarding)

	if session.IsLoading {
		return Decision{Outcome: OutcomeLoading, State: state}
	}

	if !session.IsAuthenticated {
		return Decision{
			Outcome:  OutcomeRedirect,
			Location: g.dest.Login,
			Origin:   nav.CurrentPath,
			State:    state,
		}
	}

	if session.User != nil && NeedsOnboarding(*session.User, onboarding) && nav.CurrentPath != g.dest.Onboarding {
		return Decision{
			Outcome:  OutcomeRedirect,
			Location: g.dest.Onboarding,
			State:    state,
		}
	}

	return Decision{Outcome: OutcomeRender, State: state}
}

// Public decides what a visitor sees on a route, such as login or signup,
// that should be hidden from visitors who are already signed in.
func (g *Gate) Public(session Session, onboarding OnboardingState, nav NavigationIntent) Decision {
	state := Classify(session, onboarding)

	if session.IsLoading {
		return Decision{Outcome: OutcomeLoading, State: state}
	}

	if session.IsAuthenticated {
		location := nav.OriginPath
		if location == "" {
			location = g.dest.Landing
		}
		return Decision{Outcome: OutcomeRedirect, Location: location, State: state}
	}

	return Decision{Outcome: OutcomeRender, State: state}
}

// UserNeedsOnboarding reports whether the authoritative account record says
// onboarding is outstanding. Only an explicit true suppresses it, for
// newUser accounts as well as existing ones.
func UserNeedsOnboarding(u User) bool {
	return u.OnboardingCompleted == nil || !*u.OnboardingCompleted
}

// NeedsOnboarding merges the account flag with the locally cached flag.
// Either source reporting outstanding onboarding is enough to require it.
// The path loop guard is applied by the caller.
func NeedsOnboarding(u User, onboarding OnboardingState) bool {
	return UserNeedsOnboarding(u) || !onboarding.HasCompletedOnboarding
}
