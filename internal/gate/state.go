package gate

// State classifies a session snapshot for logging and diagnostics.
// The gate never moves between states itself; session and onboarding
// updates from outside do.
type State string

const (
	StateLoading         State = "loading"
	StateUnauthenticated State = "unauthenticated"
	// StateAuthenticatedNoOnboarding is an authenticated session whose user
	// record has not been resolved, so onboarding cannot be evaluated.
	StateAuthenticatedNoOnboarding   State = "authenticated_no_onboarding"
	StateAuthenticatedNeedsOnboarding State = "authenticated_needs_onboarding"
	StateAuthenticatedOnboarded       State = "authenticated_onboarded"
)

// Classify maps a snapshot onto its State. Loading wins over everything else.
func Classify(session Session, onboarding OnboardingState) State {
	switch {
	case session.IsLoading:
		return StateLoading
	case !session.IsAuthenticated:
		return StateUnauthenticated
	case session.User == nil:
		return StateAuthenticatedNoOnboarding
	case NeedsOnboarding(*session.User, onboarding):
		return StateAuthenticatedNeedsOnboarding
	default:
		return StateAuthenticatedOnboarded
	}
}
