package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestProtected(t *testing.T) {
	g := New(Destinations{})

	tests := []struct {
		name       string
		session    Session
		onboarding OnboardingState
		nav        NavigationIntent
		want       Decision
	}{
		{
			name:    "loading wins over unauthenticated",
			session: Session{IsLoading: true},
			nav:     NavigationIntent{CurrentPath: "/dashboard"},
			want:    Decision{Outcome: OutcomeLoading, State: StateLoading},
		},
		{
			name: "loading wins over authenticated user needing onboarding",
			session: Session{
				IsLoading:       true,
				IsAuthenticated: true,
				User:            &User{UserType: UserTypeNew},
			},
			nav:  NavigationIntent{CurrentPath: "/dashboard"},
			want: Decision{Outcome: OutcomeLoading, State: StateLoading},
		},
		{
			name:    "unauthenticated redirects to login with origin",
			session: Session{},
			nav:     NavigationIntent{CurrentPath: "/contacts"},
			want: Decision{
				Outcome:  OutcomeRedirect,
				Location: "/login",
				Origin:   "/contacts",
				State:    StateUnauthenticated,
			},
		},
		{
			name: "unauthenticated with stale user record still redirects to login",
			session: Session{
				User: &User{UserType: UserTypeExisting, OnboardingCompleted: boolPtr(true)},
			},
			onboarding: OnboardingState{HasCompletedOnboarding: true},
			nav:        NavigationIntent{CurrentPath: "/campaigns"},
			want: Decision{
				Outcome:  OutcomeRedirect,
				Location: "/login",
				Origin:   "/campaigns",
				State:    StateUnauthenticated,
			},
		},
		{
			name: "onboarded existing user renders",
			session: Session{
				IsAuthenticated: true,
				User:            &User{UserType: UserTypeExisting, OnboardingCompleted: boolPtr(true)},
			},
			onboarding: OnboardingState{HasCompletedOnboarding: true},
			nav:        NavigationIntent{CurrentPath: "/dashboard"},
			want:       Decision{Outcome: OutcomeRender, State: StateAuthenticatedOnboarded},
		},
		{
			name: "explicit true overrides newUser type",
			session: Session{
				IsAuthenticated: true,
				User:            &User{UserType: UserTypeNew, OnboardingCompleted: boolPtr(true)},
			},
			onboarding: OnboardingState{HasCompletedOnboarding: true},
			nav:        NavigationIntent{CurrentPath: "/analytics"},
			want:       Decision{Outcome: OutcomeRender, State: StateAuthenticatedOnboarded},
		},
		{
			name: "new user with absent flag redirects to onboarding",
			session: Session{
				IsAuthenticated: true,
				User:            &User{UserType: UserTypeNew},
			},
			nav: NavigationIntent{CurrentPath: "/dashboard"},
			want: Decision{
				Outcome:  OutcomeRedirect,
				Location: "/onboarding",
				State:    StateAuthenticatedNeedsOnboarding,
			},
		},
		{
			name: "new user on onboarding page renders",
			session: Session{
				IsAuthenticated: true,
				User:            &User{UserType: UserTypeNew},
			},
			nav:  NavigationIntent{CurrentPath: "/onboarding"},
			want: Decision{Outcome: OutcomeRender, State: StateAuthenticatedNeedsOnboarding},
		},
		{
			name: "explicit false redirects existing user",
			session: Session{
				IsAuthenticated: true,
				User:            &User{UserType: UserTypeExisting, OnboardingCompleted: boolPtr(false)},
			},
			onboarding: OnboardingState{HasCompletedOnboarding: true},
			nav:        NavigationIntent{CurrentPath: "/settings"},
			want: Decision{
				Outcome:  OutcomeRedirect,
				Location: "/onboarding",
				State:    StateAuthenticatedNeedsOnboarding,
			},
		},
		{
			name: "absent flag redirects existing user",
			session: Session{
				IsAuthenticated: true,
				User:            &User{UserType: UserTypeExisting},
			},
			onboarding: OnboardingState{HasCompletedOnboarding: true},
			nav:        NavigationIntent{CurrentPath: "/inbox"},
			want: Decision{
				Outcome:  OutcomeRedirect,
				Location: "/onboarding",
				State:    StateAuthenticatedNeedsOnboarding,
			},
		},
		{
			name: "local flag not completed redirects even when account says done",
			session: Session{
				IsAuthenticated: true,
				User:            &User{UserType: UserTypeExisting, OnboardingCompleted: boolPtr(true)},
			},
			onboarding: OnboardingState{HasCompletedOnboarding: false},
			nav:        NavigationIntent{CurrentPath: "/dashboard"},
			want: Decision{
				Outcome:  OutcomeRedirect,
				Location: "/onboarding",
				State:    StateAuthenticatedNeedsOnboarding,
			},
		},
		{
			name:    "authenticated without user record renders",
			session: Session{IsAuthenticated: true},
			nav:     NavigationIntent{CurrentPath: "/dashboard"},
			want:    Decision{Outcome: OutcomeRender, State: StateAuthenticatedNoOnboarding},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Protected(tt.session, tt.onboarding, tt.nav)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProtected_LoadingNeverRedirects(t *testing.T) {
	g := New(Destinations{})

	for _, authenticated := range []bool{true, false} {
		for _, user := range []*User{nil, {UserType: UserTypeNew}, {UserType: UserTypeExisting, OnboardingCompleted: boolPtr(true)}} {
			for _, local := range []bool{true, false} {
				session := Session{IsLoading: true, IsAuthenticated: authenticated, User: user}
				onboarding := OnboardingState{HasCompletedOnboarding: local}
				nav := NavigationIntent{CurrentPath: "/dashboard", OriginPath: "/contacts"}

				protected := g.Protected(session, onboarding, nav)
				public := g.Public(session, onboarding, nav)

				assert.Equal(t, OutcomeLoading, protected.Outcome)
				assert.Empty(t, protected.Location)
				assert.Equal(t, OutcomeLoading, public.Outcome)
				assert.Empty(t, public.Location)
			}
		}
	}
}

func TestPublic(t *testing.T) {
	g := New(Destinations{})

	tests := []struct {
		name    string
		session Session
		nav     NavigationIntent
		want    Decision
	}{
		{
			name:    "authenticated with origin returns to origin",
			session: Session{IsAuthenticated: true},
			nav:     NavigationIntent{CurrentPath: "/login", OriginPath: "/contacts"},
			want:    Decision{Outcome: OutcomeRedirect, Location: "/contacts", State: StateAuthenticatedNoOnboarding},
		},
		{
			name:    "authenticated without origin goes to landing",
			session: Session{IsAuthenticated: true},
			nav:     NavigationIntent{CurrentPath: "/login"},
			want:    Decision{Outcome: OutcomeRedirect, Location: "/dashboard", State: StateAuthenticatedNoOnboarding},
		},
		{
			name:    "unauthenticated renders login",
			session: Session{},
			nav:     NavigationIntent{CurrentPath: "/login", OriginPath: "/contacts"},
			want:    Decision{Outcome: OutcomeRender, State: StateUnauthenticated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Public(tt.session, OnboardingState{}, tt.nav)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomDestinations(t *testing.T) {
	g := New(Destinations{Login: "/signin", Onboarding: "/welcome", Landing: "/home"})

	d := g.Protected(Session{}, OnboardingState{}, NavigationIntent{CurrentPath: "/inbox"})
	assert.Equal(t, "/signin", d.Location)

	user := &User{UserType: UserTypeNew}
	d = g.Protected(Session{IsAuthenticated: true, User: user}, OnboardingState{}, NavigationIntent{CurrentPath: "/welcome"})
	assert.Equal(t, OutcomeRender, d.Outcome)

	d = g.Public(Session{IsAuthenticated: true}, OnboardingState{}, NavigationIntent{CurrentPath: "/signin"})
	assert.Equal(t, "/home", d.Location)
}

func TestEvaluationIsIdempotent(t *testing.T) {
	g := New(Destinations{})
	completed := false
	user := &User{ID: "u1", UserType: UserTypeNew, OnboardingCompleted: &completed}
	session := Session{IsAuthenticated: true, User: user}
	onboarding := OnboardingState{HasCompletedOnboarding: true}
	nav := NavigationIntent{CurrentPath: "/segments", OriginPath: "/contacts"}

	first := g.Protected(session, onboarding, nav)
	second := g.Protected(session, onboarding, nav)

	assert.Equal(t, first, second)
	assert.False(t, completed)
	assert.Equal(t, UserTypeNew, user.UserType)
	assert.Equal(t, "/segments", nav.CurrentPath)
}

func TestUserNeedsOnboarding(t *testing.T) {
	tests := []struct {
		name string
		user User
		want bool
	}{
		{"absent existing", User{UserType: UserTypeExisting}, true},
		{"absent new", User{UserType: UserTypeNew}, true},
		{"false existing", User{UserType: UserTypeExisting, OnboardingCompleted: boolPtr(false)}, true},
		{"false new", User{UserType: UserTypeNew, OnboardingCompleted: boolPtr(false)}, true},
		{"true existing", User{UserType: UserTypeExisting, OnboardingCompleted: boolPtr(true)}, false},
		{"true new", User{UserType: UserTypeNew, OnboardingCompleted: boolPtr(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserNeedsOnboarding(tt.user))
		})
	}
}

func TestClassify(t *testing.T) {
	done := &User{UserType: UserTypeExisting, OnboardingCompleted: boolPtr(true)}

	assert.Equal(t, StateLoading, Classify(Session{IsLoading: true, IsAuthenticated: true, User: done}, OnboardingState{}))
	assert.Equal(t, StateUnauthenticated, Classify(Session{}, OnboardingState{}))
	assert.Equal(t, StateAuthenticatedNoOnboarding, Classify(Session{IsAuthenticated: true}, OnboardingState{}))
	assert.Equal(t, StateAuthenticatedNeedsOnboarding, Classify(Session{IsAuthenticated: true, User: done}, OnboardingState{}))
	assert.Equal(t, StateAuthenticatedOnboarded, Classify(Session{IsAuthenticated: true, User: done}, OnboardingState{HasCompletedOnboarding: true}))
}
