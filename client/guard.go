package client

import (
	"github.com/campusworks/campus/internal/models"
)

// View describes a navigable screen and its access requirements.
type View struct {
	Path         string
	RequiresAuth bool
	// PublicOnly marks screens like login and register that an authenticated
	// user is bounced away from.
	PublicOnly bool
	// Roles restricts an authenticated view to the listed roles. Empty means
	// any authenticated role.
	Roles []models.UserRole
}

// DecisionKind classifies what the caller should do with a navigation.
type DecisionKind int

const (
	// DecisionLoading: the session is still rehydrating; show a loading
	// state and never redirect yet.
	DecisionLoading DecisionKind = iota
	// DecisionRender: show the requested view.
	DecisionRender
	// DecisionRedirectLogin: send the user to the login view, carrying the
	// originally requested path so login can bounce back.
	DecisionRedirectLogin
	// DecisionRedirectHome: send the user to the landing view.
	DecisionRedirectHome
	// DecisionDenied: the user is authenticated but the role does not match;
	// deny in place, never via a login redirect.
	DecisionDenied
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionLoading:
		return "loading"
	case DecisionRender:
		return "render"
	case DecisionRedirectLogin:
		return "redirect-login"
	case DecisionRedirectHome:
		return "redirect-home"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for a navigation.
type Decision struct {
	Kind DecisionKind
	// Target is the redirect destination for the redirect kinds.
	Target string
	// From carries the originally requested path on a login redirect.
	From string
}

// Guard evaluates navigations against the session state and a view registry.
type Guard struct {
	controller *Controller
	views      map[string]View
	loginPath  string
	landing    string
}

// NewGuard builds a guard around the controller. loginPath and landing name
// the login view and the default authenticated landing view.
func NewGuard(controller *Controller, loginPath, landing string) *Guard {
	return &Guard{
		controller: controller,
		views:      make(map[string]View),
		loginPath:  loginPath,
		landing:    landing,
	}
}

// Register adds a view to the registry, replacing any earlier entry for the
// same path.
func (g *Guard) Register(views ...View) {
	for _, v := range views {
		g.views[v.Path] = v
	}
}

// Check decides what to do with a navigation to path.
func (g *Guard) Check(path string) Decision {
	state, user := g.controller.Current()

	view, known := g.views[path]
	if !known {
		// Catch-all: unknown paths bounce to login or the landing view.
		switch state {
		case StateInitializing:
			return Decision{Kind: DecisionLoading}
		case StateAuthenticated:
			return Decision{Kind: DecisionRedirectHome, Target: g.landing}
		default:
			return Decision{Kind: DecisionRedirectLogin, Target: g.loginPath, From: path}
		}
	}

	if state == StateInitializing {
		if view.RequiresAuth || view.PublicOnly {
			return Decision{Kind: DecisionLoading}
		}
		return Decision{Kind: DecisionRender}
	}

	if view.PublicOnly && state == StateAuthenticated {
		return Decision{Kind: DecisionRedirectHome, Target: g.landing}
	}

	if !view.RequiresAuth {
		return Decision{Kind: DecisionRender}
	}

	if state != StateAuthenticated {
		return Decision{Kind: DecisionRedirectLogin, Target: g.loginPath, From: path}
	}

	if len(view.Roles) > 0 {
		allowed := false
		for _, role := range view.Roles {
			if user != nil && user.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return Decision{Kind: DecisionDenied}
		}
	}

	return Decision{Kind: DecisionRender}
}
