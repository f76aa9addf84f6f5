// Package authz holds the route authorization decision. It is a pure
// function of session state so every screen gates the same way.
package authz

import "perfview/internal/session"

type Decision int

const (
	// Wait: hydration has not finished; render a placeholder, do not
	// redirect yet.
	Wait Decision = iota
	// Allow: the session carries the required role.
	Allow
	// Redirect: no session, or the wrong role. The two cases are
	// deliberately indistinguishable to the user.
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decide applies the gating rules in priority order: loading wins over
// everything, absence of a session and a role mismatch both redirect.
func Decide(sess *session.Session, loading bool, want session.Role) Decision {
	if loading {
		return Wait
	}
	if sess == nil {
		return Redirect
	}
	if sess.Role != want {
		return Redirect
	}
	return Allow
}
