// Package guard decides whether the current session may enter a protected route.
//
// [Guard.Evaluate] is pure: it reads only the session snapshot and the requirement,
// and never performs I/O. The user record must already be resident; an authenticated
// session whose user is still loading evaluates to [Pending].
package guard

import (
	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

// Decision is the outcome of one route-entry evaluation.
type Decision uint8

const (
	// Pending means the session is authenticated but the user record is not loaded.
	Pending Decision = iota
	// Allowed renders the route.
	Allowed
	// DeniedUnauthenticated redirects to login, preserving the requested location.
	DeniedUnauthenticated
	// DeniedForbidden redirects to the unauthorized surface; the user is known but
	// insufficiently privileged.
	DeniedForbidden
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allowed:
		return "allowed"
	case DeniedUnauthenticated:
		return "denied_unauthenticated"
	case DeniedForbidden:
		return "denied_forbidden"
	default:
		return "unknown"
	}
}

// Requirement describes what a route demands. The zero value demands only an
// authenticated session. MinLevel and Roles are combined with AND.
type Requirement struct {
	MinLevel permission.CanonicalLevel
	Roles    []string
}

// Guard evaluates requirements against sessions.
//
// Guard is immutable after construction and safe for concurrent use.
type Guard struct {
	resolver *permission.Resolver
	groups   permission.RoleGroups
}

// New returns a Guard using resolver and the frontend→backend role groups.
func New(resolver *permission.Resolver, groups permission.RoleGroups) *Guard {
	if resolver == nil {
		resolver = permission.NewResolver(permission.DefaultTables())
	}
	if groups == nil {
		groups = permission.DefaultRoleGroups()
	}
	return &Guard{resolver: resolver, groups: groups.Clone()}
}

// Evaluate decides req for snap.
func (g *Guard) Evaluate(snap session.Snapshot, req Requirement) Decision {
	if !snap.Authenticated {
		return DeniedUnauthenticated
	}
	if snap.User == nil {
		return Pending
	}

	if req.MinLevel > permission.LevelUnauthorized {
		if !g.Level(snap.User).AtLeast(req.MinLevel) {
			return DeniedForbidden
		}
	}
	if !g.groups.Allows(snap.User.Role, req.Roles) {
		return DeniedForbidden
	}
	return Allowed
}

// Level resolves the canonical level of user.
func (g *Guard) Level(user *session.UserRecord) permission.CanonicalLevel {
	if user == nil {
		return permission.LevelUnauthorized
	}
	return g.resolver.Resolve(user.Subject())
}
