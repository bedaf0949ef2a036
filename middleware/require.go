package middleware

import (
	"net/http"

	"github.com/MrEthical07/dashAuth/guard"
	"github.com/MrEthical07/dashAuth/permission"
)

// RequireLevel admits sessions resolving to at least min.
func RequireLevel(a Authorizer, min permission.CanonicalLevel) func(http.Handler) http.Handler {
	return Guard(a, guard.Requirement{MinLevel: min})
}

// RequireRoles admits sessions whose role belongs to one of the role-group labels.
func RequireRoles(a Authorizer, labels ...string) func(http.Handler) http.Handler {
	return Guard(a, guard.Requirement{Roles: labels})
}
