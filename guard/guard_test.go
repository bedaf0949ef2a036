package guard

import (
	"testing"

	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

func authenticated(u *session.UserRecord) session.Snapshot {
	return session.Snapshot{Authenticated: true, User: u, Credential: "c"}
}

func TestEvaluateDecisionTable(t *testing.T) {
	g := New(nil, nil)

	cases := []struct {
		name string
		snap session.Snapshot
		req  Requirement
		want Decision
	}{
		{
			name: "unauthenticated",
			snap: session.Snapshot{},
			req:  Requirement{MinLevel: permission.LevelRegional},
			want: DeniedUnauthenticated,
		},
		{
			name: "factory below regional",
			snap: authenticated(&session.UserRecord{ID: "1", Level: permission.LevelString("FACTORY")}),
			req:  Requirement{MinLevel: permission.LevelRegional},
			want: DeniedForbidden,
		},
		{
			name: "numeric string ordinal 2 is national",
			snap: authenticated(&session.UserRecord{ID: "1", Level: permission.LevelString("2")}),
			req:  Requirement{MinLevel: permission.LevelNational},
			want: Allowed,
		},
		{
			name: "FUM satisfies Manager group",
			snap: authenticated(&session.UserRecord{ID: "1", Role: "FUM"}),
			req:  Requirement{Roles: []string{"Manager"}},
			want: Allowed,
		},
		{
			name: "user still loading",
			snap: authenticated(nil),
			req:  Requirement{MinLevel: permission.LevelFactory},
			want: Pending,
		},
		{
			name: "level passes roles fail",
			snap: authenticated(&session.UserRecord{ID: "1", Role: "FUM", Level: permission.LevelString("ADMIN")}),
			req:  Requirement{MinLevel: permission.LevelNational, Roles: []string{"Admin"}},
			want: DeniedForbidden,
		},
		{
			name: "roles pass level fails",
			snap: authenticated(&session.UserRecord{ID: "1", Role: "FUM"}),
			req:  Requirement{MinLevel: permission.LevelRegional, Roles: []string{"Manager"}},
			want: DeniedForbidden,
		},
		{
			name: "both pass",
			snap: authenticated(&session.UserRecord{ID: "1", Role: "sys-admin"}),
			req:  Requirement{MinLevel: permission.LevelAdmin, Roles: []string{"Admin"}},
			want: Allowed,
		},
		{
			name: "no requirement",
			snap: authenticated(&session.UserRecord{ID: "1"}),
			req:  Requirement{},
			want: Allowed,
		},
		{
			name: "empty role list is vacuous",
			snap: authenticated(&session.UserRecord{ID: "1", Role: "intern"}),
			req:  Requirement{Roles: []string{}},
			want: Allowed,
		},
		{
			name: "unrecognized shape never escalates",
			snap: authenticated(&session.UserRecord{ID: "1", Role: "root", Level: permission.LevelString("superuser")}),
			req:  Requirement{MinLevel: permission.LevelFactory},
			want: DeniedForbidden,
		},
	}
	for _, tc := range cases {
		if got := g.Evaluate(tc.snap, tc.req); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestGuardCopiesRoleGroups(t *testing.T) {
	groups := permission.RoleGroups{"Ops": {"ops"}}
	g := New(nil, groups)
	groups["Ops"][0] = "intruder"

	snap := authenticated(&session.UserRecord{ID: "1", Role: "ops"})
	if got := g.Evaluate(snap, Requirement{Roles: []string{"Ops"}}); got != Allowed {
		t.Fatalf("expected guard to keep its own copy of role groups, got %s", got)
	}
}
