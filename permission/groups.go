package permission

// RoleGroups maps a frontend role label (as routes name it) to the backend role
// strings it admits.
type RoleGroups map[string][]string

// DefaultRoleGroups returns the stock label table.
func DefaultRoleGroups() RoleGroups {
	return RoleGroups{
		"Admin":    {"sys-admin"},
		"Manager":  {"Manager", "FUM", "FSC", "ICT Manager"},
		"Regional": {"regional-coordinator", "Regional Manager"},
		"National": {"national-coordinator", "National Manager"},
	}
}

// Allows reports whether role belongs to the group of at least one label. An empty
// label list is vacuously satisfied; unknown labels admit nobody.
func (g RoleGroups) Allows(role string, labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	if role == "" {
		return false
	}
	for _, label := range labels {
		for _, member := range g[label] {
			if member == role {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of g.
func (g RoleGroups) Clone() RoleGroups {
	if g == nil {
		return nil
	}
	out := make(RoleGroups, len(g))
	for k, v := range g {
		out[k] = append([]string(nil), v...)
	}
	return out
}
