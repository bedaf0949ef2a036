package permission

import (
	"strings"
)

// Subject is the authorization-relevant part of a user record.
type Subject struct {
	Role  string
	Level RawLevel
}

// Rule is one link of the resolution chain. It must be pure and total.
type Rule func(Subject) (CanonicalLevel, bool)

// Tables holds the lookup tables the chain consults. Values are canonical level
// names; entries that do not parse are ignored.
type Tables struct {
	RoleLevels map[string]string
	Aliases    map[string]string
	Ordinals   map[string]string
}

// DefaultOrdinals is the backend's numeric level encoding. Authority DEcreases as the
// number grows; this is a compatibility constant and must not be reordered.
var DefaultOrdinals = map[string]string{
	"1": "ADMIN",
	"2": "NATIONAL",
	"3": "REGIONAL",
	"4": "FACTORY",
}

// DefaultTables returns the stock role, alias and ordinal tables.
func DefaultTables() Tables {
	return Tables{
		RoleLevels: map[string]string{
			"sys-admin":            "ADMIN",
			"national-coordinator": "NATIONAL",
			"National Manager":     "NATIONAL",
			"regional-coordinator": "REGIONAL",
			"Regional Manager":     "REGIONAL",
			"Manager":              "FACTORY",
			"FUM":                  "FACTORY",
			"FSC":                  "FACTORY",
			"ICT Manager":          "FACTORY",
		},
		Aliases: map[string]string{
			"factory":  "FACTORY",
			"site":     "FACTORY",
			"regional": "REGIONAL",
			"region":   "REGIONAL",
			"national": "NATIONAL",
			"country":  "NATIONAL",
			"admin":    "ADMIN",
			"global":   "ADMIN",
		},
		Ordinals: cloneStrings(DefaultOrdinals),
	}
}

// Resolver maps a [Subject] to a [CanonicalLevel].
//
// Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	chain []Rule
}

// NewResolver builds the fixed resolution chain over t.
func NewResolver(t Tables) *Resolver {
	roles := compile(t.RoleLevels, false)
	aliases := compile(t.Aliases, true)
	ordinals := compile(t.Ordinals, false)

	return &Resolver{chain: []Rule{
		canonicalRule,
		roleRule(roles),
		aliasRule(aliases),
		ordinalRule(ordinals),
	}}
}

// Resolve returns the first level any rule yields, or LevelUnauthorized.
func (r *Resolver) Resolve(s Subject) CanonicalLevel {
	if r == nil {
		return LevelUnauthorized
	}
	for _, rule := range r.chain {
		if lvl, ok := rule(s); ok {
			return lvl
		}
	}
	return LevelUnauthorized
}

func canonicalRule(s Subject) (CanonicalLevel, bool) {
	if !s.Level.IsSet() || s.Level.IsNumeric() {
		return LevelUnauthorized, false
	}
	lvl, ok := canonicalByName[s.Level.String()]
	return lvl, ok
}

func roleRule(table map[string]CanonicalLevel) Rule {
	return func(s Subject) (CanonicalLevel, bool) {
		if s.Role == "" {
			return LevelUnauthorized, false
		}
		lvl, ok := table[s.Role]
		return lvl, ok
	}
}

func aliasRule(table map[string]CanonicalLevel) Rule {
	return func(s Subject) (CanonicalLevel, bool) {
		if !s.Level.IsSet() || s.Level.IsNumeric() {
			return LevelUnauthorized, false
		}
		if _, numeric := s.Level.ordinalKey(); numeric {
			return LevelUnauthorized, false
		}
		lvl, ok := table[strings.ToLower(strings.TrimSpace(s.Level.String()))]
		return lvl, ok
	}
}

func ordinalRule(table map[string]CanonicalLevel) Rule {
	return func(s Subject) (CanonicalLevel, bool) {
		key, ok := s.Level.ordinalKey()
		if !ok {
			return LevelUnauthorized, false
		}
		lvl, ok := table[key]
		return lvl, ok
	}
}

func compile(in map[string]string, lowerKeys bool) map[string]CanonicalLevel {
	out := make(map[string]CanonicalLevel, len(in))
	for k, v := range in {
		lvl, ok := ParseCanonicalLevel(v)
		if !ok || lvl == LevelUnauthorized {
			continue
		}
		if lowerKeys {
			k = strings.ToLower(strings.TrimSpace(k))
		}
		out[k] = lvl
	}
	return out
}

func cloneStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
