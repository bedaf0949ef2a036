package permission

import "strings"

// CanonicalLevel is the ordered authorization hierarchy. Only >= comparisons are
// meaningful.
type CanonicalLevel uint8

const (
	// LevelUnauthorized grants nothing.
	LevelUnauthorized CanonicalLevel = iota
	// LevelFactory scopes a user to one factory.
	LevelFactory
	// LevelRegional scopes a user to a region.
	LevelRegional
	// LevelNational scopes a user to the whole country.
	LevelNational
	// LevelAdmin is unrestricted.
	LevelAdmin
)

var levelNames = [...]string{
	LevelUnauthorized: "UNAUTHORIZED",
	LevelFactory:      "FACTORY",
	LevelRegional:     "REGIONAL",
	LevelNational:     "NATIONAL",
	LevelAdmin:        "ADMIN",
}

func (l CanonicalLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return levelNames[LevelUnauthorized]
}

// AtLeast reports whether l grants at least the authority of required.
func (l CanonicalLevel) AtLeast(required CanonicalLevel) bool {
	if l > LevelAdmin {
		l = LevelUnauthorized
	}
	return l >= required
}

// ParseCanonicalLevel parses a level name case-insensitively. It is meant for
// configuration and command-line input, not for backend data (use [Resolver]).
func ParseCanonicalLevel(name string) (CanonicalLevel, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range levelNames {
		if n == name {
			return CanonicalLevel(i), true
		}
	}
	return LevelUnauthorized, false
}

// canonicalByName holds the names backend data may carry verbatim.
var canonicalByName = map[string]CanonicalLevel{
	"FACTORY":  LevelFactory,
	"REGIONAL": LevelRegional,
	"NATIONAL": LevelNational,
	"ADMIN":    LevelAdmin,
}
