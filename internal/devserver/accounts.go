package devserver

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

// Account is a seeded user.
type Account struct {
	User         session.UserRecord
	PasswordHash []byte
}

// NewAccount hashes password for user.
func NewAccount(user session.UserRecord, password string) (Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password for %s: %w", user.Email, err)
	}
	return Account{User: user, PasswordHash: hash}, nil
}

// DefaultUsers covers every level shape the backend is known to send: canonical
// names, title-case roles, numeric ordinals and lowercase aliases.
func DefaultUsers() []session.UserRecord {
	return []session.UserRecord{
		{ID: "1", Name: "Ada Admin", Email: "admin@dash.local", Role: "sys-admin", Level: permission.LevelString("ADMIN")},
		{ID: "2", Name: "Nia National", Email: "national@dash.local", Role: "National Manager", Level: permission.LevelNumber(2)},
		{ID: "3", Name: "Remy Regional", Email: "regional@dash.local", Role: "regional-coordinator", Level: permission.LevelString("region"), RegionID: "north"},
		{ID: "4", Name: "Femi Factory", Email: "fum@dash.local", Role: "FUM", Level: permission.LevelString("FACTORY"), FactoryID: "7", RegionID: "north"},
		{ID: "5", Name: "Sol Supervisor", Email: "fsc@dash.local", Role: "FSC", FactoryID: "7", RegionID: "north"},
	}
}

type directory struct {
	byEmail map[string]*Account
	byID    map[string]*Account
}

func newDirectory(accounts []Account) *directory {
	d := &directory{
		byEmail: make(map[string]*Account, len(accounts)),
		byID:    make(map[string]*Account, len(accounts)),
	}
	for i := range accounts {
		a := &accounts[i]
		d.byEmail[strings.ToLower(a.User.Email)] = a
		d.byID[string(a.User.ID)] = a
	}
	return d
}

// authenticate runs a bcrypt comparison even for unknown emails so response time
// does not reveal which accounts exist.
func (d *directory) authenticate(email, password string) (*Account, bool) {
	a, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	hash := dummyHash
	if ok {
		hash = a.PasswordHash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return nil, false
	}
	return a, true
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dashdev-unknown-account"), bcrypt.DefaultCost)

func (d *directory) users() []session.UserRecord {
	out := make([]session.UserRecord, 0, len(d.byID))
	for _, a := range d.byID {
		out = append(out, *a.User.Clone())
	}
	return out
}
