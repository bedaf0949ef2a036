package session

import (
	"bytes"
	"encoding/json"

	"github.com/MrEthical07/dashAuth/permission"
)

// FlexID is an identifier the backend may send as a string or a number.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*id = ""
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

// UserRecord is the backend's view of the signed-in user. Role and Level are
// backend-controlled and are not validated here; see package permission.
type UserRecord struct {
	ID          FlexID              `json:"id" validate:"required"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Role        string              `json:"role"`
	Level       permission.RawLevel `json:"level"`
	FactoryID   FlexID              `json:"factoryId,omitempty"`
	RegionID    FlexID              `json:"regionId,omitempty"`
	Permissions map[string]bool     `json:"permissions,omitempty"`
}

// Subject returns the fields the level resolver consults.
func (u *UserRecord) Subject() permission.Subject {
	if u == nil {
		return permission.Subject{}
	}
	return permission.Subject{Role: u.Role, Level: u.Level}
}

// Clone returns a deep copy of u.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	if u.Permissions != nil {
		out.Permissions = make(map[string]bool, len(u.Permissions))
		for k, v := range u.Permissions {
			out.Permissions[k] = v
		}
	}
	return &out
}

// Snapshot is a consistent, caller-owned copy of the session state.
type Snapshot struct {
	Authenticated bool
	User          *UserRecord
	Credential    string
}
