package session

import (
	"encoding/json"
	"errors"
)

var errEmptyUserRecord = errors.New("empty user record")

// EncodeUser serializes u for the persisted user entry.
func EncodeUser(u *UserRecord) (string, error) {
	if u == nil {
		return "", errEmptyUserRecord
	}
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUser parses a persisted user entry.
func DecodeUser(data string) (*UserRecord, error) {
	if data == "" || data == "null" {
		return nil, errEmptyUserRecord
	}
	var u UserRecord
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, err
	}
	return &u, nil
}
