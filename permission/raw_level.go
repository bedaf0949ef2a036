package permission

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawLevel is a backend level value exactly as received: a string, a number, or
// absent. Unsupported JSON shapes decode as absent.
type RawLevel struct {
	value   string
	numeric bool
	set     bool
}

// LevelString wraps a string level.
func LevelString(s string) RawLevel {
	return RawLevel{value: s, set: true}
}

// LevelNumber wraps a numeric level.
func LevelNumber(n float64) RawLevel {
	return RawLevel{value: strconv.FormatFloat(n, 'f', -1, 64), numeric: true, set: true}
}

// IsSet reports whether a level was present.
func (r RawLevel) IsSet() bool { return r.set }

// IsNumeric reports whether the level was a JSON number.
func (r RawLevel) IsNumeric() bool { return r.set && r.numeric }

// String returns the level text, or "" when absent.
func (r RawLevel) String() string { return r.value }

// ordinalKey returns the normalized integer text of a numeric level or numeric
// string, e.g. 2, "2", "2.0" and " 02 " all yield "2".
func (r RawLevel) ordinalKey() (string, bool) {
	if !r.set {
		return "", false
	}
	s := strings.TrimSpace(r.value)
	if s == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

func (r RawLevel) MarshalJSON() ([]byte, error) {
	switch {
	case !r.set:
		return []byte("null"), nil
	case r.numeric:
		return []byte(r.value), nil
	default:
		return json.Marshal(r.value)
	}
}

func (r *RawLevel) UnmarshalJSON(data []byte) error {
	*r = RawLevel{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*r = LevelString(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil
		}
		*r = RawLevel{value: n.String(), numeric: true, set: true}
	}
	return nil
}
