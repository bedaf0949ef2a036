package api

import (
	"bytes"
	"encoding/json"
)

// Envelope is the backend's standard response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Results json.RawMessage `json:"results,omitempty"`
}

type forceLogoutResults struct {
	ForceLogout bool `json:"force_logout"`
}

// parseEnvelope reports whether body is an envelope (an object with a success key).
func parseEnvelope(body []byte) (Envelope, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Envelope{}, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return Envelope{}, false
	}
	if _, ok := probe["success"]; !ok {
		return Envelope{}, false
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, false
	}
	return env, true
}

// ForceLogout reports whether env asks the client to end the session.
func (env Envelope) ForceLogout() bool {
	if env.Success || len(env.Results) == 0 {
		return false
	}
	var r forceLogoutResults
	if err := json.Unmarshal(env.Results, &r); err != nil {
		return false
	}
	return r.ForceLogout
}
