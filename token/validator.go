package token

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed is returned by Decode when the credential cannot be decoded.
	ErrMalformed = errors.New("malformed credential")
	// ErrMissingExpiry is returned by Decode when the payload has no numeric exp.
	ErrMissingExpiry = errors.New("credential has no expiry")
)

// Claims is the decoded payload of a credential. Only Expiry is required; the rest is
// informational.
type Claims struct {
	Subject string
	Expiry  float64
	Raw     map[string]any
}

// ExpiresAt converts the exp claim to a time.Time with millisecond precision.
func (c Claims) ExpiresAt() time.Time {
	return time.UnixMilli(int64(math.Floor(c.Expiry * 1000)))
}

// Option configures a [Validator].
type Option func(*Validator)

// WithClock overrides the wall clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// Validator checks credential expiry against a clock.
//
// Validator instances are immutable after construction and safe for concurrent use.
type Validator struct {
	now    func() time.Time
	parser *jwt.Parser
}

// NewValidator returns a Validator using time.Now unless overridden.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		now:    time.Now,
		parser: jwt.NewParser(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultValidator = NewValidator()

// IsValid reports whether credential decodes and is unexpired at time.Now.
func IsValid(credential string) bool {
	return defaultValidator.IsValid(credential)
}

// IsValid reports whether credential decodes and its expiry is strictly in the future.
// Malformed input of any kind yields false.
func (v *Validator) IsValid(credential string) bool {
	if v == nil {
		return false
	}
	claims, err := v.Decode(credential)
	if err != nil {
		return false
	}
	return float64(v.now().UnixMilli()) < claims.Expiry*1000
}

// ExpiresAt returns the credential expiry, or false when the credential is malformed.
func (v *Validator) ExpiresAt(credential string) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	claims, err := v.Decode(credential)
	if err != nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt(), true
}

// Decode reads the payload segment of credential without verifying its signature.
func (v *Validator) Decode(credential string) (claims Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = Claims{}, ErrMalformed
		}
	}()

	parts := strings.Split(credential, ".")
	if len(parts) != 3 || parts[1] == "" {
		return Claims{}, ErrMalformed
	}

	parser := v.parser
	if parser == nil {
		parser = jwt.NewParser()
	}
	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, ErrMalformed
	}

	raw := map[string]any{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Claims{}, ErrMalformed
	}

	exp, ok := raw["exp"].(float64)
	if !ok || math.IsNaN(exp) || math.IsInf(exp, 0) {
		return Claims{}, ErrMissingExpiry
	}

	sub, _ := raw["sub"].(string)
	return Claims{Subject: sub, Expiry: exp, Raw: raw}, nil
}
