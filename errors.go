package dashAuth

import (
	"errors"

	"github.com/MrEthical07/dashAuth/api"
	"github.com/MrEthical07/dashAuth/session"
)

var (
	// ErrConfigInvalid wraps every configuration validation failure.
	ErrConfigInvalid = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second call to Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrRedisRequired is returned when redis storage is selected without a client
	// or address.
	ErrRedisRequired = errors.New("redis storage selected without a redis client")
	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("client closed")

	// ErrInvalidCredential is returned by Login for an expired or malformed credential.
	ErrInvalidCredential = session.ErrInvalidCredential
	// ErrSessionFetchFailed is returned when the profile fetch failed and the session
	// was terminated.
	ErrSessionFetchFailed = session.ErrSessionFetchFailed
	// ErrStorageUnavailable wraps persistence failures.
	ErrStorageUnavailable = session.ErrStorageUnavailable
	// ErrMalformedResponse is returned for undecodable API responses.
	ErrMalformedResponse = api.ErrMalformedResponse
)
