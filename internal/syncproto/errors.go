package syncproto

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is a network or server availability failure. Retryable.
	ErrTransport = errors.New("sync: transport failure")
	// ErrMalformedResponse is a response that violates the protocol schema.
	ErrMalformedResponse = errors.New("sync: malformed response")
	// ErrDigestMismatch means an applied or received tree does not hash to the
	// digest the authority reported. It points at a bug, not at staleness.
	ErrDigestMismatch = errors.New("sync: digest mismatch")
	// ErrUnknownBase means the authority cannot resolve a digest-only diff base.
	ErrUnknownBase = errors.New("sync: unknown base digest")
)

const (
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeNotFound       = "E_NOT_FOUND"       // route not found
	CodeMethodNotAllow = "E_METHOD_NOT_ALLOWED"
	CodeDigestMismatch = "E_DIGEST_MISMATCH" // lastKnownTree does not hash to lastKnownDigest
	CodeUnknownBase    = "E_UNKNOWN_BASE"    // digest-only diff with a base the authority no longer holds
	CodeAdminDisabled  = "E_ADMIN_DISABLED"  // admin operations are turned off
	CodeRebuildFailed  = "E_REBUILD_FAILED"  // rebuilding the tree from disk failed
)

// ErrorResponse is the error envelope written by the authority.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

// APIError is an error answered by the authority.
type APIError struct {
	Status int
	ErrorResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s - %s", e.Status, e.Code, e.Message)
}

// Is maps authority error codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnknownBase:
		return e.Code == CodeUnknownBase
	case ErrDigestMismatch:
		return e.Code == CodeDigestMismatch
	case ErrTransport:
		return e.Status >= 500
	}
	return false
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
