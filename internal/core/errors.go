package core

import "errors"

// Error kinds of the session coordinator. Handlers wrap these with
// fmt.Errorf("...: %w", ...) and the websocket layer maps them to
// structured error payloads via ErrorCode.
var (
	ErrNotFound                 = errors.New("not found")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrEngineFailure            = errors.New("media engine failure")
	ErrIncompatibleCapabilities = errors.New("incompatible rtp capabilities")
	ErrPersistence              = errors.New("persistence failure")
)

// ErrorCode returns the wire code for an error kind. Unrecognized
// errors are reported as engine failures rather than leaking internals.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrIncompatibleCapabilities):
		return "incompatible_capabilities"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "engine_error"
	}
}
