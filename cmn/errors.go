package cmn

import "errors"

// Sentinel errors corresponding to the boundary status codes. Internal
// callers compare with errors.Is; RPC handlers translate back to a
// Status via StatusFromErr.
var (
	ErrAlreadyExists = errors.New("dataset already exists")
	ErrNotFound       = errors.New("not found")
	ErrNotAllowed     = errors.New("not allowed")
	ErrInvalidData    = errors.New("invalid envelope data")
)

// StatusFromErr maps a sentinel error to its wire status code. Errors
// that don't match any sentinel are not this engine's concern to
// classify further and are treated as StatusInvalidData by callers
// that must pick something generic.
func StatusFromErr(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrAlreadyExists):
		return StatusAlreadyExist
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrNotAllowed):
		return StatusNotAllowed
	case errors.Is(err, ErrInvalidData):
		return StatusInvalidData
	default:
		return StatusInvalidData
	}
}
