package models

import "errors"

// Domain specific errors shared across storage backends and handlers.
var (
	ErrNotFound           = errors.New("requested item not found")
	ErrConflict           = errors.New("item already exists or conflict")
	ErrBadRequest         = errors.New("bad request")
	ErrValidation         = errors.New("validation failed")
	ErrConfiguration      = errors.New("missing or invalid configuration")
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	ErrSeedDataInvalid    = errors.New("seed reference data missing or malformed")
)
