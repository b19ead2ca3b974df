package dataobj

import "errors"

// ErrUnauthorizedAccess is returned when a token does not hold the usage a
// call requires (e.g. a Read-only token calling SetValue).
var ErrUnauthorizedAccess = errors.New("dataobj: unauthorized access")

// ErrDataNotInitialized is returned by GetValue/RemoveValue before the data
// has been created, and by GetValue after it has been destroyed.
var ErrDataNotInitialized = errors.New("dataobj: data not initialized")

// ErrAlreadyCreated is returned by a second SetValue call.
var ErrAlreadyCreated = errors.New("dataobj: data already created")

// ErrAlreadyDestroyed is returned by a second RemoveValue call.
var ErrAlreadyDestroyed = errors.New("dataobj: data already destroyed")
