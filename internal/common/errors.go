package common

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrTerminated is returned by every operation once the destructive wipe
	// has fired. The state is sticky for the life of the process.
	ErrTerminated = errors.New("session terminated")

	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
)
