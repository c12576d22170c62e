package client

import "errors"

var (
	ErrUnavailable     = errors.New("classifier unavailable")
	ErrUnauthorized    = errors.New("classifier rejected credentials")
	ErrInvalidResponse = errors.New("invalid classifier response")
)
