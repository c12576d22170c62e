package services

import "errors"

var (
	ErrCooldownActive    = errors.New("cooldown active")
	ErrLockedOut         = errors.New("interaction blocked: strike limit reached")
	ErrTransient         = errors.New("temporary failure, please retry")
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrEntityUnavailable = errors.New("entity is not accessible or not online")
	ErrNoEntitiesOnline  = errors.New("no accessible entities are online")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrMalformedSession  = errors.New("stored session is malformed")
	ErrMalformedSecurity = errors.New("stored security config is malformed")
	ErrMalformedArchive  = errors.New("stored consent archive is malformed")
	ErrInvalidTier       = errors.New("invalid subscription tier")
)

// errUnchanged lets a Mutate callback report that nothing needs persisting.
var errUnchanged = errors.New("unchanged")
