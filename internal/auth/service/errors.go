package service

import "errors"

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords,
	// so login responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("service: invalid credentials")

	// ErrUserExists is returned when registering an email that is taken.
	ErrUserExists = errors.New("service: user already exists")

	// ErrCurrentSession is returned when a device-logout names the caller's
	// own session. The dedicated logout endpoint handles that case.
	ErrCurrentSession = errors.New("service: cannot revoke current session")

	// ErrSessionNotFound is returned when a sid does not resolve to a live
	// session owned by the caller.
	ErrSessionNotFound = errors.New("service: session not found")
)
