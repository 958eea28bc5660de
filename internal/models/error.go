package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource already exists")
	ErrBadRequest = errors.New("bad request")

	// Guard outcome errors
	ErrInvalidCredential      = errors.New("invalid credential")
	ErrDeviceBlocked          = errors.New("device is temporarily blocked")
	ErrPersistenceUnavailable = errors.New("attempt store unavailable")
)

// ErrorKind classifies why an authentication was not granted.
// It is carried in result values, never returned as an error.
type ErrorKind string

const (
	KindInvalidCredential      ErrorKind = "invalid_credential"
	KindBlocked                ErrorKind = "blocked"
	KindPersistenceUnavailable ErrorKind = "persistence_unavailable"
)

// Err maps a kind back to its sentinel error so callers can use errors.Is.
func (k ErrorKind) Err() error {
	switch k {
	case KindInvalidCredential:
		return ErrInvalidCredential
	case KindBlocked:
		return ErrDeviceBlocked
	case KindPersistenceUnavailable:
		return ErrPersistenceUnavailable
	default:
		return nil
	}
}
