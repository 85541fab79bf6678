package services

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when a bearer token cannot be resolved to a user.
	ErrUnauthenticated = errors.New("could not validate credentials")
	// ErrInactiveUser is returned when a disabled account attempts access.
	ErrInactiveUser = errors.New("inactive user")
	// ErrInsufficientPrivilege is returned when a non-superuser attempts an admin operation.
	ErrInsufficientPrivilege = errors.New("insufficient privileges")
	// ErrInvalidInput wraps validation failures of create and patch payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageDisabled is returned when an operation needs object storage that is not configured.
	ErrStorageDisabled = errors.New("object storage is not configured")
)
