package service

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password, so login failures do not reveal which.
	ErrInvalidCredentials = errors.New("service: invalid credentials")

	ErrEmptyDisplayName    = errors.New("service: display name must not be empty")
	ErrInvalidRegistration = errors.New("service: username and password are required")
)
