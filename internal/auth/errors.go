package auth

import "errors"

// Sentinel errors returned by the auth service and token issuer.
var (
	ErrNotFound           = errors.New("admin not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmptySecret        = errors.New("token signing secret is empty")
)
