package auth

import "errors"

// Sentinel errors for authentication.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrWrongTokenUse      = errors.New("auth: wrong token use")
	ErrKeyNotFound        = errors.New("auth: signing key not found")
	ErrJWKSUnavailable    = errors.New("auth: jwks unavailable")
)
