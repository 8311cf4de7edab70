package user

import "errors"

// Sentinel errors for the identity service layer.
var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSuspended          = errors.New("account is suspended")
	ErrForbidden          = errors.New("operation not allowed")
	ErrThrottled          = errors.New("too many login attempts")
)
