package admin

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown username, an inactive
	// account and a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrAccountNotFound    = errors.New("account not found")
	ErrDirectoryNotEmpty  = errors.New("directory already has accounts")
	ErrUnexpected         = errors.New("unexpected error")
)
