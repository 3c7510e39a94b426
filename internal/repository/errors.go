package repository

import "errors"

// ErrUsernameTaken is returned by UserRepo.Create when the username is
// already registered. Handlers translate it into HTTP 409.
var ErrUsernameTaken = errors.New("username already exists")

// ErrTokenInvalid is returned when a refresh token is unknown, revoked or
// expired.
var ErrTokenInvalid = errors.New("refresh token invalid")
