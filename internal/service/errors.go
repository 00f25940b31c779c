package service

import (
	"errors"
	"fmt"
)

// Auth failure taxonomy. Handlers translate these into HTTP rejections; the
// messages stay generic so responses never reveal whether an identifier
// exists, except for the registration duplicates, which intentionally do.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWrongTokenType     = errors.New("wrong token type")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrValidation         = errors.New("invalid input")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
)

// Registration reports which field collided. This reveals existence and is an
// accepted inconsistency with the forgot-password flow.
var (
	ErrDuplicateUsername = fmt.Errorf("%w: username already taken", ErrDuplicateUser)
	ErrDuplicateEmail    = fmt.Errorf("%w: email already registered", ErrDuplicateUser)
)

// ErrTokenReuseDetected marks a rotated refresh token being replayed. It
// satisfies errors.Is(err, ErrInvalidToken) so callers that only care about
// rejection handle it uniformly; the token family is already revoked by the
// time it is returned.
var ErrTokenReuseDetected = fmt.Errorf("%w: reuse detected", ErrInvalidToken)
