package auth

import (
	"errors"
	"fmt"

	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// Sentinel errors for auth operations. Each wraps the httpx sentinel that
// decides its response status.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)
	ErrAccountDisabled    = fmt.Errorf("%w: account disabled", httpx.ErrUnauthorized)
	ErrTokenInvalid       = fmt.Errorf("%w: invalid token", httpx.ErrUnauthorized)
	ErrPrincipalNotFound  = fmt.Errorf("%w: principal", httpx.ErrNotFound)
	ErrUsernameTaken      = fmt.Errorf("%w: username already exists", httpx.ErrDuplicate)
	ErrUnknownRole        = fmt.Errorf("%w: unknown role", httpx.ErrValidation)
	ErrInvalidUsername    = fmt.Errorf("%w: invalid username", httpx.ErrValidation)
	ErrWeakPassword       = fmt.Errorf("%w: password must be 8 to 128 characters", httpx.ErrValidation)
	ErrRolesRequired      = fmt.Errorf("%w: at least one role is required", httpx.ErrValidation)
)

// errShortSecret is returned by NewJWTCodec for signing keys under minSecretLen bytes.
var errShortSecret = errors.New("auth: signing secret too short")
