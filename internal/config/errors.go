package config

import "errors"

// ErrMissingSigningKey is returned by LoadSettings when no token signing key
// is configured and the gateway runs in production posture.
var ErrMissingSigningKey = errors.New("auth.jwt_secret (or JWT_SECRET_KEY) must be set in production")
