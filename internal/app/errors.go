package app

import "errors"

var (
	ErrStartupValidation = errors.New("sync startup session validation failed")
	ErrSessionRejected   = errors.New("sync startup session rejected")
)
