package domain

import "errors"

var (
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrTenantInactive        = errors.New("tenant is inactive")
	ErrInvalidInput          = errors.New("invalid chunking input")
	ErrUnsupportedSourceType = errors.New("unsupported source type")
	ErrRunAlreadyExists      = errors.New("a chunking run already exists for this source")
	ErrRunNotFound           = errors.New("chunking run not found")
	ErrTemplateNotFound      = errors.New("no active prompt template")
	ErrBundleTooLarge        = errors.New("payload bundle exceeds maximum allowed size")
)
