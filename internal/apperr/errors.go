// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrNoBasePath aborts a command before any scan work begins.
	ErrNoBasePath     = errors.New("cannot determine base path")
	ErrResolution     = errors.New("backlink resolution failed")
	ErrInvalidPattern = errors.New("invalid selection pattern")
)
