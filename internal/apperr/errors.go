package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidPath  = errors.New("invalid path")
)
