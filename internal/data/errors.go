package data

import "github.com/pkg/errors"

// Sentinel errors returned by the stores. Callers compare with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)
