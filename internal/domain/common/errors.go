package common

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("requested item not found")
	ErrBadRequest = errors.New("bad request")

	ErrDatasetNotFound = fmt.Errorf("dataset %w", ErrNotFound)
	ErrProfileNotFound = fmt.Errorf("column profile %w", ErrNotFound)
	ErrFileTooLarge    = fmt.Errorf("%w: file exceeds the upload limit", ErrBadRequest)
)
