package settings

import "errors"

// ErrInvalidInput indicates invalid settings input.
var ErrInvalidInput = errors.New("invalid settings input")
