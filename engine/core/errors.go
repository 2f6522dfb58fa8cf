package core

import (
	"errors"
)

var (
	ErrInvalidConfig = errors.New("core: invalid configuration")
)
