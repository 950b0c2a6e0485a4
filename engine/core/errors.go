package core

import (
	"errors"
)

var (
	ErrInvalidHandle      = errors.New("invalid handle")
	ErrNonFiniteTransform = errors.New("transform contains non-finite components")
	ErrVisibilityCycle    = errors.New("cycle detected in the visibility dependencies tree")
	ErrInvalidConfig      = errors.New("invalid configuration")
)
