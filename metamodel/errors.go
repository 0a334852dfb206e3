package metamodel

import "errors"

var (
	// ErrUnknownType is returned when a Go type was never registered as managed.
	ErrUnknownType = errors.New("unknown managed type")
	// ErrUnknownAttribute is returned when a managed type has no attribute of the given name.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrInvalidDeclaration is returned by Builder.Build for inconsistent declarations.
	ErrInvalidDeclaration = errors.New("invalid declaration")
)
