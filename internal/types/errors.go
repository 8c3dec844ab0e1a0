package types

import "errors"

// Type registry errors.
var (
	// ErrDescriptorNameEmpty is returned when a descriptor has no name.
	ErrDescriptorNameEmpty = errors.New("type name cannot be empty")

	// ErrUnknownType is returned when a type name is not registered.
	ErrUnknownType = errors.New("unknown type")

	// ErrUnknownBase is returned when a descriptor extends an unregistered type.
	ErrUnknownBase = errors.New("unknown base type")

	// ErrCircularBase is returned when a descriptor would become its own ancestor.
	ErrCircularBase = errors.New("type cannot extend itself")

	// ErrReservedType is returned when replacing the root type.
	ErrReservedType = errors.New("the any type cannot be redefined")
)
