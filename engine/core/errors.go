package core

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateName         = errors.New("mesh name already registered")
	ErrCapacityExceeded      = errors.New("buffer capacity exceeded")
	ErrUnknownMeshHandle     = errors.New("unknown mesh handle")
	ErrInvalidGeometry       = errors.New("invalid geometry data")
	ErrFenceNotObserved      = errors.New("streaming region written before the previous fence was observed")
	ErrDeviceLost            = errors.New("device lost")
	ErrBackendNotInitialized = errors.New("renderer backend not initialized")
	ErrSwapchainBooting      = errors.New("swapchain resized or recreated, booting")
	ErrUnknown               = errors.New("unknown")
)

// DuplicateNameError is returned when a mesh is uploaded under a name that
// is already taken.
type DuplicateNameError struct {
	Name string
	// Handle already bound to Name.
	Handle uint32
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("mesh '%s' is already registered with handle %d", e.Name, e.Handle)
}

func (e *DuplicateNameError) Unwrap() error {
	return ErrDuplicateName
}

// CapacityExceededError is returned when a write would not fit in a
// fixed-size buffer. Requested and Available are in bytes, unless
// Resource names a count (e.g. draw commands).
type CapacityExceededError struct {
	Resource  string
	Requested uint64
	Available uint64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s capacity exceeded: requested %d, available %d", e.Resource, e.Requested, e.Available)
}

func (e *CapacityExceededError) Unwrap() error {
	return ErrCapacityExceeded
}

type UnknownMeshHandleError struct {
	Handle uint32
}

func (e *UnknownMeshHandleError) Error() string {
	return fmt.Sprintf("no placement registered for mesh handle %d", e.Handle)
}

func (e *UnknownMeshHandleError) Unwrap() error {
	return ErrUnknownMeshHandle
}
