package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	var err error = fmt.Errorf("upload: %w", &DuplicateNameError{Name: "cube", Handle: 3})
	assert.ErrorIs(t, err, ErrDuplicateName)
	var dup *DuplicateNameError
	assert.True(t, errors.As(err, &dup))
	assert.Equal(t, uint32(3), dup.Handle)

	err = &CapacityExceededError{Resource: "vertex buffer", Requested: 48, Available: 12}
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Contains(t, err.Error(), "requested 48, available 12")

	err = &UnknownMeshHandleError{Handle: 9}
	assert.ErrorIs(t, err, ErrUnknownMeshHandle)
	assert.NotErrorIs(t, err, ErrCapacityExceeded)
}
