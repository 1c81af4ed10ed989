package errx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("errx: sentinel")

func TestWrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := Wrap(errSentinel, cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "errx: sentinel: underlying failure", err.Error())
}

func TestWith(t *testing.T) {
	err := With(errSentinel, ": %q is not a valid name", "x/y")

	require.Error(t, err)
	assert.ErrorIs(t, err, errSentinel)
	assert.Contains(t, err.Error(), `"x/y" is not a valid name`)
}

func TestWith_NestedWrap(t *testing.T) {
	cause := errors.New("stat failed")
	err := With(errSentinel, " %s: %w", "proj.toml", cause)

	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, cause)
}
