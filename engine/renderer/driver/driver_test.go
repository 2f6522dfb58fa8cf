package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDriver struct {
	name   string
	opened int
}

func (d *stubDriver) Open(Options) (GPU, error) {
	d.opened++
	return nil, ErrNotInstalled
}

func (d *stubDriver) Name() string { return d.name }

func (d *stubDriver) Close() {}

func TestRegisterReplacesSameName(t *testing.T) {
	first := &stubDriver{name: "stub-registry"}
	second := &stubDriver{name: "stub-registry"}
	Register(first)
	Register(second)

	assert.Contains(t, Drivers(), "stub-registry")
	drv, err := Lookup("stub-registry")
	require.NoError(t, err)
	assert.Same(t, second, drv)

	_, err = Open("stub-registry", Options{})
	require.ErrorIs(t, err, ErrNotInstalled)
	assert.Equal(t, 1, second.opened)
	assert.Zero(t, first.opened)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("does-not-exist", Options{})
	require.ErrorIs(t, err, ErrUnknownDriver)
}
