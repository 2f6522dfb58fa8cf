// Package driver defines the interfaces a graphics backend implements so the
// renderer can drive it without knowing the underlying API.
//
// A backend registers itself from an init function and is selected once, by
// name, through Open.
package driver

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Driver is the interface that provides methods for
// loading and unloading an underlying implementation.
type Driver interface {
	// Open initializes the driver against a presentation surface.
	// If it succeeds, further calls with the same receiver
	// have no effect and must return the same GPU instance.
	Open(opts Options) (GPU, error)

	// Name returns the name of the driver.
	// It must not cause the driver to be opened.
	Name() string

	// Close deinitializes the driver.
	// Closing a driver that is not open has no effect.
	Close()
}

// Surface is the window (or stand-in) a GPU presents to.
type Surface interface {
	// FramebufferSize is the drawable size in pixels.
	FramebufferSize() (width, height int)
}

// Options configure Driver.Open.
type Options struct {
	AppName string
	Surface Surface
	// Validation enables API validation layers where the backend has them.
	Validation bool
	Logger     *log.Logger
}

var (
	// ErrNotInstalled means that a platform-specific library
	// required for the driver to work is not present in the system.
	ErrNotInstalled = errors.New("driver: missing required library")

	// ErrNoDevice means that no suitable device could be found.
	ErrNoDevice = errors.New("driver: no suitable device found")

	// ErrNoHostMemory means that host memory could not be allocated.
	ErrNoHostMemory = errors.New("driver: out of host memory")

	// ErrNoDeviceMemory means that device memory could not be allocated.
	ErrNoDeviceMemory = errors.New("driver: out of device memory")

	// ErrDeviceLost means the device stopped responding, either reported by
	// the API or inferred from a fence that never signaled.
	ErrDeviceLost = errors.New("driver: device lost")

	// ErrOutOfDate means the swapchain no longer matches the surface and
	// must be recreated before it can be used again.
	ErrOutOfDate = errors.New("driver: swapchain out of date")

	// ErrSuboptimal means the operation succeeded but the swapchain should
	// be recreated.
	ErrSuboptimal = errors.New("driver: swapchain suboptimal")

	// ErrTimeout means a wait expired.
	ErrTimeout = errors.New("driver: timeout")

	// ErrFatal means that the driver is in an unrecoverable state.
	ErrFatal = errors.New("driver: fatal error")

	// ErrUnknownDriver is returned by Open for names nothing registered.
	ErrUnknownDriver = errors.New("driver: unknown driver")
)

var (
	mu      sync.Mutex
	drivers = make(map[string]Driver)
)

// Register registers a Driver. If a driver with the same name has already
// been registered, it is replaced by drv.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	drivers[drv.Name()] = drv
}

// Drivers returns the names of the registered drivers, sorted.
func Drivers() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	mu.Lock()
	defer mu.Unlock()
	drv, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return drv, nil
}

// Open looks up the named driver and opens it.
func Open(name string, opts Options) (GPU, error) {
	drv, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return drv.Open(opts)
}
