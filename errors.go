package gpures

import "errors"

// Errors returned by gpures.
var (
	// ErrDeviceCreation wraps a device failure to create an object.
	// The cache is left without an entry for the descriptor.
	ErrDeviceCreation = errors.New("gpures: device object creation failed")

	// ErrTransfer wraps a failed host/device transfer. The coherency
	// state of the resource is unchanged.
	ErrTransfer = errors.New("gpures: transfer failed")

	// ErrPassFinished is returned when a pass is finished twice.
	ErrPassFinished = errors.New("gpures: pass already finished")

	// ErrClosed is returned by operations on a closed instance.
	ErrClosed = errors.New("gpures: instance closed")

	// ErrNilDevice is returned when an instance is created without a device.
	ErrNilDevice = errors.New("gpures: nil device")

	// ErrSizeMismatch is returned when host data does not match the size
	// of its buffer or texture.
	ErrSizeMismatch = errors.New("gpures: size mismatch")

	// ErrOutOfRange is returned by typed accessors given an index or range
	// outside the resource.
	ErrOutOfRange = errors.New("gpures: index out of range")

	// ErrUnsupportedFormat is returned for texture formats without
	// host-side texel access.
	ErrUnsupportedFormat = errors.New("gpures: unsupported texture format")
)
