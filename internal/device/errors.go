package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no device matches the key.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when a device lacks its source or serial number.
	ErrInvalidDevice = errors.New("device: invalid")
)
