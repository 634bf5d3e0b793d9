// Package device binds the native analog keyboard SDK.
//
// The SDK wrapper library is loaded at runtime from a configurable path, so
// the binary builds without cgo and without the SDK headers installed. All
// calls are synchronous and return whatever the driver currently has buffered.
package device

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// maxDeviceInfos bounds the device-info pointer array used for connectivity checks.
const maxDeviceInfos = 8

// SDK is a loaded analog SDK wrapper library.
type SDK struct {
	path   string
	handle uintptr

	initialise       func() int32
	uninitialise     func() int32
	setKeycodeMode   func(mode uint32) int32
	readAnalog       func(code uint16) float32
	readFullBuffer   func(codes *uint16, values *float32, length uint32) int32
	connectedDevices func(infos *uintptr, length uint32) int32

	initialised bool
}

// Open loads the SDK wrapper library at path and resolves its entry points.
// It does not initialise the SDK.
func Open(path string) (*SDK, error) {
	if path == "" {
		path = DefaultLibraryName()
	}
	handle, err := openLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
	}
	sdk := &SDK{path: path, handle: handle}
	bindings := []struct {
		name string
		fptr any
	}{
		{"wooting_analog_initialise", &sdk.initialise},
		{"wooting_analog_uninitialise", &sdk.uninitialise},
		{"wooting_analog_set_keycode_mode", &sdk.setKeycodeMode},
		{"wooting_analog_read_analog", &sdk.readAnalog},
		{"wooting_analog_read_full_buffer", &sdk.readFullBuffer},
		{"wooting_analog_get_connected_devices_info", &sdk.connectedDevices},
	}
	for _, b := range bindings {
		sym, err := lookupSymbol(handle, b.name)
		if err != nil {
			if cerr := closeLibrary(handle); cerr != nil {
				// Best-effort unload after a failed bind.
				_ = cerr
			}
			return nil, fmt.Errorf("failed to resolve %s in %s: %w", b.name, path, err)
		}
		purego.RegisterFunc(b.fptr, sym)
	}
	return sdk, nil
}

// Path returns the library path the SDK was loaded from.
func (s *SDK) Path() string {
	return s.path
}

// Initialise starts the SDK. On success it returns the number of connected devices.
func (s *SDK) Initialise() (int, error) {
	status := int(s.initialise())
	if status < 0 {
		return 0, &StatusError{Op: "wooting_analog_initialise", Code: status}
	}
	s.initialised = true
	return status, nil
}

// SetKeycodeMode switches the encoding used for all key codes.
func (s *SDK) SetKeycodeMode(mode KeycodeMode) error {
	if status := int(s.setKeycodeMode(uint32(mode))); status < 0 {
		return &StatusError{Op: "wooting_analog_set_keycode_mode", Code: status}
	}
	return nil
}

// IsConnected reports whether at least one supported device is attached.
func (s *SDK) IsConnected() (bool, error) {
	infos := make([]uintptr, maxDeviceInfos)
	return connectedFromStatus(int(s.connectedDevices(&infos[0], uint32(len(infos)))))
}

// connectedFromStatus maps the device-info call result: a device count, or a
// negative status where NoDevices is not an error.
func connectedFromStatus(n int) (bool, error) {
	switch {
	case n == ResultNoDevices:
		return false, nil
	case n < 0:
		return false, &StatusError{Op: "wooting_analog_get_connected_devices_info", Code: n}
	default:
		return n > 0, nil
	}
}

// ReadSingle returns the analog value of one key in [0, 1], or a negative
// value on error.
func (s *SDK) ReadSingle(code uint16) float32 {
	return s.readAnalog(code)
}

// ReadBuffer fills buf with the currently pressed keys and returns the number
// of populated slots, or a negative SDK status. Slots past the returned count
// are left untouched, so callers clear buf before each read. A buffer without
// slots yields ResultInvalidArgument.
func (s *SDK) ReadBuffer(buf *Buffer) int {
	if buf == nil || buf.Cap() == 0 || len(buf.Values) < buf.Cap() {
		return ResultInvalidArgument
	}
	return int(s.readFullBuffer(&buf.Codes[0], &buf.Values[0], uint32(buf.Cap())))
}

// Close uninitialises the SDK if needed and unloads the library.
func (s *SDK) Close() error {
	if s.initialised {
		s.initialised = false
		if status := int(s.uninitialise()); status < 0 {
			if cerr := closeLibrary(s.handle); cerr != nil {
				_ = cerr
			}
			return &StatusError{Op: "wooting_analog_uninitialise", Code: status}
		}
	}
	return closeLibrary(s.handle)
}
