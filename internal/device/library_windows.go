//go:build windows

package device

import "golang.org/x/sys/windows"

// DefaultLibraryName returns the platform file name of the SDK wrapper.
func DefaultLibraryName() string {
	return "wooting_analog_wrapper.dll"
}

func openLibrary(path string) (uintptr, error) {
	h, err := windows.LoadLibrary(path)
	return uintptr(h), err
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(handle), name)
}

func closeLibrary(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}
