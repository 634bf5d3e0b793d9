//go:build darwin || linux

package device

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// DefaultLibraryName returns the platform file name of the SDK wrapper.
func DefaultLibraryName() string {
	if runtime.GOOS == "darwin" {
		return "libwooting_analog_wrapper.dylib"
	}
	return "libwooting_analog_wrapper.so"
}

func openLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func closeLibrary(handle uintptr) error {
	return purego.Dlclose(handle)
}
