package device

import (
	"errors"
	"fmt"
)

// SDK result codes.
const (
	ResultOk                  = 1
	ResultUnInitialized       = -2000
	ResultNoDevices           = -1999
	ResultDeviceDisconnected  = -1998
	ResultFailure             = -1997
	ResultInvalidArgument     = -1996
	ResultNoPlugins           = -1995
	ResultFunctionNotFound    = -1994
	ResultNoMapping           = -1993
	ResultNotAvailable        = -1992
	ResultIncompatibleVersion = -1991
	ResultDLLNotFound         = -1990
)

var resultNames = map[int]string{
	ResultOk:                  "Ok",
	ResultUnInitialized:       "UnInitialized",
	ResultNoDevices:           "NoDevices",
	ResultDeviceDisconnected:  "DeviceDisconnected",
	ResultFailure:             "Failure",
	ResultInvalidArgument:     "InvalidArgument",
	ResultNoPlugins:           "NoPlugins",
	ResultFunctionNotFound:    "FunctionNotFound",
	ResultNoMapping:           "NoMapping",
	ResultNotAvailable:        "NotAvailable",
	ResultIncompatibleVersion: "IncompatibleVersion",
	ResultDLLNotFound:         "DLLNotFound",
}

// ResultName returns the symbolic name of an SDK result code.
func ResultName(code int) string {
	if name, ok := resultNames[code]; ok {
		return name
	}
	return "Unknown"
}

var (
	// ErrLibraryNotFound is returned when the SDK wrapper library cannot be loaded.
	ErrLibraryNotFound = errors.New("analog SDK library not found")
	// ErrNoDevice is returned when no supported device is attached.
	ErrNoDevice = errors.New("no analog device connected")
)

// StatusError reports a negative status returned by an SDK call.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %s (%d)", e.Op, ResultName(e.Code), e.Code)
}

// Is lets errors.Is(err, ErrNoDevice) match a NoDevices status.
func (e *StatusError) Is(target error) bool {
	return target == ErrNoDevice && e.Code == ResultNoDevices
}
