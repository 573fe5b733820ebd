package core

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

var (
	// ErrObjectDisposed is returned by operations on a wrapper whose native object was released.
	ErrObjectDisposed = errors.New("object disposed")
	// ErrInvalidOperation is returned when the call is not valid in the current binding state.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrNotSupported is returned when the device capability profile forbids a request.
	ErrNotSupported = errors.New("not supported")
	// ErrArgumentOutOfRange is returned for counts, indices and offsets outside their range.
	ErrArgumentOutOfRange = errors.New("argument out of range")
	// ErrArgument is returned for otherwise invalid arguments.
	ErrArgument = errors.New("invalid argument")
	// ErrNativeCall is matched by every failure code returned from the native layer.
	ErrNativeCall = errors.New("native call failed")
	// ErrOutOfMemory is matched by native and staging allocation failures.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrDeviceLost is matched by native failures that require a device reset.
	ErrDeviceLost = errors.New("device lost")
)

// NotSupportedError carries the feature and limit that made a request
// exceed the active capability profile.
type NotSupportedError struct {
	Feature string
	Limit   string
	Profile native.Profile
}

func (e *NotSupportedError) Error() string {
	if e.Limit == "" {
		return fmt.Sprintf("%s is not supported by the %s profile", e.Feature, e.Profile)
	}
	return fmt.Sprintf("%s is not supported by the %s profile (limit %s)", e.Feature, e.Profile, e.Limit)
}

func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}

// NativeCallError wraps a failure code of the native layer.
type NativeCallError struct {
	Op   string
	Code native.Result
}

func (e *NativeCallError) Error() string {
	return fmt.Sprintf("%s: native call failed with %s (%d)", e.Op, e.Code, int32(e.Code))
}

func (e *NativeCallError) Is(target error) bool {
	switch target {
	case ErrNativeCall:
		return true
	case ErrOutOfMemory:
		return e.Code.IsOutOfMemory()
	case ErrDeviceLost:
		return e.Code.IsDeviceLost()
	}
	return false
}

// CheckResult converts a native status code into an error. Success codes return nil.
func CheckResult(op string, r native.Result) error {
	if r.Succeeded() {
		return nil
	}
	return errors.WithStack(&NativeCallError{Op: op, Code: r})
}

// NotSupported builds a capability profile violation.
func NotSupported(feature string, limit interface{}, profile native.Profile) error {
	var l string
	if limit != nil {
		l = fmt.Sprint(limit)
	}
	return errors.WithStack(&NotSupportedError{Feature: feature, Limit: l, Profile: profile})
}

func InvalidOperationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidOperation, format, args...)
}

func ObjectDisposedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrObjectDisposed, format, args...)
}

func ArgumentOutOfRangef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrArgumentOutOfRange, format, args...)
}

func Argumentf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrArgument, format, args...)
}

func OutOfMemoryf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrOutOfMemory, format, args...)
}
