// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")

	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecodeOpen        = errors.New("decoder open failed")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrFormatNegotiation = errors.New("stream format negotiation failed")
	ErrHogging           = errors.New("device hogging failed")
	ErrConverter         = errors.New("sample rate converter failed")
	ErrSeekNotSupported  = errors.New("source cannot seek")
)

// UnsupportedFormatError is returned when no registered decoder declares the
// extension of a file.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: no decoder for extension %q", e.Path, e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// DecodeOpenError wraps a failure to open or parse a file that has a decoder.
type DecodeOpenError struct {
	Path string
	Err  error
}

func (e *DecodeOpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *DecodeOpenError) Unwrap() error        { return e.Err }
func (e *DecodeOpenError) Is(target error) bool { return target == ErrDecodeOpen }

// DeviceUnavailableError reports a device that vanished or cannot be opened.
type DeviceUnavailableError struct {
	UID string
	Err error
}

func (e *DeviceUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("device %q unavailable", e.UID)
	}
	return fmt.Sprintf("device %q unavailable: %v", e.UID, e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error        { return e.Err }
func (e *DeviceUnavailableError) Is(target error) bool { return target == ErrDeviceUnavailable }

// FormatNegotiationError reports a stream format the device refused.
type FormatNegotiationError struct {
	Want StreamFormat
	Err  error
}

func (e *FormatNegotiationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot set stream format %s", e.Want)
	}
	return fmt.Sprintf("cannot set stream format %s: %v", e.Want, e.Err)
}

func (e *FormatNegotiationError) Unwrap() error        { return e.Err }
func (e *FormatNegotiationError) Is(target error) bool { return target == ErrFormatNegotiation }

// HoggingError reports that exclusive access to a device was refused.
type HoggingError struct {
	UID string
	Err error
}

func (e *HoggingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot hog device %q", e.UID)
	}
	return fmt.Sprintf("cannot hog device %q: %v", e.UID, e.Err)
}

func (e *HoggingError) Unwrap() error        { return e.Err }
func (e *HoggingError) Is(target error) bool { return target == ErrHogging }

// ConverterError wraps a failure inside a sample rate converter engine.
type ConverterError struct {
	Engine string
	Err    error
}

func (e *ConverterError) Error() string {
	return fmt.Sprintf("%s converter: %v", e.Engine, e.Err)
}

func (e *ConverterError) Unwrap() error        { return e.Err }
func (e *ConverterError) Is(target error) bool { return target == ErrConverter }
