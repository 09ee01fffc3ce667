// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"errors"
	"fmt"

	"github.com/go-lpc/adrv903x/cpu"
	"github.com/go-lpc/adrv903x/internal/poll"
)

var (
	ErrUnalignedOffset    = errors.New("radio: byte offset not a multiple of 4")
	ErrUnalignedLength    = errors.New("radio: byte count not a non-zero multiple of 4")
	ErrInsufficientHeader = errors.New("radio: insufficient stream image header data")
	ErrInvalidSliceTable  = errors.New("radio: invalid stream image slice table")
	ErrNoImageHeader      = errors.New("radio: no stream image header loaded")
	ErrUnexpectedOffset   = errors.New("radio: unexpected stream image offset")
	ErrStreamNotLoaded    = errors.New("radio: stream image not loaded")

	ErrInvalidChannelMask        = errors.New("radio: invalid channel mask")
	ErrInvalidForExtendedMapping = errors.New("radio: immediate update invalid for extended mapping")
	ErrMappingNotConfigured      = errors.New("radio: tx to orx mapping not configured")
	ErrRange                     = errors.New("radio: value out of range")
	ErrGpioInUse                 = errors.New("radio: gpio already in use")

	ErrTimeout = poll.ErrTimeout
)

// VersionRangeError is returned when a stream image is older than the
// minimum supported version.
type VersionRangeError struct {
	Got Version
	Min Version
}

func (e *VersionRangeError) Error() string {
	return fmt.Sprintf("radio: stream image version %v older than minimum %v", e.Got, e.Min)
}

// CPUCommandError is returned when a command sent to an embedded CPU
// fails, either in transport or with a non-zero error code.
type CPUCommandError struct {
	CPU  cpu.ID
	Cmd  cpu.Opcode
	Code uint32 // command error code, when the command ran
	Err  error  // transport error
}

func (e *CPUCommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("radio: %v command %v failed: %+v", e.CPU, e.Cmd, e.Err)
	}
	return fmt.Sprintf("radio: %v command %v failed with error code 0x%x", e.CPU, e.Cmd, e.Code)
}

func (e *CPUCommandError) Unwrap() error { return e.Err }
