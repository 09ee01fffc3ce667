// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/internal/bits"
	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

// StreamProcError is an error latched by a stream processor.
type StreamProcError struct {
	Slice  string `json:"slice"`
	Stream uint32 `json:"stream"`
	Value  uint32 `json:"value"`
}

func (e StreamProcError) String() string {
	return fmt.Sprintf("%s: stream=%d error=0x%x", e.Slice, e.Stream, e.Value)
}

// errorScanOrder lists the stream processors in diagnostic order.
var errorScanOrder = func() []int {
	o := []int{0, 1}
	for i := 0; i < numRx; i++ {
		o = append(o, 10+i)
	}
	for i := 0; i < numTx; i++ {
		o = append(o, 2+i)
	}
	return append(o, 18, 19)
}()

// StreamProcErrorGet returns and clears the errors latched by the stream
// processors.
func (dev *Device) StreamProcErrorGet() ([]StreamProcError, error) {
	var errs []StreamProcError
	for _, i := range errorScanOrder {
		sl := sliceTable[i]
		stream, value, ok := sl.enc().latched(dev, sl.ctl)
		if err := dev.ioerr(); err != nil {
			return errs, fmt.Errorf("radio: could not read %s stream processor errors: %w", sl.name, err)
		}
		if !ok {
			continue
		}
		errs = append(errs, StreamProcError{Slice: sl.name, Stream: stream, Value: value})
	}
	return errs, nil
}

// StreamVersionGet returns the version of the loaded stream image, as
// reported by the device.
func (dev *Device) StreamVersionGet() (Version, error) {
	if !dev.loaded {
		return Version{}, fmt.Errorf("radio: could not read stream version: %w", ErrStreamNotLoaded)
	}

	var p [16]byte
	dev.readBytes(regs.STREAM_VERSION_ADDR, p[:])
	if err := dev.ioerr(); err != nil {
		return Version{}, fmt.Errorf("radio: could not read stream version: %w", err)
	}
	return Version{
		Major:       bits.U32(p[:], 0),
		Minor:       bits.U32(p[:], 4),
		Maintenance: bits.U32(p[:], 8),
		Build:       bits.U32(p[:], 12),
	}, nil
}
