// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/internal/bits"
)

// ioerr returns and clears the sticky transport error.
func (dev *Device) ioerr() error {
	err := dev.err
	dev.err = nil
	return err
}

func (dev *Device) readU8(addr int64) uint8 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = dev.bus.ReadAt(dev.buf[:1], addr)
	if dev.err != nil {
		dev.err = fmt.Errorf("radio: could not read register 0x%x: %w", addr, dev.err)
		return 0
	}
	return dev.buf[0]
}

func (dev *Device) writeU8(addr int64, v uint8) {
	if dev.err != nil {
		return
	}
	dev.buf[0] = v
	_, dev.err = dev.bus.WriteAt(dev.buf[:1], addr)
	if dev.err != nil {
		dev.err = fmt.Errorf("radio: could not write register 0x%x: %w", addr, dev.err)
		return
	}
}

func (dev *Device) readU32(addr int64) uint32 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = dev.bus.ReadAt(dev.buf[:4], addr)
	if dev.err != nil {
		dev.err = fmt.Errorf("radio: could not read register 0x%x: %w", addr, dev.err)
		return 0
	}
	return bits.U32(dev.buf[:4], 0)
}

func (dev *Device) writeU32(addr int64, v uint32) {
	if dev.err != nil {
		return
	}
	bits.PutU32(dev.buf[:4], 0, v)
	_, dev.err = dev.bus.WriteAt(dev.buf[:4], addr)
	if dev.err != nil {
		dev.err = fmt.Errorf("radio: could not write register 0x%x: %w", addr, dev.err)
		return
	}
}

func (dev *Device) readBytes(addr int64, p []byte) {
	if dev.err != nil {
		return
	}
	_, dev.err = dev.bus.ReadAt(p, addr)
	if dev.err != nil {
		dev.err = fmt.Errorf("radio: could not read %d bytes at 0x%x: %w", len(p), addr, dev.err)
		return
	}
}

func (dev *Device) writeBytes(addr int64, p []byte) {
	if dev.err != nil {
		return
	}
	_, dev.err = dev.bus.WriteAt(p, addr)
	if dev.err != nil {
		dev.err = fmt.Errorf("radio: could not write %d bytes at 0x%x: %w", len(p), addr, dev.err)
		return
	}
}

// updateU8 replaces the bits selected by mask in the 8-bit register at addr.
func (dev *Device) updateU8(addr int64, mask, v uint8) {
	old := dev.readU8(addr)
	dev.writeU8(addr, bits.Update(old, mask, v))
}
