// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

// StreamTrigger runs the stream id on the main stream processor.
func (dev *Device) StreamTrigger(id uint8) error {
	err := dev.cfg.cmd.Wait(func() (bool, error) {
		v := dev.readU8(regs.CORE_CMD_BUSY)
		if err := dev.ioerr(); err != nil {
			return false, err
		}
		return v&(1<<regs.CORE_CMD_BUSY_BIT) == 0, nil
	})
	if err != nil {
		return fmt.Errorf("radio: command interface busy, could not trigger stream 0x%02x: %w", id, err)
	}

	dev.writeU8(regs.CORE_EXT_CMD_BYTE1, id)
	dev.writeU8(regs.CORE_EXT_CMD, regs.STREAM_TRIGGER_OPCODE)
	if err := dev.ioerr(); err != nil {
		return fmt.Errorf("radio: could not trigger stream 0x%02x: %w", id, err)
	}
	return nil
}

// TxStreamTrigger runs the stream id on the stream processors of the Tx
// channels in chans.
func (dev *Device) TxStreamTrigger(chans Channel, id uint8) error {
	if chans == 0 || chans&^TxAll != 0 {
		return fmt.Errorf("radio: invalid tx stream trigger mask 0x%x: %w", uint32(chans), ErrInvalidChannelMask)
	}
	return dev.sliceStreamTrigger(uint8(chans>>txShift), id, regs.STREAM_MAIN_TRIGGER_TX_STREAM)
}

// RxStreamTrigger runs the stream id on the stream processors of the Rx
// channels in chans.
func (dev *Device) RxStreamTrigger(chans Channel, id uint8) error {
	if chans == 0 || chans&^RxAll != 0 {
		return fmt.Errorf("radio: invalid rx stream trigger mask 0x%x: %w", uint32(chans), ErrInvalidChannelMask)
	}
	return dev.sliceStreamTrigger(uint8(chans), id, regs.STREAM_MAIN_TRIGGER_RX_STREAM)
}

// sliceStreamTrigger hands the stream id and channel mask over to the main
// stream processor, which forwards the trigger to the slices.
func (dev *Device) sliceStreamTrigger(mask, id, main uint8) error {
	err := dev.cfg.slot.Wait(func() (bool, error) {
		v := dev.readU8(regs.Scratch(regs.SCRATCH_TRIGGER_SLICE_STREAM_NUM))
		if err := dev.ioerr(); err != nil {
			return false, err
		}
		return v == regs.TRIGGER_SLICE_IDLE, nil
	})
	if err != nil {
		return fmt.Errorf("radio: slice stream trigger busy, could not trigger stream 0x%02x: %w", id, err)
	}

	dev.writeU8(regs.Scratch(regs.SCRATCH_TRIGGER_SLICE_STREAM_ID), id)
	dev.writeU8(regs.Scratch(regs.SCRATCH_TRIGGER_SLICE_CHAN_MASK), mask)
	if err := dev.ioerr(); err != nil {
		return fmt.Errorf("radio: could not set slice stream trigger: %w", err)
	}

	return dev.StreamTrigger(main)
}
