// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/cpu"
	"github.com/go-lpc/adrv903x/internal/bits"
	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

// PresetMapping selects the targets of a preset: a mask of Tx channel
// indices (bit n for Tx n) or, with ExtendedMapping set, a mask of mapping
// states (bit n for state n).
type PresetMapping uint32

const ExtendedMapping PresetMapping = 0x100

// PresetTx returns the preset mapping selecting the Tx channels of chans.
func PresetTx(chans Channel) PresetMapping {
	return PresetMapping((chans & TxAll) >> txShift)
}

const (
	maxPresetAttenDB = 16
	minPresetNcoKHz  = -8388608
	maxPresetNcoKHz  = 8388607
)

// orxTrmAtten converts preset attenuations, in dB, to ORx attenuator
// control words.
var orxTrmAtten = [maxPresetAttenDB + 1]uint8{
	0x00, 0x03, 0x06, 0x0a, 0x0d, 0x10, 0x14, 0x17,
	0x1a, 0x1e, 0x21, 0x24, 0x28, 0x2b, 0x2e, 0x32,
	0x35,
}

func orxTrmAttenToDB(v uint8) uint8 {
	var (
		best = 0
		dist = 0x100
	)
	for db, w := range orxTrmAtten {
		d := int(w) - int(v)
		if d < 0 {
			d = -d
		}
		if d < dist {
			best, dist = db, d
		}
	}
	return uint8(best)
}

func (m PresetMapping) check(immediate bool) (mask uint8, ext bool, err error) {
	ext = m&ExtendedMapping != 0
	sel := m &^ ExtendedMapping
	if sel == 0 || sel > 0xff {
		return 0, ext, fmt.Errorf("radio: invalid preset mapping 0x%x: %w", uint32(m), ErrInvalidChannelMask)
	}
	if immediate && ext {
		return 0, ext, fmt.Errorf("radio: preset mapping 0x%x: %w", uint32(m), ErrInvalidForExtendedMapping)
	}
	return uint8(sel), ext, nil
}

// sendPreset sends a preset command for the channels in mask, to each CPU
// owning one of them, or to CPU0 for extended (state) mappings.
func (dev *Device) sendPreset(cmd cpu.Opcode, mask uint8, ext bool, req func(sel uint8) []byte) error {
	if ext {
		return dev.command(cpu.CPU0, cmd, req(mask), make([]byte, 4))
	}

	for id := cpu.CPU0; id < cpu.NumCPUs; id++ {
		var sel uint8
		for i, c := range dev.cfg.cpus {
			if c == id && mask&(1<<i) != 0 {
				sel |= 1 << i
			}
		}
		if sel == 0 {
			continue
		}
		err := dev.command(id, cmd, req(sel), make([]byte, 4))
		if err != nil {
			return err
		}
	}
	return nil
}

// TxToOrxPresetAttenSet sets the ORx attenuation, in dB, applied when the
// selected Tx channels or mapping states are observed.
// Immediate updates are only possible for Tx channel selections.
func (dev *Device) TxToOrxPresetAttenSet(m PresetMapping, attenDB uint8, immediate bool) error {
	mask, ext, err := m.check(immediate)
	if err != nil {
		return err
	}
	if attenDB > maxPresetAttenDB {
		return fmt.Errorf("radio: invalid preset attenuation %d dB: %w", attenDB, ErrRange)
	}

	err = dev.sendPreset(cpu.CmdSetTxToOrxPresetAtten, mask, ext, func(sel uint8) []byte {
		return []byte{sel, attenDB, b2u8(immediate), b2u8(ext)}
	})
	if err != nil {
		return fmt.Errorf("radio: could not set preset attenuation: %w", err)
	}
	return nil
}

// TxToOrxPresetAttenGet returns the ORx attenuation, in dB, preset for the
// Tx channel or mapping state v.
func (dev *Device) TxToOrxPresetAttenGet(v MapVal) (uint8, error) {
	k, ok := v.preset()
	if !ok {
		return 0, fmt.Errorf("radio: no preset attenuation for %v: %w", v, ErrRange)
	}
	w := dev.readU8(regs.Scratch(regs.SCRATCH_ORX_ATTEN + 2*k))
	if err := dev.ioerr(); err != nil {
		return 0, fmt.Errorf("radio: could not read preset attenuation for %v: %w", v, err)
	}
	return orxTrmAttenToDB(w), nil
}

// TxToOrxPresetNcoSet sets the ORx ADC and datapath NCO frequencies, in kHz,
// applied when the selected Tx channels or mapping states are observed.
func (dev *Device) TxToOrxPresetNcoSet(m PresetMapping, adcKHz, dpKHz int32, immediate bool) error {
	mask, ext, err := m.check(immediate)
	if err != nil {
		return err
	}
	for _, f := range []int32{adcKHz, dpKHz} {
		if f < minPresetNcoKHz || f > maxPresetNcoKHz {
			return fmt.Errorf("radio: invalid preset nco frequency %d kHz: %w", f, ErrRange)
		}
	}

	err = dev.sendPreset(cpu.CmdSetTxToOrxPresetNco, mask, ext, func(sel uint8) []byte {
		req := make([]byte, 12)
		req[0] = sel
		req[1] = b2u8(immediate)
		req[2] = b2u8(ext)
		bits.PutU32(req, 4, uint32(adcKHz))
		bits.PutU32(req, 8, uint32(dpKHz))
		return req
	})
	if err != nil {
		return fmt.Errorf("radio: could not set preset nco: %w", err)
	}
	return nil
}

// TxToOrxPresetNcoGet returns the ORx ADC and datapath NCO frequencies,
// in kHz, preset for the Tx channel or mapping state v.
func (dev *Device) TxToOrxPresetNcoGet(v MapVal) (adcKHz, dpKHz int32, err error) {
	k, ok := v.preset()
	if !ok {
		return 0, 0, fmt.Errorf("radio: no preset nco for %v: %w", v, ErrRange)
	}
	adcKHz = dev.readScratch24(regs.SCRATCH_ORX_NCO_ADC_MSB + 6*k)
	dpKHz = dev.readScratch24(regs.SCRATCH_ORX_NCO_DP_MSB + 6*k)
	if err := dev.ioerr(); err != nil {
		return 0, 0, fmt.Errorf("radio: could not read preset nco for %v: %w", v, err)
	}
	return adcKHz, dpKHz, nil
}

// readScratch24 reads the signed 24-bit value stored MSB first in the
// scratch registers msb, msb-1 and msb-2.
func (dev *Device) readScratch24(msb int) int32 {
	var v uint32
	for i := 0; i < 3; i++ {
		v = v<<8 | uint32(dev.readU8(regs.Scratch(msb-i)))
	}
	return bits.SignExtend(v, 24)
}

func b2u8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
