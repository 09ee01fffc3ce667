// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

// MappingMode is the width of the Tx to ORx mapping word.
type MappingMode uint8

const (
	Mapping2Bit    MappingMode = 2
	Mapping3Bit    MappingMode = 3
	Mapping4Bit    MappingMode = 4
	Mapping6Bit    MappingMode = 6
	Mapping8Bit    MappingMode = 8
	MappingDfeCtrl MappingMode = 32
)

func (m MappingMode) String() string {
	switch m {
	case Mapping2Bit, Mapping3Bit, Mapping4Bit, Mapping6Bit, Mapping8Bit:
		return fmt.Sprintf("%d-bit", uint8(m))
	case MappingDfeCtrl:
		return "dfe-ctrl"
	}
	return fmt.Sprintf("MappingMode(%d)", uint8(m))
}

// mask returns the bits of a mapping word valid in mode m.
func (m MappingMode) mask() uint8 {
	switch m {
	case Mapping2Bit:
		return 0x03
	case Mapping3Bit:
		return 0x07
	case Mapping4Bit:
		return 0x0f
	case Mapping6Bit:
		return 0x3f
	}
	return 0xff
}

func (m MappingMode) valid() bool {
	switch m {
	case Mapping2Bit, Mapping3Bit, Mapping4Bit, Mapping6Bit, Mapping8Bit, MappingDfeCtrl:
		return true
	}
	return false
}

// MapVal is an entry of a Tx to ORx mapping pin table: a Tx channel index,
// a preset state, or no mapping.
type MapVal uint8

const (
	MapTx0 MapVal = iota
	MapTx1
	MapTx2
	MapTx3
	MapTx4
	MapTx5
	MapTx6
	MapTx7
	MapNone
	MapState0
	MapState1
	MapState2
	MapState3
	MapState4
	MapState5
	MapNoChange
)

func (v MapVal) String() string {
	switch {
	case v <= MapTx7:
		return fmt.Sprintf("tx%d", uint8(v))
	case v == MapNone:
		return "none"
	case v >= MapState0 && v <= MapState5:
		return fmt.Sprintf("state%d", uint8(v-MapState0))
	case v == MapNoChange:
		return "no-change"
	}
	return fmt.Sprintf("MapVal(0x%x)", uint8(v))
}

// preset returns the index of v in the preset attenuation and NCO tables.
func (v MapVal) preset() (int, bool) {
	switch {
	case v <= MapTx7:
		return int(v), true
	case v >= MapState0 && v <= MapState5:
		return int(v-MapState0) + numTx, true
	}
	return 0, false
}

// TxToOrxMappingConfig describes how Tx channels are routed to the
// observation receivers.
type TxToOrxMappingConfig struct {
	Mode               MappingMode
	Observability      uint16
	PinTableOrx0       [MappingPinTableSize]MapVal
	PinTableOrx1       [MappingPinTableSize]MapVal
	AutoSwitchOrxAtten bool
	AutoSwitchOrxNco   bool
	GpioSelect         [8]GpioPin // GPIO driving each mapping bit
}

func (cfg *TxToOrxMappingConfig) check() error {
	if !cfg.Mode.valid() {
		return fmt.Errorf("radio: invalid tx to orx mapping mode %v: %w", cfg.Mode, ErrRange)
	}
	for i := range cfg.PinTableOrx0 {
		for j, v := range []MapVal{cfg.PinTableOrx0[i], cfg.PinTableOrx1[i]} {
			if v > MapNoChange {
				return fmt.Errorf("radio: invalid orx%d pin table entry %d (%v): %w", j, i, v, ErrRange)
			}
		}
	}
	for i, pin := range cfg.GpioSelect {
		if pin != GpioInvalid && int(pin) >= NumGpios {
			return fmt.Errorf("radio: invalid gpio %d for mapping bit %d: %w", pin, i, ErrRange)
		}
	}
	return nil
}

// MappingContext holds the Tx to ORx mapping configuration of a device.
type MappingContext struct {
	cfg TxToOrxMappingConfig
	ok  bool
}

func (ctx *MappingContext) install(cfg TxToOrxMappingConfig) {
	ctx.cfg = cfg
	ctx.ok = true
}

// TxToOrxMappingInit validates and installs a Tx to ORx mapping
// configuration, replacing the one read from the stream image.
func (dev *Device) TxToOrxMappingInit(cfg TxToOrxMappingConfig) error {
	err := cfg.check()
	if err != nil {
		return err
	}
	for i, pin := range cfg.GpioSelect {
		if pin != GpioInvalid && dev.inputs[pin] != GpioInvalid {
			return fmt.Errorf(
				"radio: gpio %d of mapping bit %d used by %v: %w",
				pin, i, GpioSignalStreamInput, ErrGpioInUse,
			)
		}
	}
	dev.mapping.install(cfg)
	return nil
}

// TxToOrxMappingConfigGet returns a copy of the Tx to ORx mapping
// configuration.
func (dev *Device) TxToOrxMappingConfigGet() (TxToOrxMappingConfig, error) {
	if !dev.mapping.ok {
		return TxToOrxMappingConfig{}, ErrMappingNotConfigured
	}
	return dev.mapping.cfg, nil
}

// TxToOrxMappingSet applies the mapping word mapping, which must fit in
// the configured mapping mode.
func (dev *Device) TxToOrxMappingSet(mapping uint8) error {
	if !dev.mapping.ok {
		return fmt.Errorf("radio: could not set tx to orx mapping: %w", ErrMappingNotConfigured)
	}
	mode := dev.mapping.cfg.Mode
	if mask := mode.mask(); mapping&mask != mapping {
		return fmt.Errorf(
			"radio: tx to orx mapping 0x%02x invalid in %v mode: %w",
			mapping, mode, ErrRange,
		)
	}

	dev.writeU8(regs.Scratch(regs.SCRATCH_TX_TO_ORX_MAPPING), mapping)
	if err := dev.ioerr(); err != nil {
		return fmt.Errorf("radio: could not write tx to orx mapping: %w", err)
	}

	err := dev.StreamTrigger(regs.STREAM_MAIN_TX_TO_ORX_MAP)
	if err != nil {
		return fmt.Errorf("radio: could not apply tx to orx mapping 0x%02x: %w", mapping, err)
	}
	return nil
}

// TxToOrxMappingGet returns the Tx channel currently routed to orx,
// or TxOff.
func (dev *Device) TxToOrxMappingGet(orx Channel) (Channel, error) {
	var shift uint
	switch orx {
	case ORx0:
		shift = 0
	case ORx1:
		shift = 4
	default:
		return TxOff, fmt.Errorf("radio: invalid orx channel %v: %w", orx, ErrInvalidChannelMask)
	}

	v := dev.readU8(regs.CORE_ORX_MAP)
	if err := dev.ioerr(); err != nil {
		return TxOff, fmt.Errorf("radio: could not read tx to orx mapping: %w", err)
	}

	nib := (v >> shift) & 0x0f
	if nib&0x08 != 0 {
		return TxOff, nil
	}
	return TxChannel(int(nib & 0x07)), nil
}
