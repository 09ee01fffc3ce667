// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"errors"
	"fmt"

	"github.com/go-lpc/adrv903x/cpu"
	"github.com/go-lpc/adrv903x/internal/bits"
	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

// Lo identifies one of the RF local oscillators.
type Lo uint8

const (
	Lo0 Lo = iota
	Lo1
)

func (lo Lo) String() string {
	switch lo {
	case Lo0:
		return "lo0"
	case Lo1:
		return "lo1"
	}
	return fmt.Sprintf("Lo(%d)", uint8(lo))
}

// LoOption holds the configuration-select flags of an LO change.
type LoOption uint32

const (
	LoOptionDelayedUpdate LoOption = 1 << iota
	LoOptionExtLo
)

// LoConfig describes an LO frequency change.
type LoConfig struct {
	Lo        Lo       `json:"lo"`
	Option    LoOption `json:"option"`
	Frequency uint64   `json:"frequency"` // Hz
}

// PllMux routes each group of 4 Tx and Rx channels to the RF0 (false) or
// RF1 (true) PLL.
type PllMux struct {
	Tx0To3 bool `json:"tx0_3"`
	Tx4To7 bool `json:"tx4_7"`
	Rx0To3 bool `json:"rx0_3"`
	Rx4To7 bool `json:"rx4_7"`
}

// maskSnapshot holds the fault masks modified around an LO change.
type maskSnapshot struct {
	pin1, pin0 [2]byte      // GP interrupt masks, byte9 and byte10
	rampdown   [numTx]uint8 // PLL unlock ramp-down masks
	txs        []int        // initialized Tx channels
}

func (dev *Device) saveMasks() maskSnapshot {
	var snap maskSnapshot
	dev.readBytes(regs.GPINT_MASK_PIN1_BYTE9, snap.pin1[:])
	dev.readBytes(regs.GPINT_MASK_PIN0_BYTE9, snap.pin0[:])
	for i := 0; i < numTx; i++ {
		if dev.cfg.initialized&TxChannel(i) == 0 {
			continue
		}
		snap.txs = append(snap.txs, i)
		snap.rampdown[i] = dev.readU8(regs.TxSlice(i) + regs.TX_PLL_UNLOCK_MASK)
	}
	return snap
}

func (dev *Device) restoreMasks(snap maskSnapshot) {
	dev.writeBytes(regs.GPINT_MASK_PIN1_BYTE9, snap.pin1[:])
	dev.writeBytes(regs.GPINT_MASK_PIN0_BYTE9, snap.pin0[:])
	for _, i := range snap.txs {
		dev.writeU8(regs.TxSlice(i)+regs.TX_PLL_UNLOCK_MASK, snap.rampdown[i])
	}
}

// LoFrequencySet changes the frequency of an LO.
//
// The PLL unlock and overrange interrupts and the PLL unlock Tx ramp-down
// are masked while the embedded CPU retunes the LO, then restored.
// When the CPU command fails, the masks are left as they were during the
// change unless the device was configured with WithMaskRestoreOnFailure.
func (dev *Device) LoFrequencySet(cfg LoConfig) (err error) {
	var (
		unlock9  uint8
		unlock10 uint8
		rdt      uint8
	)
	switch cfg.Lo {
	case Lo0:
		unlock10 = regs.GPINT_BYTE10_RF0_PLL_UNLOCK
		rdt = regs.RDT_RF0_PLL_UNLOCK >> 3
	case Lo1:
		unlock9 = regs.GPINT_BYTE9_RF1_PLL_UNLOCK
		rdt = regs.RDT_RF1_PLL_UNLOCK >> 3
	default:
		return fmt.Errorf("radio: invalid lo %v: %w", cfg.Lo, ErrRange)
	}
	if bw := dev.cfg.maxBW; bw > 0 && cfg.Frequency <= bw/2 {
		return fmt.Errorf(
			"radio: %v frequency %d Hz below half channel bandwidth (%d Hz): %w",
			cfg.Lo, cfg.Frequency, bw, ErrRange,
		)
	}

	snap := dev.saveMasks()
	if err := dev.ioerr(); err != nil {
		return fmt.Errorf("radio: could not read fault masks: %w", err)
	}

	var (
		over = uint8(regs.GPINT_BYTE9_RF0_OVERRANGE | regs.GPINT_BYTE9_RF1_OVERRANGE)
		pin1 = snap.pin1
		pin0 = snap.pin0
	)
	for _, p := range []*[2]byte{&pin1, &pin0} {
		p[0] |= unlock9 | over
		p[1] |= unlock10
	}
	if pin1 != snap.pin1 {
		dev.writeBytes(regs.GPINT_MASK_PIN1_BYTE9, pin1[:])
	}
	if pin0 != snap.pin0 {
		dev.writeBytes(regs.GPINT_MASK_PIN0_BYTE9, pin0[:])
	}
	for _, i := range snap.txs {
		if v := snap.rampdown[i] | rdt; v != snap.rampdown[i] {
			dev.writeU8(regs.TxSlice(i)+regs.TX_PLL_UNLOCK_MASK, v)
		}
	}
	if err := dev.ioerr(); err != nil {
		return fmt.Errorf("radio: could not mask faults: %w", err)
	}

	restored := false
	if dev.cfg.restoreOnFailure {
		defer func() {
			if err == nil || restored {
				return
			}
			dev.restoreMasks(snap)
			if e := dev.ioerr(); e != nil {
				dev.msg.Printf("could not restore fault masks: %+v", e)
			}
		}()
	}

	req := make([]byte, 13)
	req[0] = uint8(cfg.Lo)
	bits.PutU32(req, 1, uint32(cfg.Option))
	bits.PutU64(req, 5, cfg.Frequency)
	err = dev.command(cpu.CPU0, cpu.CmdSetLoFrequency, req, make([]byte, 4))
	if err != nil {
		return fmt.Errorf("radio: could not set %v frequency to %d Hz: %w", cfg.Lo, cfg.Frequency, err)
	}

	restored = true
	dev.restoreMasks(snap)
	if err := dev.ioerr(); err != nil {
		return fmt.Errorf("radio: could not restore fault masks: %w", err)
	}
	return nil
}

// LoFrequencyGet returns the current frequency of an LO, in Hz.
func (dev *Device) LoFrequencyGet(lo Lo) (uint64, error) {
	if lo != Lo0 && lo != Lo1 {
		return 0, fmt.Errorf("radio: invalid lo %v: %w", lo, ErrRange)
	}

	resp := make([]byte, 12)
	err := dev.command(cpu.CPU0, cpu.CmdGetLoFrequency, []byte{uint8(lo)}, resp)
	if err != nil {
		return 0, fmt.Errorf("radio: could not get %v frequency: %w", lo, err)
	}
	return bits.U64(resp, 4), nil
}

// CfgPllToChanCtrl routes the Tx and Rx channels to the RF PLLs.
func (dev *Device) CfgPllToChanCtrl(mux PllMux) error {
	req := []byte{
		b2u8(mux.Tx0To3), b2u8(mux.Tx4To7),
		b2u8(mux.Rx0To3), b2u8(mux.Rx4To7),
	}
	err := dev.command(cpu.CPU0, cpu.CmdSetChanToPlls, req, make([]byte, 4))
	if err != nil {
		return fmt.Errorf("radio: could not route channels to plls: %w", err)
	}
	return nil
}

// LoLoopFilter is the loop filter configuration of an LO synthesizer.
type LoLoopFilter struct {
	Bandwidth   uint16 `json:"bandwidth_khz"`    // loop bandwidth, in kHz
	PhaseMargin uint8  `json:"phase_margin_deg"` // in degrees
}

// Loop filter ranges.
const (
	MinLoopBandwidth = 60   // kHz
	MaxLoopBandwidth = 1000 // kHz
	MinPhaseMargin   = 45   // degrees
	MaxPhaseMargin   = 75   // degrees
)

// LoLoopFilterSet configures the loop filter of an LO.
func (dev *Device) LoLoopFilterSet(lo Lo, cfg LoLoopFilter) error {
	switch {
	case lo != Lo0 && lo != Lo1:
		return fmt.Errorf("radio: invalid lo %v: %w", lo, ErrRange)
	case cfg.Bandwidth < MinLoopBandwidth || cfg.Bandwidth > MaxLoopBandwidth:
		return fmt.Errorf("radio: invalid %v loop bandwidth %d kHz: %w", lo, cfg.Bandwidth, ErrRange)
	case cfg.PhaseMargin < MinPhaseMargin || cfg.PhaseMargin > MaxPhaseMargin:
		return fmt.Errorf("radio: invalid %v phase margin %d degrees: %w", lo, cfg.PhaseMargin, ErrRange)
	}

	req := make([]byte, 9)
	req[0] = uint8(lo)
	bits.PutU32(req, 1, uint32(cfg.Bandwidth)*1000)
	bits.PutU32(req, 5, uint32(cfg.PhaseMargin))
	err := dev.command(cpu.CPU0, cpu.CmdSetLoopFilter, req, make([]byte, 4))
	if err != nil {
		return fmt.Errorf("radio: could not set %v loop filter: %w", lo, err)
	}
	return nil
}

// LoLoopFilterGet returns the loop filter configuration of an LO.
func (dev *Device) LoLoopFilterGet(lo Lo) (LoLoopFilter, error) {
	if lo != Lo0 && lo != Lo1 {
		return LoLoopFilter{}, fmt.Errorf("radio: invalid lo %v: %w", lo, ErrRange)
	}

	resp := make([]byte, 12)
	err := dev.command(cpu.CPU0, cpu.CmdGetLoopFilter, []byte{uint8(lo)}, resp)
	if err != nil {
		return LoLoopFilter{}, fmt.Errorf("radio: could not get %v loop filter: %w", lo, err)
	}
	return LoLoopFilter{
		Bandwidth:   uint16(bits.U32(resp, 4) / 1000),
		PhaseMargin: uint8(bits.U32(resp, 8)),
	}, nil
}

// PllStatus holds one lock bit per PLL.
type PllStatus uint32

const (
	PllClk PllStatus = 1 << iota
	PllLo0
	PllLo1
	PllSerdes
)

// Locked reports whether all the PLLs of mask are locked.
func (st PllStatus) Locked(mask PllStatus) bool { return st&mask == mask }

func (st PllStatus) String() string {
	o := make([]byte, 0, 32)
	for i, name := range []string{"clk", "lo0", "lo1", "serdes"} {
		if i > 0 {
			o = append(o, ' ')
		}
		o = append(o, name...)
		if st&(1<<i) != 0 {
			o = append(o, "=locked"...)
		} else {
			o = append(o, "=unlocked"...)
		}
	}
	return string(o)
}

// PllStatusGet returns the lock status of the clock, LO and SERDES PLLs.
func (dev *Device) PllStatusGet() (PllStatus, error) {
	var st PllStatus
	for i, addr := range []int64{
		regs.CLKPLL_SYN_LOCK,
		regs.EAST_RFPLL_SYN_LOCK,
		regs.WEST_RFPLL_SYN_LOCK,
		regs.SERDES_PLL_SYN_LOCK,
	} {
		v := dev.readU8(addr)
		st |= PllStatus((v>>regs.PLL_SYN_LOCK_BIT)&1) << i
	}
	if err := dev.ioerr(); err != nil {
		return 0, fmt.Errorf("radio: could not read pll lock status: %w", err)
	}
	return st, nil
}

// RxTxLoFreq holds the LO driving each Rx and Tx channel and its
// frequency, in kHz.
type RxTxLoFreq struct {
	RxLo   [numRx]Lo     `json:"rx_lo"`
	RxFreq [numRx]uint32 `json:"rx_freq_khz"`
	TxLo   [numTx]Lo     `json:"tx_lo"`
	TxFreq [numTx]uint32 `json:"tx_freq_khz"`
}

// RxTxLoFreqGet returns the LO routing and frequency of all Rx and Tx
// channels.
func (dev *Device) RxTxLoFreqGet() (RxTxLoFreq, error) {
	const (
		rxLo   = 4
		txLo   = rxLo + numRx
		rxFreq = txLo + numTx
		txFreq = rxFreq + 4*numRx
	)
	var o RxTxLoFreq
	resp := make([]byte, txFreq+4*numTx)
	err := dev.command(cpu.CPU0, cpu.CmdGetRxTxLoFreq, nil, resp)
	if err != nil {
		return o, fmt.Errorf("radio: could not get rx/tx lo frequencies: %w", err)
	}
	for i := 0; i < numRx; i++ {
		o.RxLo[i] = Lo(resp[rxLo+i])
		o.RxFreq[i] = bits.U32(resp, rxFreq+4*i)
	}
	for i := 0; i < numTx; i++ {
		o.TxLo[i] = Lo(resp[txLo+i])
		o.TxFreq[i] = bits.U32(resp, txFreq+4*i)
	}
	return o, nil
}

// command sends cmd to the CPU id and checks the error code heading the
// response payload.
func (dev *Device) command(id cpu.ID, cmd cpu.Opcode, req, resp []byte) error {
	err := dev.cpu.Send(id, cmd, req, resp)
	if err != nil {
		dev.msg.Printf("%v command %v failed: %+v", id, cmd, err)
		cerr := &CPUCommandError{CPU: id, Cmd: cmd, Err: err}
		var st *cpu.Error
		if errors.As(err, &st) {
			cerr.Code = uint32(st.Status)
		}
		return cerr
	}
	if len(resp) < 4 {
		return nil
	}
	if code := bits.U32(resp, 0); code != 0 {
		dev.msg.Printf("%v command %v returned error code 0x%x", id, cmd, code)
		return &CPUCommandError{CPU: id, Cmd: cmd, Code: code}
	}
	return nil
}
