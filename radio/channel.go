// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"
	"strings"

	"github.com/go-lpc/adrv903x/internal/bits"
	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

// Channel is a mask of transceiver channels.
type Channel uint32

const (
	Rx0 Channel = 1 << iota
	Rx1
	Rx2
	Rx3
	Rx4
	Rx5
	Rx6
	Rx7
	ORx0
	ORx1
)

const (
	Tx0 Channel = 1 << (iota + txShift)
	Tx1
	Tx2
	Tx3
	Tx4
	Tx5
	Tx6
	Tx7
)

const (
	TxOff Channel = 0

	RxAll  Channel = 0x000ff
	ORxAll Channel = 0x00300
	TxAll  Channel = 0xff000

	orxShift = 8
	txShift  = 12
)

// TxChannel returns the Tx channel with index i.
func TxChannel(i int) Channel { return Tx0 << i }

// RxChannel returns the Rx channel with index i.
func RxChannel(i int) Channel { return Rx0 << i }

func (ch Channel) String() string {
	if ch == 0 {
		return "none"
	}
	var o []string
	for i := 0; i < numRx; i++ {
		if ch&RxChannel(i) != 0 {
			o = append(o, fmt.Sprintf("rx%d", i))
		}
	}
	for i, c := range []Channel{ORx0, ORx1} {
		if ch&c != 0 {
			o = append(o, fmt.Sprintf("orx%d", i))
		}
	}
	for i := 0; i < numTx; i++ {
		if ch&TxChannel(i) != 0 {
			o = append(o, fmt.Sprintf("tx%d", i))
		}
	}
	if rest := ch &^ (RxAll | ORxAll | TxAll); rest != 0 {
		o = append(o, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(o, "|")
}

// Readback selects the channel enable state read by RxTxEnableGet.
type Readback uint8

const (
	// ReadbackSPI returns the enables last requested through SPI.
	ReadbackSPI Readback = iota
	// ReadbackEffective returns the hardware enable state, whether
	// channels are under SPI or pin control.
	ReadbackEffective
)

// RxTxEnableSet enables or disables ORx, Rx and Tx channels.
// For each kind, only the channels in the select mask are modified: they
// are enabled when set in the enable mask, disabled otherwise.
func (dev *Device) RxTxEnableSet(orxSel, orxEn, rxSel, rxEn, txSel, txEn Channel) error {
	for _, v := range []struct {
		name string
		sel  Channel
		all  Channel
	}{
		{"orx", orxSel, ORxAll},
		{"rx", rxSel, RxAll},
		{"tx", txSel, TxAll},
	} {
		if v.sel&^v.all != 0 {
			return fmt.Errorf("radio: %s select mask 0x%x out of range: %w", v.name, uint32(v.sel), ErrInvalidChannelMask)
		}
		if miss := v.sel &^ dev.cfg.initialized; miss != 0 {
			return fmt.Errorf("radio: %s channels %v not initialized: %w", v.name, miss, ErrInvalidChannelMask)
		}
	}

	if rxSel != 0 {
		dev.updateU8(regs.RX_SPI_EN, uint8(rxSel), uint8(rxEn))
	}
	if orxSel != 0 {
		dev.updateU8(regs.ORX_SPI_EN, uint8(orxSel>>orxShift), uint8(orxEn>>orxShift))
	}
	if txSel != 0 {
		dev.updateU8(regs.TX_SPI_EN, uint8(txSel>>txShift), uint8(txEn>>txShift))
	}

	if err := dev.ioerr(); err != nil {
		return fmt.Errorf("radio: could not set channel enables: %w", err)
	}
	return nil
}

// RxTxEnableGet returns the enabled ORx, Rx and Tx channels.
func (dev *Device) RxTxEnableGet(mode Readback) (orx, rx, tx Channel, err error) {
	var addrs [3]int64
	switch mode {
	case ReadbackSPI:
		addrs = [3]int64{regs.ORX_SPI_EN, regs.RX_SPI_EN, regs.TX_SPI_EN}
	case ReadbackEffective:
		addrs = [3]int64{regs.ORX_ON, regs.RX_ON, regs.TX_ON}
	default:
		return 0, 0, 0, fmt.Errorf("radio: invalid channel enable readback %d: %w", mode, ErrRange)
	}

	orx = Channel(bits.FieldGet(0x03, dev.readU8(addrs[0]))) << orxShift
	rx = Channel(dev.readU8(addrs[1]))
	tx = Channel(dev.readU8(addrs[2])) << txShift

	if err := dev.ioerr(); err != nil {
		return 0, 0, 0, fmt.Errorf("radio: could not read channel enables: %w", err)
	}
	return orx, rx, tx, nil
}
