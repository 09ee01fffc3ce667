// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the ADRV903X transceiver used by
// the radio control code.
package regs // import "github.com/go-lpc/adrv903x/radio/internal/regs"

// SPI-only (8-bit) core registers.
const (
	CORE_MAIN_STREAM_CTL = 0x00000150
	CORE_KFA_STREAM_CTL  = 0x00000158

	CORE_STREAM_BYTE0_OFFSET              = 1
	CORE_STREAM_BYTE1_OFFSET              = 2
	CORE_STREAM_LAST_STREAM_NUMBER_OFFSET = 3
	CORE_STREAM_DBG_RDBK_MODE_OFFSET      = 4
	CORE_STREAM_ERROR_OFFSET              = 5
	CORE_STREAM_ERRORED_STREAM_OFFSET     = 6
	CORE_STREAM_RDBK_ERROR_VAL_OFFSET     = 7

	CORE_STREAM_CTL_DEFAULT = 0x80
	CORE_STREAM_RESET_BIT   = 0

	// CPU0 external command interface, used to trigger streams.
	CORE_EXT_CMD_BYTE1 = 0x00000161
	CORE_EXT_CMD       = 0x00000162
	CORE_CMD_BUSY      = 0x00000163
	CORE_CMD_BUSY_BIT  = 0

	STREAM_TRIGGER_OPCODE = 0x30

	// Tx to ORx mapping readback: ORx0 on bits [3:0], ORx1 on bits [7:4].
	CORE_ORX_MAP = 0x00000170

	// Stream scratch registers, one byte each.
	CORE_STREAM_SCRATCH_BASE = 0x00000200
)

// Scratch register indices.
const (
	SCRATCH_TX_TO_ORX_MAPPING        = 6
	SCRATCH_ORX_NCO_ADC_MSB          = 44  // + 6*k
	SCRATCH_ORX_NCO_DP_MSB           = 47  // + 6*k
	SCRATCH_ORX_ATTEN                = 138 // + 2*k
	SCRATCH_TRIGGER_SLICE_STREAM_NUM = 203
	SCRATCH_TRIGGER_SLICE_STREAM_ID  = 204
	SCRATCH_TRIGGER_SLICE_CHAN_MASK  = 205

	TRIGGER_SLICE_IDLE = 0xff
)

// Streams run by the main stream processor.
const (
	STREAM_MAIN_TX_TO_ORX_MAP     = 0x26
	STREAM_MAIN_TRIGGER_TX_STREAM = 0x2a
	STREAM_MAIN_TRIGGER_RX_STREAM = 0x2b
)

// Channel enables, SPI-mode request and effective state.
const (
	RX_SPI_EN  = 0x00000120
	ORX_SPI_EN = 0x00000121
	TX_SPI_EN  = 0x00000122

	RX_ON  = 0x00000124
	ORX_ON = 0x00000125
	TX_ON  = 0x00000126
)

// General purpose interrupt masks, 2 bytes (byte9, byte10) per pin.
const (
	GPINT_MASK_PIN0_BYTE9 = 0x00000190
	GPINT_MASK_PIN1_BYTE9 = 0x000001a0

	GPINT_BYTE9_RF1_PLL_UNLOCK  = 1 << 7
	GPINT_BYTE9_RF1_OVERRANGE   = 1 << 4
	GPINT_BYTE9_RF0_OVERRANGE   = 1 << 5
	GPINT_BYTE10_RF0_PLL_UNLOCK = 1 << 0
)

// PLL synthesizer lock status, bit 0 of each register.
const (
	CLKPLL_SYN_LOCK     = 0x000001c0
	EAST_RFPLL_SYN_LOCK = 0x000001c1 // LO0
	WEST_RFPLL_SYN_LOCK = 0x000001c2 // LO1
	SERDES_PLL_SYN_LOCK = 0x000001c3
	PLL_SYN_LOCK_BIT    = 0
)

// Stream processor GPIO inputs: one enable bit per GPIO, 3 bytes.
const GPIO_STREAM_INPUT_EN = 0x000001b0

// Ramp-down detector events, as reported by the Tx PA protection block.
const (
	RDT_RF0_PLL_UNLOCK = 0x08
	RDT_RF1_PLL_UNLOCK = 0x10
)

// Per-slice AHB banks.
const (
	TX_SLICE_BASE    = 0x60800000
	RX_SLICE_BASE    = 0x61800000
	ORX_SLICE_BASE   = 0x62800000
	SLICE_STRIDE     = 0x00100000
	SLICE_STREAM_CTL = 0x000000c0

	// Offsets from a slice stream control register.
	SLICE_STREAM_BASE_OFFSET    = 0x04
	SLICE_DBG_RDBK_MODE_OFFSET  = 0x08
	SLICE_STREAM_ERROR_OFFSET   = 0x0c
	SLICE_ERRORED_STREAM_OFFSET = 0x10
	SLICE_RDBK_ERROR_VAL_OFFSET = 0x14

	SLICE_STREAM_RESET_BIT = 0
	SLICE_BYTE0_BIT        = 0
	SLICE_BYTE1_BIT        = 8
	SLICE_LAST_STREAM_BIT  = 16

	// Tx PA protection: ramp-down on PLL unlock mask, one byte.
	TX_PLL_UNLOCK_MASK = 0x00000050
)

// STREAM_VERSION_ADDR holds the stream image version, 4 words.
const STREAM_VERSION_ADDR = 0x46a00008

// TxSlice returns the base of the AHB bank of Tx channel i.
func TxSlice(i int) int64 { return TX_SLICE_BASE + int64(i)*SLICE_STRIDE }

// RxSlice returns the base of the AHB bank of Rx channel i.
func RxSlice(i int) int64 { return RX_SLICE_BASE + int64(i)*SLICE_STRIDE }

// OrxSlice returns the base of the AHB bank of ORx channel i.
func OrxSlice(i int) int64 { return ORX_SLICE_BASE + int64(i)*SLICE_STRIDE }

// Scratch returns the address of stream scratch register i.
func Scratch(i int) int64 { return CORE_STREAM_SCRATCH_BASE + int64(i) }
