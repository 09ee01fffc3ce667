// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

// SliceKind is the register layout family of a stream processor.
type SliceKind uint8

const (
	// CoreSlice processors are controlled through 8-bit SPI-only registers.
	CoreSlice SliceKind = iota
	// DataSlice processors (Tx, Rx, ORx) are controlled through 32-bit
	// AHB registers.
	DataSlice
)

func (k SliceKind) String() string {
	switch k {
	case CoreSlice:
		return "core"
	case DataSlice:
		return "data"
	}
	return fmt.Sprintf("SliceKind(%d)", uint8(k))
}

// sliceEncoding programs the control registers of one family of stream
// processors.
type sliceEncoding interface {
	// reset holds the processor in reset while its image is written.
	reset(dev *Device, ctl int64)
	// arm programs the stream base and last stream number, and releases
	// the reset.
	arm(dev *Device, ctl int64, base uint32, nstreams uint8)
	// latched returns and clears the error latched by the processor.
	latched(dev *Device, ctl int64) (stream, value uint32, ok bool)
}

var encodings = [...]sliceEncoding{
	CoreSlice: coreEncoding{},
	DataSlice: dataEncoding{},
}

type coreEncoding struct{}

func (coreEncoding) reset(dev *Device, ctl int64) {
	dev.writeU8(ctl, regs.CORE_STREAM_CTL_DEFAULT|1<<regs.CORE_STREAM_RESET_BIT)
}

func (coreEncoding) arm(dev *Device, ctl int64, base uint32, nstreams uint8) {
	dev.writeU8(ctl+regs.CORE_STREAM_BYTE0_OFFSET, uint8(base))
	dev.writeU8(ctl+regs.CORE_STREAM_BYTE1_OFFSET, uint8(base>>8))
	dev.writeU8(ctl+regs.CORE_STREAM_LAST_STREAM_NUMBER_OFFSET, nstreams-1)
	dev.writeU8(ctl, regs.CORE_STREAM_CTL_DEFAULT)
}

func (coreEncoding) latched(dev *Device, ctl int64) (stream, value uint32, ok bool) {
	dev.writeU8(ctl+regs.CORE_STREAM_DBG_RDBK_MODE_OFFSET, 1)
	if dev.readU8(ctl+regs.CORE_STREAM_ERROR_OFFSET)&1 == 0 {
		return 0, 0, false
	}
	stream = uint32(dev.readU8(ctl + regs.CORE_STREAM_ERRORED_STREAM_OFFSET))
	value = uint32(dev.readU8(ctl + regs.CORE_STREAM_RDBK_ERROR_VAL_OFFSET))
	dev.writeU8(ctl+regs.CORE_STREAM_ERRORED_STREAM_OFFSET, 0x0f)
	dev.writeU8(ctl+regs.CORE_STREAM_ERROR_OFFSET, 1)
	return stream, value, true
}

type dataEncoding struct{}

func (dataEncoding) reset(dev *Device, ctl int64) {
	dev.writeU32(ctl, 1<<regs.SLICE_STREAM_RESET_BIT)
}

func (dataEncoding) arm(dev *Device, ctl int64, base uint32, nstreams uint8) {
	v := (base&0xff)<<regs.SLICE_BYTE0_BIT |
		((base>>8)&0xff)<<regs.SLICE_BYTE1_BIT |
		uint32(nstreams-1)<<regs.SLICE_LAST_STREAM_BIT
	dev.writeU32(ctl+regs.SLICE_STREAM_BASE_OFFSET, v)
	dev.writeU32(ctl, 0)
}

func (dataEncoding) latched(dev *Device, ctl int64) (stream, value uint32, ok bool) {
	dev.writeU32(ctl+regs.SLICE_DBG_RDBK_MODE_OFFSET, 1)
	if dev.readU32(ctl+regs.SLICE_STREAM_ERROR_OFFSET)&1 == 0 {
		return 0, 0, false
	}
	stream = dev.readU32(ctl + regs.SLICE_ERRORED_STREAM_OFFSET)
	value = dev.readU32(ctl + regs.SLICE_RDBK_ERROR_VAL_OFFSET)
	dev.writeU32(ctl+regs.SLICE_ERRORED_STREAM_OFFSET, 0x0f)
	dev.writeU32(ctl+regs.SLICE_STREAM_ERROR_OFFSET, 1)
	return stream, value, true
}

// slice describes one of the stream processors.
type slice struct {
	name string
	kind SliceKind
	ctl  int64   // stream control register
	mask Channel // owning channels
}

func (s slice) enc() sliceEncoding { return encodings[s.kind] }

// sliceTable lists the stream processors in stream image order.
// The kfa processor is owned by no channel: its image is never written.
var sliceTable = func() [NumSlices]slice {
	var tbl [NumSlices]slice
	tbl[0] = slice{name: "main", kind: CoreSlice, ctl: regs.CORE_MAIN_STREAM_CTL, mask: 0xffffffff}
	tbl[1] = slice{name: "kfa", kind: CoreSlice, ctl: regs.CORE_KFA_STREAM_CTL, mask: 0}
	for i := 0; i < numTx; i++ {
		tbl[2+i] = slice{
			name: fmt.Sprintf("tx%d", i),
			kind: DataSlice,
			ctl:  regs.TxSlice(i) + regs.SLICE_STREAM_CTL,
			mask: TxChannel(i),
		}
	}
	for i := 0; i < numRx; i++ {
		tbl[10+i] = slice{
			name: fmt.Sprintf("rx%d", i),
			kind: DataSlice,
			ctl:  regs.RxSlice(i) + regs.SLICE_STREAM_CTL,
			mask: RxChannel(i),
		}
	}
	for i, ch := range []Channel{ORx0, ORx1} {
		tbl[18+i] = slice{
			name: fmt.Sprintf("orx%d", i),
			kind: DataSlice,
			ctl:  regs.OrxSlice(i) + regs.SLICE_STREAM_CTL,
			mask: ch,
		}
	}
	return tbl
}()

// SliceKindOf returns the register layout family of stream processor i.
func SliceKindOf(i int) SliceKind { return sliceTable[i].kind }

// SliceName returns the name of stream processor i.
func SliceName(i int) string { return sliceTable[i].name }
