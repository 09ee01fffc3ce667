// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/go-lpc/adrv903x/cpu"
	"github.com/go-lpc/adrv903x/internal/bits"
)

type access struct {
	addr int64
	data []byte
}

// fakeBus is a sparse register space recording every write.
type fakeBus struct {
	mem    map[int64]byte
	writes []access

	fail   error // returned by accesses of failAt
	failAt int64
	nfail  int // number of failed accesses

	onWrite func(addr int64, p []byte)
	closed  bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		mem:    make(map[int64]byte),
		failAt: -1,
	}
}

func (bus *fakeBus) ReadAt(p []byte, off int64) (int, error) {
	if bus.fail != nil && bus.covers(off, len(p)) {
		bus.nfail++
		return 0, bus.fail
	}
	for i := range p {
		p[i] = bus.mem[off+int64(i)]
	}
	return len(p), nil
}

func (bus *fakeBus) WriteAt(p []byte, off int64) (int, error) {
	if bus.fail != nil && bus.covers(off, len(p)) {
		bus.nfail++
		return 0, bus.fail
	}
	bus.writes = append(bus.writes, access{addr: off, data: append([]byte(nil), p...)})
	for i, v := range p {
		bus.mem[off+int64(i)] = v
	}
	if bus.onWrite != nil {
		bus.onWrite(off, p)
	}
	return len(p), nil
}

func (bus *fakeBus) Close() error {
	bus.closed = true
	return nil
}

func (bus *fakeBus) covers(off int64, n int) bool {
	return bus.failAt < 0 || (bus.failAt >= off && bus.failAt < off+int64(n))
}

func (bus *fakeBus) u8(addr int64) uint8 { return bus.mem[addr] }

func (bus *fakeBus) u32(addr int64) uint32 {
	var p [4]byte
	_, _ = bus.ReadAt(p[:], addr)
	return bits.U32(p[:], 0)
}

func (bus *fakeBus) set8(addr int64, v uint8) { bus.mem[addr] = v }

func (bus *fakeBus) set32(addr int64, v uint32) {
	for i := 0; i < 4; i++ {
		bus.mem[addr+int64(i)] = uint8(v >> (8 * i))
	}
}

// written returns the addresses written, in increasing order.
func (bus *fakeBus) written() []int64 {
	set := make(map[int64]struct{})
	for _, w := range bus.writes {
		for i := range w.data {
			set[w.addr+int64(i)] = struct{}{}
		}
	}
	o := make([]int64, 0, len(set))
	for addr := range set {
		o = append(o, addr)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}

func (bus *fakeBus) wrote(addr int64) bool {
	for _, w := range bus.writes {
		if addr >= w.addr && addr < w.addr+int64(len(w.data)) {
			return true
		}
	}
	return false
}

type command struct {
	cpu cpu.ID
	cmd cpu.Opcode
	req []byte
}

// fakeCPU records commands and answers them with resp.
type fakeCPU struct {
	cmds []command
	resp func(id cpu.ID, cmd cpu.Opcode, req []byte, resp []byte) error
}

func (f *fakeCPU) Send(id cpu.ID, cmd cpu.Opcode, req, resp []byte) error {
	f.cmds = append(f.cmds, command{cpu: id, cmd: cmd, req: append([]byte(nil), req...)})
	if f.resp == nil {
		for i := range resp {
			resp[i] = 0
		}
		return nil
	}
	return f.resp(id, cmd, req, resp)
}

var quiet = WithLogger(log.New(io.Discard, "", 0))

func newTestDevice(opts ...Option) (*Device, *fakeBus, *fakeCPU) {
	var (
		bus  = newFakeBus()
		mbox = new(fakeCPU)
	)
	// idle command interface and slice trigger slot.
	bus.set8(int64(0x200+203), 0xff)
	dev := NewDevice(bus, mbox, append([]Option{quiet}, opts...)...)
	return dev, bus, mbox
}

// image is a synthetic stream image.
type image struct {
	hdrSize uint32
	version Version
	gpio    [NumGpios]uint32
	mapping TxToOrxMappingConfig
	slices  [NumSlices]imageSlice
}

// imageSlice is the content of one slice of a synthetic image.
type imageSlice struct {
	bin      uint32 // destination of the slice image
	base     uint32 // stream base
	nstreams uint8
	payload  int // bytes following the slice header
	gap      int // padding before the slice
}

func newImage() *image {
	img := &image{
		hdrSize: 424,
		version: Version{Major: 2, Minor: 9, Maintenance: 1, Build: 4},
	}
	img.mapping.Mode = Mapping3Bit
	for i := range img.slices {
		img.slices[i] = imageSlice{
			bin:      0x01000000 + uint32(i)*0x10000,
			base:     0x100 + uint32(i)*0x11,
			nstreams: uint8(1 + i%5),
			payload:  32 + 4*(i%3),
			gap:      4 * (i % 2),
		}
	}
	return img
}

// bytes encodes the image, with slice headers holding the slice
// destinations.
func (img *image) bytes() []byte {
	var (
		descs [NumSlices]SliceDescriptor
		size  = img.hdrSize
	)
	for i, sl := range img.slices {
		n := uint32(sliceHeaderSize + sl.payload)
		if i == 0 {
			descs[0] = SliceDescriptor{Offset: 0, Size: img.hdrSize + n}
			size = img.hdrSize + n
			continue
		}
		size += uint32(sl.gap)
		descs[i] = SliceDescriptor{Offset: size, Size: n}
		size += n
	}

	p := make([]byte, size)
	bits.PutU32(p, imgVersionOffset+0, img.version.Major)
	bits.PutU32(p, imgVersionOffset+4, img.version.Minor)
	bits.PutU32(p, imgVersionOffset+8, img.version.Maintenance)
	bits.PutU32(p, imgVersionOffset+12, img.version.Build)
	bits.PutU32(p, imgHeaderSizeOffset, img.hdrSize)
	for i, d := range descs {
		bits.PutU32(p, imgSliceTableOffset+8*i, d.Size)
		bits.PutU32(p, imgSliceTableOffset+8*i+4, d.Offset)
	}
	for i, w := range img.gpio {
		bits.PutU32(p, imgGpioOffset+4*i, w)
	}
	p[imgMappingModeOffset] = uint8(img.mapping.Mode)
	bits.PutU16(p, imgObservabilityOffset, img.mapping.Observability)
	for i := 0; i < MappingPinTableSize; i++ {
		p[imgPinTableOrx0Offset+4*i] = uint8(img.mapping.PinTableOrx0[i])
		p[imgPinTableOrx1Offset+4*i] = uint8(img.mapping.PinTableOrx1[i])
	}
	p[imgAutoSwitchAttenOffset] = b2u8(img.mapping.AutoSwitchOrxAtten)
	p[imgAutoSwitchNcoOffset] = b2u8(img.mapping.AutoSwitchOrxNco)

	for i, sl := range img.slices {
		beg := descs[i].Offset
		if i == 0 {
			beg = img.hdrSize
		}
		bits.PutU32(p, int(beg), sl.bin)
		bits.PutU32(p, int(beg)+4, sl.base)
		p[beg+8] = sl.nstreams
		bits.PutU16(p, int(beg)+10, uint16(sl.payload))
		for j := 0; j < sl.payload; j++ {
			p[int(beg)+sliceHeaderSize+j] = uint8(i*7 + j)
		}
	}
	return p
}

// split cuts p into chunks of the given lengths, the last chunk holding
// the remaining bytes.
func split(p []byte, sizes ...int) [][]byte {
	var o [][]byte
	for _, n := range sizes {
		if n >= len(p) {
			break
		}
		o = append(o, p[:n])
		p = p[n:]
	}
	if len(p) > 0 {
		o = append(o, p)
	}
	return o
}

func load(dev *Device, chunks [][]byte) error {
	var off uint32
	for _, p := range chunks {
		err := dev.StreamImageWrite(off, p)
		if err != nil {
			return fmt.Errorf("chunk at %d: %w", off, err)
		}
		off += uint32(len(p))
	}
	return nil
}
