// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/internal/bits"
)

// LoadStage is the progress of the loader within the current slice.
type LoadStage uint8

const (
	AwaitingBaseAddr LoadStage = iota
	AwaitingStreamBase
	AwaitingStreamCount
	Streaming
	Armed
)

func (st LoadStage) String() string {
	switch st {
	case AwaitingBaseAddr:
		return "awaiting-base-addr"
	case AwaitingStreamBase:
		return "awaiting-stream-base"
	case AwaitingStreamCount:
		return "awaiting-stream-count"
	case Streaming:
		return "streaming"
	case Armed:
		return "armed"
	}
	return fmt.Sprintf("LoadStage(%d)", uint8(st))
}

// LoadState is the persistent state of a chunked stream image download.
type LoadState struct {
	Index          int    // slice being processed, 0..NumSlices
	BinBaseAddr    uint32 // destination of the next image byte
	StreamBaseAddr uint32 // stream base of the current slice
	ImageSize      uint32 // bytes of the current slice still to write
	NumberStreams  uint8  // streams packed in the current slice
	SliceImageSize uint16 // image size declared by the slice header
	Stage          LoadStage
}

// LoaderContext holds the stream image loader state of a device.
type LoaderContext struct {
	LoadState

	hdr     *ImageHeader
	pos     uint32 // next expected byte offset
	pending []byte // current slice bytes held until its header is complete
}

func (ctx *LoaderContext) clone() LoaderContext {
	o := *ctx
	o.pending = append([]byte(nil), ctx.pending...)
	return o
}

func (ctx *LoaderContext) next() {
	ctx.LoadState = LoadState{Index: ctx.Index + 1}
	ctx.pending = ctx.pending[:0]
}

// StreamImageWrite writes the chunk p of a stream image, located at
// byteOffset inside the image.
//
// Chunks must be written in order, without gaps nor overlaps, and both
// byteOffset and len(p) must be multiples of 4. A chunk at offset 0 restarts
// the download and must hold the whole image header.
// Slices of channels that are not initialized are skipped.
func (dev *Device) StreamImageWrite(byteOffset uint32, p []byte) error {
	switch {
	case len(p) == 0 || !bits.Aligned(len(p), 4):
		return fmt.Errorf("radio: invalid chunk length %d: %w", len(p), ErrUnalignedLength)
	case !bits.Aligned(byteOffset, 4):
		return fmt.Errorf("radio: invalid chunk offset %d: %w", byteOffset, ErrUnalignedOffset)
	}

	if byteOffset == 0 {
		dev.ldr = LoaderContext{}
		dev.gpio.reset()
		dev.mapping = MappingContext{}
		dev.loaded = false

		hdr, err := ParseImageHeader(p, dev.cfg.minVersion)
		if err != nil {
			return err
		}
		dev.ldr.hdr = &hdr
		dev.gpio = hdr.Gpio
		dev.mapping.install(hdr.Mapping)
		dev.msg.Printf(
			"stream image v%v: header=%d bytes, mapping mode=%v",
			hdr.Version, hdr.Size, hdr.Mapping.Mode,
		)
	}

	switch {
	case dev.ldr.hdr == nil:
		return fmt.Errorf("radio: could not write chunk at %d: %w", byteOffset, ErrNoImageHeader)
	case byteOffset != dev.ldr.pos:
		return fmt.Errorf(
			"radio: could not write chunk at %d (want=%d): %w",
			byteOffset, dev.ldr.pos, ErrUnexpectedOffset,
		)
	}

	saved := dev.ldr.clone()
	err := dev.load(p)
	if err != nil {
		dev.ldr = saved
		return fmt.Errorf("radio: could not write stream image chunk at %d: %w", byteOffset, err)
	}

	if dev.ldr.Index == NumSlices && !dev.loaded {
		dev.ldr.Stage = Armed
		dev.loaded = true
		dev.msg.Printf("stream image loaded (%d bytes)", dev.ldr.pos)
	}
	return nil
}

func (dev *Device) load(p []byte) error {
	ctx := &dev.ldr
	for len(p) > 0 && ctx.Index < NumSlices {
		var (
			sl            = sliceTable[ctx.Index]
			desc          = ctx.hdr.Slices[ctx.Index]
			beg, _, field = ctx.hdr.span(ctx.Index)
			on            = sl.mask&dev.cfg.initialized != 0
		)

		if ctx.pos < beg {
			// padding between slices.
			n := minU32(beg-ctx.pos, uint32(len(p)))
			p = p[n:]
			ctx.pos += n
			continue
		}

		if ctx.Stage == AwaitingBaseAddr && len(ctx.pending) == 0 {
			ctx.ImageSize = desc.Size
		}

		if ctx.Stage < Streaming {
			n := minU32(field+sliceHeaderSize-ctx.pos, uint32(len(p)))
			ctx.pending = append(ctx.pending, p[:n]...)
			p = p[n:]
			ctx.pos += n

			dev.sliceHeader(sl, on, desc, field-beg)
			if ctx.Stage < Streaming {
				continue
			}
			dev.stream(on, ctx.pending)
			ctx.pending = ctx.pending[:0]
		} else {
			n := minU32(ctx.ImageSize, uint32(len(p)))
			dev.stream(on, p[:n])
			p = p[n:]
			ctx.pos += n
		}

		if err := dev.ioerr(); err != nil {
			return fmt.Errorf("could not stream slice %s: %w", sl.name, err)
		}

		if ctx.ImageSize != 0 {
			continue
		}

		if on {
			sl.enc().arm(dev, sl.ctl, ctx.StreamBaseAddr, ctx.NumberStreams)
			if err := dev.ioerr(); err != nil {
				return fmt.Errorf("could not arm slice %s: %w", sl.name, err)
			}
		}
		ctx.next()
	}

	// trailing bytes after the last slice.
	ctx.pos += uint32(len(p))

	return nil
}

// sliceHeader decodes the fields of the slice header held in the pending
// bytes, off bytes from the start of the slice.
func (dev *Device) sliceHeader(sl slice, on bool, desc SliceDescriptor, off uint32) {
	var (
		ctx  = &dev.ldr
		have = uint32(len(ctx.pending))
	)

	if ctx.Stage == AwaitingBaseAddr && have >= off+4 {
		ctx.BinBaseAddr = bits.U32(ctx.pending, int(off))
		ctx.Stage = AwaitingStreamBase
		if on && ctx.ImageSize == desc.Size {
			sl.enc().reset(dev, sl.ctl)
		}
	}

	if ctx.Stage == AwaitingStreamBase && have >= off+8 {
		ctx.StreamBaseAddr = bits.U32(ctx.pending, int(off+4))
		ctx.Stage = AwaitingStreamCount
	}

	if ctx.Stage == AwaitingStreamCount && have >= off+sliceHeaderSize {
		ctx.NumberStreams = ctx.pending[off+8]
		ctx.SliceImageSize = bits.U16(ctx.pending, int(off+10))
		ctx.Stage = Streaming
	}
}

// stream writes p at the current destination of the slice image, unless
// the slice is disabled.
func (dev *Device) stream(on bool, p []byte) {
	if len(p) == 0 {
		return
	}
	ctx := &dev.ldr
	if on {
		dev.writeBytes(int64(ctx.BinBaseAddr), p)
	}
	ctx.BinBaseAddr += uint32(len(p))
	ctx.ImageSize -= uint32(len(p))
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
