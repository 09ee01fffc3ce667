// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-lpc/adrv903x/internal/bits"
)

const maxHeaderSize = 1 << 16

// ImageReader splits a stream image into chunks suitable for
// StreamImageWrite: the first chunk holds the whole image header, the
// following ones are at most size bytes long.
type ImageReader struct {
	r    io.Reader
	size int
	off  uint32
	buf  []byte
	eof  bool
}

// NewImageReader returns a reader of size-byte chunks of the image r.
func NewImageReader(r io.Reader, size int) (*ImageReader, error) {
	if size <= 0 || !bits.Aligned(size, 4) {
		return nil, fmt.Errorf("radio: invalid chunk size %d: %w", size, ErrUnalignedLength)
	}
	return &ImageReader{r: r, size: size}, nil
}

// Next returns the next chunk and its offset in the image.
// Next returns io.EOF after the last chunk.
// The returned chunk is only valid until the next call to Next.
func (ir *ImageReader) Next() (uint32, []byte, error) {
	if ir.eof {
		return ir.off, nil, io.EOF
	}

	if ir.buf == nil {
		return ir.first()
	}

	ir.off += uint32(len(ir.buf))
	ir.buf = ir.buf[:cap(ir.buf)]
	if len(ir.buf) > ir.size {
		ir.buf = ir.buf[:ir.size]
	}
	return ir.read()
}

func (ir *ImageReader) first() (uint32, []byte, error) {
	head := make([]byte, imgHeadSize)
	_, err := io.ReadFull(ir.r, head)
	if err != nil {
		return 0, nil, fmt.Errorf("radio: could not read stream image header: %w", err)
	}

	n := int(bits.U32(head, imgHeaderSizeOffset))
	if n < imgMinHeaderSize || n > maxHeaderSize {
		// let the parser report the invalid header.
		ir.buf = head
		ir.eof = true
		return 0, head, nil
	}
	if n < ir.size {
		n = ir.size
	}
	if rem := n % 4; rem != 0 {
		n += 4 - rem
	}

	ir.buf = make([]byte, n)
	copy(ir.buf, head)
	k, err := io.ReadFull(ir.r, ir.buf[imgHeadSize:])
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		ir.eof = true
	default:
		return 0, nil, fmt.Errorf("radio: could not read stream image header: %w", err)
	}
	ir.buf = ir.buf[:imgHeadSize+k]
	return 0, ir.buf, nil
}

func (ir *ImageReader) read() (uint32, []byte, error) {
	k, err := io.ReadFull(ir.r, ir.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF):
		ir.eof = true
	case errors.Is(err, io.EOF):
		ir.eof = true
		return ir.off, nil, io.EOF
	default:
		return ir.off, nil, fmt.Errorf("radio: could not read stream image at %d: %w", ir.off, err)
	}
	ir.buf = ir.buf[:k]
	return ir.off, ir.buf, nil
}

// LoadStreamImage writes the stream image read from r, in chunks of size
// bytes.
func (dev *Device) LoadStreamImage(r io.Reader, size int) error {
	ir, err := NewImageReader(r, size)
	if err != nil {
		return err
	}

	for {
		off, p, err := ir.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		err = dev.StreamImageWrite(off, p)
		if err != nil {
			return err
		}
	}

	if !dev.loaded {
		return fmt.Errorf("radio: stream image truncated after %d bytes: %w", dev.ldr.pos, io.ErrUnexpectedEOF)
	}
	return nil
}
