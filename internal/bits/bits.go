// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bits provides typed little-endian accessors and bit-field helpers
// operating on byte slices and register values.
package bits // import "github.com/go-lpc/adrv903x/internal/bits"

import (
	"encoding/binary"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// U8 returns the byte at offset off.
func U8(p []byte, off int) uint8 { return p[off] }

// U16 returns the little-endian uint16 at offset off.
func U16(p []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(p[off : off+2])
}

// U32 returns the little-endian uint32 at offset off.
func U32(p []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(p[off : off+4])
}

// U64 returns the little-endian uint64 at offset off.
func U64(p []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(p[off : off+8])
}

// PutU16 stores v at offset off, little endian.
func PutU16(p []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(p[off:off+2], v)
}

// PutU32 stores v at offset off, little endian.
func PutU32(p []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(p[off:off+4], v)
}

// PutU64 stores v at offset off, little endian.
func PutU64(p []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(p[off:off+8], v)
}

// Covers reports whether the window [beg, beg+n) holds the whole field
// [off, off+size).
func Covers[T constraints.Integer](beg, n, off, size T) bool {
	return off >= beg && off+size <= beg+n
}

// Aligned reports whether v is a multiple of n.
func Aligned[T constraints.Integer](v, n T) bool {
	return v%n == 0
}

// FieldGet extracts the field selected by mask from v, shifted down to bit 0.
func FieldGet[T constraints.Unsigned](mask, v T) T {
	if mask == 0 {
		return 0
	}
	return (v & mask) >> trailingZeros(mask)
}

// FieldSet returns v with the field selected by mask replaced by f.
func FieldSet[T constraints.Unsigned](mask, v, f T) T {
	if mask == 0 {
		return v
	}
	return (v &^ mask) | ((f << trailingZeros(mask)) & mask)
}

// Update returns old with the bits in sel replaced by the ones of val.
func Update[T constraints.Unsigned](old, sel, val T) T {
	return (old &^ sel) | (val & sel)
}

// SignExtend interprets the n low bits of v as a two's complement value.
func SignExtend(v uint32, n uint) int32 {
	shift := 32 - n
	return int32(v<<shift) >> shift
}

func trailingZeros[T constraints.Unsigned](v T) int {
	return bits.TrailingZeros64(uint64(v))
}
