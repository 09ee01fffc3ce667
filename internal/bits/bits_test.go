// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bits

import "testing"

func TestAccessors(t *testing.T) {
	p := make([]byte, 16)
	PutU16(p, 0, 0xbeef)
	PutU32(p, 2, 0xdeadc0de)
	PutU64(p, 8, 0x0102030405060708)

	if got, want := U16(p, 0), uint16(0xbeef); got != want {
		t.Fatalf("invalid u16: got=0x%x, want=0x%x", got, want)
	}
	if got, want := U8(p, 0), uint8(0xef); got != want {
		t.Fatalf("invalid u8: got=0x%x, want=0x%x", got, want)
	}
	if got, want := U32(p, 2), uint32(0xdeadc0de); got != want {
		t.Fatalf("invalid u32: got=0x%x, want=0x%x", got, want)
	}
	if got, want := U64(p, 8), uint64(0x0102030405060708); got != want {
		t.Fatalf("invalid u64: got=0x%x, want=0x%x", got, want)
	}
	if got, want := p[8], byte(0x08); got != want {
		t.Fatalf("invalid byte order: got=0x%x, want=0x%x", got, want)
	}
}

func TestFields(t *testing.T) {
	for _, tc := range []struct {
		mask, v, f, get, set uint32
	}{
		{mask: 0x0000ff00, v: 0x12345678, f: 0xab, get: 0x56, set: 0x1234ab78},
		{mask: 0x00000001, v: 0x00000002, f: 1, get: 0, set: 0x00000003},
		{mask: 0xf0000000, v: 0xa0000000, f: 0x1f, get: 0xa, set: 0xf0000000},
		{mask: 0, v: 0x42, f: 1, get: 0, set: 0x42},
	} {
		if got := FieldGet(tc.mask, tc.v); got != tc.get {
			t.Fatalf("field-get(0x%x, 0x%x): got=0x%x, want=0x%x", tc.mask, tc.v, got, tc.get)
		}
		if got := FieldSet(tc.mask, tc.v, tc.f); got != tc.set {
			t.Fatalf("field-set(0x%x, 0x%x, 0x%x): got=0x%x, want=0x%x", tc.mask, tc.v, tc.f, got, tc.set)
		}
	}
}

func TestUpdate(t *testing.T) {
	for old := uint8(0); old < 0xff; old += 0x11 {
		for _, sel := range []uint8{0x00, 0x01, 0x0f, 0xa5, 0xff} {
			got := Update(old, sel, 0xff)
			if got&^sel != old&^sel {
				t.Fatalf("bits outside select mask modified: old=0x%x sel=0x%x got=0x%x", old, sel, got)
			}
			if got&sel != sel {
				t.Fatalf("selected bits not set: old=0x%x sel=0x%x got=0x%x", old, sel, got)
			}
		}
	}
}

func TestCoversAligned(t *testing.T) {
	if !Covers(0, 8, 4, 4) {
		t.Fatalf("[0,8) should cover [4,8)")
	}
	if Covers(0, 8, 6, 4) {
		t.Fatalf("[0,8) should not cover [6,10)")
	}
	if Covers(8, 8, 4, 4) {
		t.Fatalf("[8,16) should not cover [4,8)")
	}
	if !Aligned(uint32(12), 4) || Aligned(13, 4) {
		t.Fatalf("invalid alignment")
	}
}

func TestSignExtend(t *testing.T) {
	for _, tc := range []struct {
		v    uint32
		want int32
	}{
		{0x000000, 0},
		{0x7fffff, 8388607},
		{0x800000, -8388608},
		{0xffffff, -1},
		{0x000123, 0x123},
	} {
		if got := SignExtend(tc.v, 24); got != tc.want {
			t.Fatalf("sign-extend(0x%x): got=%d, want=%d", tc.v, got, tc.want)
		}
	}
}
