// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"errors"
	"testing"

	"github.com/go-lpc/adrv903x/internal/bits"
)

func TestParseImageHeader(t *testing.T) {
	img := newImage()
	img.gpio[0] = uint32(GpioFeatureTxToOrxMappingBit0)
	img.gpio[3] = uint32(GpioFeatureTxAntennaCal)
	img.gpio[5] = uint32(GpioFeatureTxToOrxMappingBit2)
	img.gpio[7] = uint32(GpioFeatureRxAntennaCal)
	img.gpio[9] = uint32(GpioFeatureTxPapExtLo1Unlock)
	img.gpio[11] = 0x42
	img.mapping = TxToOrxMappingConfig{
		Mode:               Mapping4Bit,
		Observability:      0xbeef,
		AutoSwitchOrxAtten: true,
	}
	img.mapping.PinTableOrx0[1] = MapTx3
	img.mapping.PinTableOrx1[15] = MapState2
	raw := img.bytes()

	hdr, err := ParseImageHeader(raw, nil)
	if err != nil {
		t.Fatalf("could not parse header: %+v", err)
	}

	if got, want := hdr.Version, img.version; got != want {
		t.Fatalf("invalid version: got=%v, want=%v", got, want)
	}
	if got, want := hdr.Size, img.hdrSize; got != want {
		t.Fatalf("invalid header size: got=%d, want=%d", got, want)
	}
	if got, want := hdr.Slices[0], (SliceDescriptor{Offset: 0, Size: img.hdrSize + 48}); got != want {
		t.Fatalf("invalid main slice: got=%+v, want=%+v", got, want)
	}
	if got, want := hdr.Slices[1], (SliceDescriptor{Offset: img.hdrSize + 48 + 4, Size: 52}); got != want {
		t.Fatalf("invalid kfa slice: got=%+v, want=%+v", got, want)
	}

	for i, want := range map[int]GpioFeature{
		0:  GpioFeatureInvalid,
		3:  GpioFeatureTxAntennaCal,
		5:  GpioFeatureInvalid,
		7:  GpioFeatureRxAntennaCal,
		9:  GpioFeatureTxPapExtLo1Unlock,
		11: GpioFeatureInvalid,
		23: GpioFeatureInvalid,
	} {
		if got := hdr.Gpio[i]; got != want {
			t.Fatalf("gpio[%d]: got=0x%x, want=0x%x", i, got, want)
		}
	}

	cfg := hdr.Mapping
	if got, want := cfg.Mode, Mapping4Bit; got != want {
		t.Fatalf("invalid mapping mode: got=%v, want=%v", got, want)
	}
	if got, want := cfg.Observability, uint16(0xbeef); got != want {
		t.Fatalf("invalid observability: got=0x%x, want=0x%x", got, want)
	}
	if cfg.PinTableOrx0[1] != MapTx3 || cfg.PinTableOrx1[15] != MapState2 {
		t.Fatalf("invalid pin tables: %v %v", cfg.PinTableOrx0, cfg.PinTableOrx1)
	}
	if !cfg.AutoSwitchOrxAtten || cfg.AutoSwitchOrxNco {
		t.Fatalf("invalid auto-switch flags: %+v", cfg)
	}
	want := [8]GpioPin{0, GpioInvalid, 5, GpioInvalid, GpioInvalid, GpioInvalid, GpioInvalid, GpioInvalid}
	if got := cfg.GpioSelect; got != want {
		t.Fatalf("invalid mapping gpio select:\ngot= %v\nwant=%v", got, want)
	}
}

func TestParseImageHeaderErrors(t *testing.T) {
	raw := newImage().bytes()

	for _, tc := range []struct {
		name   string
		p      func() []byte
		minVer *Version
		want   error
	}{
		{
			name: "short-head",
			p:    func() []byte { return raw[:imgHeadSize-4] },
			want: ErrInsufficientHeader,
		},
		{
			name: "short-chunk",
			p:    func() []byte { return raw[:400] },
			want: ErrInsufficientHeader,
		},
		{
			name: "small-header",
			p: func() []byte {
				p := append([]byte(nil), raw...)
				bits.PutU32(p, imgHeaderSizeOffset, 128)
				return p
			},
			want: ErrInsufficientHeader,
		},
		{
			name: "overlap",
			p: func() []byte {
				p := append([]byte(nil), raw...)
				off := bits.U32(p, imgSliceTableOffset+8*3+4)
				bits.PutU32(p, imgSliceTableOffset+8*4+4, off+4)
				return p
			},
			want: ErrInvalidSliceTable,
		},
		{
			name: "tiny-slice",
			p: func() []byte {
				p := append([]byte(nil), raw...)
				bits.PutU32(p, imgSliceTableOffset+8*5, 8)
				return p
			},
			want: ErrInvalidSliceTable,
		},
		{
			name: "tiny-main-slice",
			p: func() []byte {
				p := append([]byte(nil), raw...)
				bits.PutU32(p, imgSliceTableOffset, 424)
				return p
			},
			want: ErrInvalidSliceTable,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseImageHeader(tc.p(), tc.minVer)
			if !errors.Is(err, tc.want) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.want)
			}
		})
	}
}

func TestParseImageHeaderVersion(t *testing.T) {
	raw := newImage().bytes() // v2.9.1.4

	for _, tc := range []struct {
		min string
		ok  bool
	}{
		{"2.9.1.4", true},
		{"2.9.1.3", true},
		{"1.12.0.0", true},
		{"2.9.1.5", false},
		{"2.10.0.0", false},
		{"3.0.0.0", false},
	} {
		t.Run(tc.min, func(t *testing.T) {
			v, err := ParseVersion(tc.min)
			if err != nil {
				t.Fatalf("could not parse version: %+v", err)
			}
			if got, want := v.String(), tc.min; got != want {
				t.Fatalf("invalid version round-trip: got=%q, want=%q", got, want)
			}
			_, err = ParseImageHeader(raw, &v)
			var verr *VersionRangeError
			switch {
			case tc.ok && err != nil:
				t.Fatalf("unexpected error: %+v", err)
			case !tc.ok && !errors.As(err, &verr):
				t.Fatalf("invalid error: got=%+v, want=%T", err, verr)
			}
		})
	}

	_, err := ParseVersion("2.x")
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestStreamGpioConfig(t *testing.T) {
	img := newImage()
	img.gpio[2] = uint32(GpioFeatureTxPapExtLo0Unlock)
	img.gpio[4] = uint32(GpioFeatureTxAntennaCal)
	img.gpio[6] = uint32(GpioFeatureTxAntennaCal)
	raw := img.bytes()

	dev, _, _ := newTestDevice()
	_, err := dev.StreamGpioConfigGet()
	if !errors.Is(err, ErrNoImageHeader) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrNoImageHeader)
	}
	for i, f := range dev.GpioStreamMap() {
		if f != GpioFeatureInvalid {
			t.Fatalf("gpio[%d]: got=0x%x, want=invalid", i, f)
		}
	}

	err = dev.StreamImageWrite(0, raw[:img.hdrSize])
	if err != nil {
		t.Fatalf("could not write header: %+v", err)
	}

	got, err := dev.StreamGpioConfigGet()
	if err != nil {
		t.Fatalf("could not get gpio config: %+v", err)
	}
	want := StreamGpioConfig{
		TxAntennaCal:      4,
		RxAntennaCal:      GpioInvalid,
		TxPapExtLo0Unlock: 2,
		TxPapExtLo1Unlock: GpioInvalid,
		Inputs:            NoStreamGpioInputs(),
	}
	if got != want {
		t.Fatalf("invalid gpio config:\ngot= %+v\nwant=%+v", got, want)
	}
}

func TestSliceTable(t *testing.T) {
	for i, tc := range []struct {
		name string
		kind SliceKind
	}{
		0:  {"main", CoreSlice},
		1:  {"kfa", CoreSlice},
		2:  {"tx0", DataSlice},
		9:  {"tx7", DataSlice},
		10: {"rx0", DataSlice},
		17: {"rx7", DataSlice},
		18: {"orx0", DataSlice},
		19: {"orx1", DataSlice},
	} {
		if tc.name == "" {
			continue
		}
		if got, want := SliceName(i), tc.name; got != want {
			t.Fatalf("slice %d: invalid name: got=%q, want=%q", i, got, want)
		}
		if got, want := SliceKindOf(i), tc.kind; got != want {
			t.Fatalf("slice %d: invalid kind: got=%v, want=%v", i, got, want)
		}
	}
}
