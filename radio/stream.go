// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/internal/bits"
)

const (
	NumSlices           = 20
	NumGpios            = 24
	MappingPinTableSize = 16

	imgVersionOffset         = 8
	imgHeaderSizeOffset      = 24
	imgSliceTableOffset      = 28
	imgGpioOffset            = 190
	imgMappingModeOffset     = 287
	imgObservabilityOffset   = 289
	imgPinTableOrx0Offset    = 291
	imgPinTableOrx1Offset    = 355
	imgAutoSwitchAttenOffset = 419
	imgAutoSwitchNcoOffset   = 420

	imgHeadSize      = imgSliceTableOffset
	imgMinHeaderSize = imgAutoSwitchNcoOffset + 1

	sliceHeaderSize = 16
)

// Version is a stream image or API version.
type Version struct {
	Major       uint32 `json:"major" yaml:"major"`
	Minor       uint32 `json:"minor" yaml:"minor"`
	Maintenance uint32 `json:"maintenance" yaml:"maintenance"`
	Build       uint32 `json:"build" yaml:"build"`
}

// ParseVersion parses a version of the form "major.minor.maintenance.build".
func ParseVersion(s string) (Version, error) {
	var v Version
	_, err := fmt.Sscanf(s, "%d.%d.%d.%d", &v.Major, &v.Minor, &v.Maintenance, &v.Build)
	if err != nil {
		return v, fmt.Errorf("radio: could not parse version %q: %w", s, err)
	}
	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Maintenance, v.Build)
}

// Less reports whether v is older than o.
func (v Version) Less(o Version) bool {
	switch {
	case v.Major != o.Major:
		return v.Major < o.Major
	case v.Minor != o.Minor:
		return v.Minor < o.Minor
	case v.Maintenance != o.Maintenance:
		return v.Maintenance < o.Maintenance
	}
	return v.Build < o.Build
}

// SliceDescriptor locates the image of one stream processor inside the
// stream image.
type SliceDescriptor struct {
	Offset uint32
	Size   uint32
}

// ImageHeader is the fixed-layout header of a stream image.
type ImageHeader struct {
	Version Version
	Size    uint32 // header length, in bytes
	Slices  [NumSlices]SliceDescriptor
	Gpio    GpioStreamMap
	Mapping TxToOrxMappingConfig
}

// ParseImageHeader decodes the header held by the first chunk p of a
// stream image.
// When minVer is not nil, images older than minVer are rejected.
func ParseImageHeader(p []byte, minVer *Version) (ImageHeader, error) {
	var hdr ImageHeader
	if len(p) < imgHeadSize {
		return hdr, fmt.Errorf(
			"radio: first chunk too short (%d < %d bytes): %w",
			len(p), imgHeadSize, ErrInsufficientHeader,
		)
	}

	hdr.Size = bits.U32(p, imgHeaderSizeOffset)
	switch {
	case hdr.Size < imgMinHeaderSize:
		return hdr, fmt.Errorf(
			"radio: declared header size %d too small (min=%d): %w",
			hdr.Size, imgMinHeaderSize, ErrInsufficientHeader,
		)
	case uint64(len(p)) < uint64(hdr.Size):
		return hdr, fmt.Errorf(
			"radio: first chunk shorter than header (%d < %d bytes): %w",
			len(p), hdr.Size, ErrInsufficientHeader,
		)
	}

	hdr.Version = Version{
		Major:       bits.U32(p, imgVersionOffset+0),
		Minor:       bits.U32(p, imgVersionOffset+4),
		Maintenance: bits.U32(p, imgVersionOffset+8),
		Build:       bits.U32(p, imgVersionOffset+12),
	}
	if minVer != nil && hdr.Version.Less(*minVer) {
		return hdr, &VersionRangeError{Got: hdr.Version, Min: *minVer}
	}

	var words [NumGpios]uint32
	for i := range words {
		words[i] = bits.U32(p, imgGpioOffset+4*i)
	}
	hdr.Gpio = newGpioStreamMap(words)

	cfg := &hdr.Mapping
	cfg.Mode = MappingMode(p[imgMappingModeOffset])
	cfg.Observability = bits.U16(p, imgObservabilityOffset)
	for i := 0; i < MappingPinTableSize; i++ {
		cfg.PinTableOrx0[i] = MapVal(p[imgPinTableOrx0Offset+4*i])
		cfg.PinTableOrx1[i] = MapVal(p[imgPinTableOrx1Offset+4*i])
	}
	cfg.AutoSwitchOrxAtten = p[imgAutoSwitchAttenOffset] != 0
	cfg.AutoSwitchOrxNco = p[imgAutoSwitchNcoOffset] != 0
	cfg.GpioSelect = mappingGpioSelect(words)

	for i := range hdr.Slices {
		off := imgSliceTableOffset + 8*i
		hdr.Slices[i] = SliceDescriptor{
			Size:   bits.U32(p, off),
			Offset: bits.U32(p, off+4),
		}
	}
	err := hdr.checkSlices()
	if err != nil {
		return hdr, err
	}

	return hdr, nil
}

// span returns the data range of slice i and the offset of its slice header.
// The main slice image starts with the stream image header itself.
func (hdr *ImageHeader) span(i int) (beg, end, field uint32) {
	desc := hdr.Slices[i]
	if i == 0 {
		return 0, desc.Size, hdr.Size
	}
	return desc.Offset, desc.Offset + desc.Size, desc.Offset
}

func (hdr *ImageHeader) checkSlices() error {
	var prev uint64
	for i, desc := range hdr.Slices {
		beg, _, field := hdr.span(i)
		end := uint64(beg) + uint64(desc.Size)
		switch {
		case uint64(beg) < prev:
			return fmt.Errorf(
				"radio: slice %s at 0x%x overlaps previous slice: %w",
				sliceTable[i].name, beg, ErrInvalidSliceTable,
			)
		case uint64(field)+sliceHeaderSize > end:
			return fmt.Errorf(
				"radio: slice %s too small (size=%d): %w",
				sliceTable[i].name, desc.Size, ErrInvalidSliceTable,
			)
		}
		prev = end
	}
	return nil
}
