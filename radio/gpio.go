// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"fmt"

	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

// GpioPin is a digital GPIO index, or GpioInvalid.
type GpioPin uint8

const GpioInvalid GpioPin = 0xff

// GpioFeature is a stream-triggered GPIO function assigned by the image.
type GpioFeature uint32

const (
	GpioFeatureUnused GpioFeature = iota
	GpioFeatureTxToOrxMappingBit0
	GpioFeatureTxToOrxMappingBit1
	GpioFeatureTxToOrxMappingBit2
	GpioFeatureTxToOrxMappingBit3
	GpioFeatureTxToOrxMappingBit4
	GpioFeatureTxToOrxMappingBit5
	GpioFeatureTxToOrxMappingBit6
	GpioFeatureTxToOrxMappingBit7
	GpioFeatureTxAntennaCal
	GpioFeatureRxAntennaCal
	GpioFeatureTxPapExtLo0Unlock
	GpioFeatureTxPapExtLo1Unlock

	GpioFeatureInvalid GpioFeature = 0xffffffff
)

// passthrough reports whether the feature is handled by the GPIO layer as
// is, without further decoding.
func (f GpioFeature) passthrough() bool {
	switch f {
	case GpioFeatureTxAntennaCal, GpioFeatureRxAntennaCal,
		GpioFeatureTxPapExtLo0Unlock, GpioFeatureTxPapExtLo1Unlock:
		return true
	}
	return false
}

// GpioStreamMap maps each GPIO pin to the stream feature it triggers.
type GpioStreamMap [NumGpios]GpioFeature

func newGpioStreamMap(words [NumGpios]uint32) GpioStreamMap {
	var m GpioStreamMap
	for i, w := range words {
		f := GpioFeature(w)
		if !f.passthrough() {
			f = GpioFeatureInvalid
		}
		m[i] = f
	}
	return m
}

func (m *GpioStreamMap) reset() {
	for i := range m {
		m[i] = GpioFeatureInvalid
	}
}

// Pin returns the first GPIO assigned to f.
func (m GpioStreamMap) Pin(f GpioFeature) GpioPin {
	for i, v := range m {
		if v == f {
			return GpioPin(i)
		}
	}
	return GpioInvalid
}

// mappingGpioSelect returns, for each Tx to ORx mapping bit, the GPIO
// driving it.
func mappingGpioSelect(words [NumGpios]uint32) [8]GpioPin {
	var sel [8]GpioPin
	for bit := range sel {
		sel[bit] = GpioInvalid
		want := uint32(GpioFeatureTxToOrxMappingBit0) + uint32(bit)
		for i, w := range words {
			if w == want {
				sel[bit] = GpioPin(i)
				break
			}
		}
	}
	return sel
}

// StreamGpioInputs selects the GPIOs triggering the stream processors.
// Entry i is either GpioPin(i) or GpioInvalid.
type StreamGpioInputs [NumGpios]GpioPin

// NoStreamGpioInputs returns a selection with no stream processor input.
func NoStreamGpioInputs() StreamGpioInputs {
	var in StreamGpioInputs
	for i := range in {
		in[i] = GpioInvalid
	}
	return in
}

func (in StreamGpioInputs) mask() uint32 {
	var m uint32
	for i, pin := range in {
		if pin != GpioInvalid {
			m |= 1 << i
		}
	}
	return m
}

// GpioSignal is the function routed to a GPIO pin.
type GpioSignal uint8

const (
	GpioSignalNone GpioSignal = iota
	GpioSignalStreamInput
	GpioSignalStreamFeature
	GpioSignalTxToOrxMapping
)

func (sig GpioSignal) String() string {
	switch sig {
	case GpioSignalNone:
		return "none"
	case GpioSignalStreamInput:
		return "stream-input"
	case GpioSignalStreamFeature:
		return "stream-feature"
	case GpioSignalTxToOrxMapping:
		return "tx-to-orx-mapping"
	}
	return fmt.Sprintf("GpioSignal(%d)", uint8(sig))
}

// gpioSignals returns the signal currently routed to each GPIO.
// Stream image features take precedence over the mapping bits, which take
// precedence over the stream processor inputs.
func (dev *Device) gpioSignals() [NumGpios]GpioSignal {
	var sigs [NumGpios]GpioSignal
	for i, pin := range dev.inputs {
		if pin != GpioInvalid {
			sigs[i] = GpioSignalStreamInput
		}
	}
	if dev.mapping.ok {
		for _, pin := range dev.mapping.cfg.GpioSelect {
			if pin != GpioInvalid && int(pin) < NumGpios {
				sigs[pin] = GpioSignalTxToOrxMapping
			}
		}
	}
	for i, f := range dev.gpio {
		if f.passthrough() {
			sigs[i] = GpioSignalStreamFeature
		}
	}
	return sigs
}

// StreamGpioConfig holds the GPIOs assigned to stream-triggered features
// and the stream processor inputs.
type StreamGpioConfig struct {
	TxAntennaCal      GpioPin
	RxAntennaCal      GpioPin
	TxPapExtLo0Unlock GpioPin
	TxPapExtLo1Unlock GpioPin

	Inputs StreamGpioInputs
}

// StreamGpioConfigGet returns the GPIO assignments of the loaded image.
func (dev *Device) StreamGpioConfigGet() (StreamGpioConfig, error) {
	if dev.ldr.hdr == nil {
		return StreamGpioConfig{}, fmt.Errorf("radio: could not get stream gpio config: %w", ErrNoImageHeader)
	}
	return StreamGpioConfig{
		TxAntennaCal:      dev.gpio.Pin(GpioFeatureTxAntennaCal),
		RxAntennaCal:      dev.gpio.Pin(GpioFeatureRxAntennaCal),
		TxPapExtLo0Unlock: dev.gpio.Pin(GpioFeatureTxPapExtLo0Unlock),
		TxPapExtLo1Unlock: dev.gpio.Pin(GpioFeatureTxPapExtLo1Unlock),
		Inputs:            dev.inputs,
	}, nil
}

// StreamGpioConfigSet routes the selected GPIOs to the stream processor
// inputs, releasing the previous selection.
// A GPIO already used by the stream image or the Tx to ORx mapping can not
// be selected.
func (dev *Device) StreamGpioConfigSet(in StreamGpioInputs) error {
	sigs := dev.gpioSignals()
	for i, pin := range in {
		switch {
		case pin == GpioInvalid:
			continue
		case pin != GpioPin(i):
			return fmt.Errorf("radio: invalid stream input gpio %d at index %d: %w", pin, i, ErrRange)
		}
		if sig := sigs[i]; sig != GpioSignalNone && sig != GpioSignalStreamInput {
			return fmt.Errorf("radio: gpio %d used by %v: %w", i, sig, ErrGpioInUse)
		}
	}

	var (
		m = in.mask()
		p = []byte{uint8(m), uint8(m >> 8), uint8(m >> 16)}
	)
	dev.writeBytes(regs.GPIO_STREAM_INPUT_EN, p)
	if err := dev.ioerr(); err != nil {
		return fmt.Errorf("radio: could not route stream gpio inputs: %w", err)
	}
	dev.inputs = in
	return nil
}

// GpioStreamMap returns the GPIO feature map of the loaded image.
func (dev *Device) GpioStreamMap() GpioStreamMap { return dev.gpio }
