// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package radio drives the stream processors and the radio control
// sequences of an ADRV903X RF transceiver.
package radio // import "github.com/go-lpc/adrv903x/radio"

import (
	"io"
	"log"
	"os"

	"github.com/go-lpc/adrv903x/cpu"
)

// Bus is the register transport of a device: a flat 32-bit address space.
type Bus interface {
	io.ReaderAt
	io.WriterAt
}

// Commander exchanges commands with the embedded CPUs.
type Commander interface {
	Send(id cpu.ID, cmd cpu.Opcode, req, resp []byte) error
}

var _ Commander = (*cpu.Mailbox)(nil)

// Device represents an ADRV903X transceiver.
// A Device is not safe for concurrent use.
type Device struct {
	msg *log.Logger
	bus Bus
	cpu Commander

	buf [8]byte
	err error
	cfg config

	loaded  bool // all stream processors armed
	ldr     LoaderContext
	gpio    GpioStreamMap
	inputs  StreamGpioInputs // stream processor gpio inputs
	mapping MappingContext
}

// NewDevice returns a device driven through bus and mbox.
func NewDevice(bus Bus, mbox Commander, opts ...Option) *Device {
	dev := &Device{
		msg:    log.New(os.Stdout, "adrv: ", 0),
		bus:    bus,
		cpu:    mbox,
		cfg:    newConfig(),
		inputs: NoStreamGpioInputs(),
	}
	dev.gpio.reset()
	for _, opt := range opts {
		opt(dev)
	}
	return dev
}

// Close closes the underlying register transport, if it can be closed.
func (dev *Device) Close() error {
	if c, ok := dev.bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StreamLoaded reports whether the 20 stream processors have been loaded
// and armed.
func (dev *Device) StreamLoaded() bool { return dev.loaded }

// InitializedChannels returns the channels configured on this device.
func (dev *Device) InitializedChannels() Channel { return dev.cfg.initialized }

// LoadState returns a copy of the stream image loader state.
func (dev *Device) LoadState() LoadState {
	return dev.ldr.LoadState
}
