// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bridge accesses the ADRV903X register space through an
// SMBus-to-SPI bridge.
//
// The bridge exposes an address pointer (4 registers, least significant
// byte first) and a data register. Each data access runs one SPI
// transaction at the address pointer and increments it.
package bridge // import "github.com/go-lpc/adrv903x/bridge"

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-daq/smbus"
)

const (
	regAddr0 = 0x00
	regData  = 0x04
	regCtrl  = 0x05

	ctrlReset = 1 << 0
)

var errClosed = errors.New("bridge: closed")

type smconn interface {
	ReadReg(addr, reg uint8) (uint8, error)
	WriteReg(addr, reg, v uint8) error
	Close() error
}

var _ smconn = (*smbus.Conn)(nil)

// Conn is a connection to a register bridge.
type Conn struct {
	sm   smconn
	addr uint8 // bridge slave address

	ptr   int64 // cached address pointer
	valid bool
}

// Open opens the bridge at the slave address addr of the i2c bus.
func Open(bus int, addr uint8) (*Conn, error) {
	sm, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: could not open smbus %d (addr=0x%x): %w", bus, addr, err)
	}
	c, err := newConn(sm, addr)
	if err != nil {
		_ = sm.Close()
		return nil, err
	}
	return c, nil
}

func newConn(sm smconn, addr uint8) (*Conn, error) {
	c := &Conn{sm: sm, addr: addr}
	err := c.sm.WriteReg(c.addr, regCtrl, ctrlReset)
	if err != nil {
		return nil, fmt.Errorf("bridge: could not reset bridge 0x%x: %w", addr, err)
	}
	return c, nil
}

// Close closes the underlying smbus connection.
func (c *Conn) Close() error {
	if c.sm == nil {
		return nil
	}
	err := c.sm.Close()
	c.sm = nil
	if err != nil {
		return fmt.Errorf("bridge: could not close smbus: %w", err)
	}
	return nil
}

func (c *Conn) seek(off int64) error {
	if off < 0 || off > 0xffffffff {
		return fmt.Errorf("bridge: invalid address 0x%x", off)
	}
	if c.valid && c.ptr == off {
		return nil
	}
	c.valid = false
	for i := 0; i < 4; i++ {
		err := c.sm.WriteReg(c.addr, regAddr0+uint8(i), uint8(off>>(8*i)))
		if err != nil {
			return fmt.Errorf("bridge: could not set address 0x%x: %w", off, err)
		}
	}
	c.ptr = off
	c.valid = true
	return nil
}

// ReadAt implements the io.ReaderAt interface.
func (c *Conn) ReadAt(p []byte, off int64) (int, error) {
	if c.sm == nil {
		return 0, errClosed
	}
	err := c.seek(off)
	if err != nil {
		return 0, err
	}
	for i := range p {
		p[i], err = c.sm.ReadReg(c.addr, regData)
		if err != nil {
			c.valid = false
			return i, fmt.Errorf("bridge: could not read 0x%x: %w", off+int64(i), err)
		}
		c.ptr++
	}
	return len(p), nil
}

// WriteAt implements the io.WriterAt interface.
func (c *Conn) WriteAt(p []byte, off int64) (int, error) {
	if c.sm == nil {
		return 0, errClosed
	}
	err := c.seek(off)
	if err != nil {
		return 0, err
	}
	for i, v := range p {
		err = c.sm.WriteReg(c.addr, regData, v)
		if err != nil {
			c.valid = false
			return i, fmt.Errorf("bridge: could not write 0x%x: %w", off+int64(i), err)
		}
		c.ptr++
	}
	return len(p), nil
}

var (
	_ io.ReaderAt = (*Conn)(nil)
	_ io.WriterAt = (*Conn)(nil)
	_ io.Closer   = (*Conn)(nil)
)
