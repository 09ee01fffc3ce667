// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package board describes ADRV903X boards with YAML profiles.
//
// A profile names the register transport of a board, the channels brought
// up on it and the tuning of its driver:
//
//	board: lpc-01
//	transport:
//	  kind: mmap
//	  device: /dev/mem
//	  regions:
//	    - {addr: 0x46a00000, phys: 0x46a00000, size: 0x100000}
//	channels:
//	  rx:  [0, 1, 2, 3]
//	  orx: [0]
//	  tx:  [0, 1, 2, 3]
//	poll: {timeout: 100ms, interval: 10us}
//	min-version: 2.9.0.0
package board // import "github.com/go-lpc/adrv903x/board"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/adrv903x/bridge"
	"github.com/go-lpc/adrv903x/cpu"
	"github.com/go-lpc/adrv903x/internal/alert"
	"github.com/go-lpc/adrv903x/internal/mmap"
	"github.com/go-lpc/adrv903x/radio"
	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	MMap   = "mmap"   // memory-mapped windows of Device
	Bridge = "bridge" // SMBus register bridge
	Mem    = "mem"    // plain memory, for dry runs
)

// Profile describes a board.
type Profile struct {
	Board     string    `yaml:"board"`
	Server    string    `yaml:"server,omitempty"` // address of the control server
	Transport Transport `yaml:"transport"`
	Channels  *Channels `yaml:"channels,omitempty"`

	// CPUs routes the commands of channel index i to CPUs[i].
	CPUs []uint8 `yaml:"cpus,omitempty"`

	Poll    Poll `yaml:"poll,omitempty"`
	Mailbox Poll `yaml:"mailbox,omitempty"`

	MinVersion       string `yaml:"min-version,omitempty"`
	MaxBandwidth     uint64 `yaml:"max-bandwidth,omitempty"` // in Hz
	RestoreOnFailure bool   `yaml:"restore-on-failure,omitempty"`

	Image string       `yaml:"image,omitempty"` // default stream image file
	Mail  alert.Config `yaml:"mail,omitempty"`
}

// Transport describes how the registers of a board are reached.
type Transport struct {
	Kind    string        `yaml:"kind"`
	Device  string        `yaml:"device,omitempty"`
	Regions []mmap.Region `yaml:"regions,omitempty"`
	Bus     int           `yaml:"bus,omitempty"`
	Addr    uint8         `yaml:"addr,omitempty"`
}

// Channels lists the indices of the channels brought up on a board.
type Channels struct {
	Rx  []int `yaml:"rx"`
	ORx []int `yaml:"orx"`
	Tx  []int `yaml:"tx"`
}

// Poll bounds register polls.
type Poll struct {
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Load reads the profile stored in fname.
func Load(fname string) (Profile, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return Profile{}, fmt.Errorf("board: could not read profile %q: %w", fname, err)
	}
	p, err := Parse(raw)
	if err != nil {
		return p, fmt.Errorf("board: invalid profile %q: %w", fname, err)
	}
	return p, nil
}

// Parse decodes and validates a YAML profile.
func Parse(raw []byte) (Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	err := dec.Decode(&p)
	if err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("board: could not decode profile: %w", err)
	}
	err = p.validate()
	if err != nil {
		return p, err
	}
	return p, nil
}

// Marshal encodes the profile to YAML.
func (p Profile) Marshal() ([]byte, error) {
	o := new(bytes.Buffer)
	enc := yaml.NewEncoder(o)
	enc.SetIndent(2)
	err := enc.Encode(p)
	if err != nil {
		return nil, fmt.Errorf("board: could not encode profile: %w", err)
	}
	err = enc.Close()
	if err != nil {
		return nil, fmt.Errorf("board: could not encode profile: %w", err)
	}
	return o.Bytes(), nil
}

func (p Profile) validate() error {
	if p.Board == "" {
		return fmt.Errorf("board: missing board name")
	}
	switch p.Transport.Kind {
	case MMap:
		if p.Transport.Device == "" {
			return fmt.Errorf("board: %s: missing mmap device", p.Board)
		}
		fallthrough
	case Mem:
		if len(p.Transport.Regions) == 0 {
			return fmt.Errorf("board: %s: missing register regions", p.Board)
		}
	case Bridge:
		if p.Transport.Addr == 0 {
			return fmt.Errorf("board: %s: missing bridge address", p.Board)
		}
	default:
		return fmt.Errorf("board: %s: invalid transport kind %q", p.Board, p.Transport.Kind)
	}

	if p.Channels != nil {
		for _, v := range []struct {
			name string
			idx  []int
			max  int
		}{
			{"rx", p.Channels.Rx, 8},
			{"orx", p.Channels.ORx, 2},
			{"tx", p.Channels.Tx, 8},
		} {
			for _, i := range v.idx {
				if i < 0 || i >= v.max {
					return fmt.Errorf("board: %s: invalid %s channel index %d", p.Board, v.name, i)
				}
			}
		}
	}

	if len(p.CPUs) > 8 {
		return fmt.Errorf("board: %s: too many cpu routes (%d)", p.Board, len(p.CPUs))
	}
	for i, id := range p.CPUs {
		if id >= cpu.NumCPUs {
			return fmt.Errorf("board: %s: invalid cpu %d for channel %d", p.Board, id, i)
		}
	}

	if p.MinVersion != "" {
		_, err := radio.ParseVersion(p.MinVersion)
		if err != nil {
			return fmt.Errorf("board: %s: invalid minimum version: %w", p.Board, err)
		}
	}
	return nil
}

// InitializedChannels returns the channel mask of the profile.
// All channels are initialized when the profile does not list them.
func (p Profile) InitializedChannels() radio.Channel {
	if p.Channels == nil {
		return radio.RxAll | radio.ORxAll | radio.TxAll
	}
	var mask radio.Channel
	for _, i := range p.Channels.Rx {
		mask |= radio.RxChannel(i)
	}
	for _, i := range p.Channels.ORx {
		mask |= radio.ORx0 << i
	}
	for _, i := range p.Channels.Tx {
		mask |= radio.TxChannel(i)
	}
	return mask
}

// Options returns the device options described by the profile.
func (p Profile) Options(msg *log.Logger) ([]radio.Option, error) {
	opts := []radio.Option{
		radio.WithInitializedChannels(p.InitializedChannels()),
		radio.WithMaskRestoreOnFailure(p.RestoreOnFailure),
	}
	if msg != nil {
		opts = append(opts, radio.WithLogger(msg))
	}
	for i, id := range p.CPUs {
		opts = append(opts, radio.WithChannelCPU(i, cpu.ID(id)))
	}
	if p.Poll.Timeout > 0 {
		opts = append(opts, radio.WithPollTimeout(p.Poll.Timeout, p.Poll.Interval))
	}
	if p.MinVersion != "" {
		v, err := radio.ParseVersion(p.MinVersion)
		if err != nil {
			return nil, fmt.Errorf("board: %s: invalid minimum version: %w", p.Board, err)
		}
		opts = append(opts, radio.WithVersionCheck(v))
	}
	if p.MaxBandwidth > 0 {
		opts = append(opts, radio.WithMaxBandwidth(p.MaxBandwidth))
	}
	return opts, nil
}

func (p Profile) mboxOptions(msg *log.Logger) []cpu.Option {
	var opts []cpu.Option
	if msg != nil {
		opts = append(opts, cpu.WithLogger(msg))
	}
	if p.Mailbox.Timeout > 0 {
		opts = append(opts, cpu.WithTimeout(p.Mailbox.Timeout, p.Mailbox.Timeout))
	}
	if p.Mailbox.Interval > 0 {
		opts = append(opts, cpu.WithInterval(p.Mailbox.Interval))
	}
	return opts
}

type transport interface {
	radio.Bus
	io.Closer
}

func (p Profile) openBus() (transport, error) {
	tr := p.Transport
	switch tr.Kind {
	case MMap:
		return mmap.Open(tr.Device, tr.Regions...)
	case Mem:
		return mmap.MapFrom(tr.Regions...), nil
	case Bridge:
		return bridge.Open(tr.Bus, tr.Addr)
	}
	return nil, fmt.Errorf("board: invalid transport kind %q", tr.Kind)
}

// Open opens the transport of the board and returns a device driving it.
// Closing the device closes the transport.
func (p Profile) Open(msg *log.Logger) (*radio.Device, error) {
	opts, err := p.Options(msg)
	if err != nil {
		return nil, err
	}

	bus, err := p.openBus()
	if err != nil {
		return nil, fmt.Errorf("board: could not open %s transport of %q: %w", p.Transport.Kind, p.Board, err)
	}

	mbox := cpu.New(bus, p.mboxOptions(msg)...)
	return radio.NewDevice(bus, mbox, opts...), nil
}
