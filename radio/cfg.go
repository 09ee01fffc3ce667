// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"log"
	"time"

	"github.com/go-lpc/adrv903x/cpu"
	"github.com/go-lpc/adrv903x/internal/poll"
)

const (
	numTx = 8
	numRx = 8

	triggerSlotChecks = 1000
)

type config struct {
	initialized Channel
	cpus        [numTx]cpu.ID // channel index -> CPU running its calibrations

	cmd  poll.Budget // CPU0 command interface
	slot poll.Budget // slice stream trigger slot

	minVersion *Version
	maxBW      uint64 // largest channel bandwidth, in Hz

	restoreOnFailure bool
}

func newConfig() config {
	return config{
		initialized: RxAll | ORxAll | TxAll,
		cpus: [numTx]cpu.ID{
			cpu.CPU0, cpu.CPU0, cpu.CPU0, cpu.CPU0,
			cpu.CPU1, cpu.CPU1, cpu.CPU1, cpu.CPU1,
		},
		cmd:  poll.Default,
		slot: poll.Budget{Checks: triggerSlotChecks, Interval: 10 * time.Microsecond},
	}
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger of the device.
func WithLogger(msg *log.Logger) Option {
	return func(dev *Device) {
		dev.msg = msg
	}
}

// WithInitializedChannels sets the channels brought up on the device.
// Stream images of other channels are skipped and their enables rejected.
func WithInitializedChannels(chans Channel) Option {
	return func(dev *Device) {
		dev.cfg.initialized = chans & (RxAll | ORxAll | TxAll)
	}
}

// WithChannelCPU routes the per-channel commands of channel index i
// (Rx i and Tx i) to the given CPU.
func WithChannelCPU(i int, id cpu.ID) Option {
	return func(dev *Device) {
		if i < 0 || i >= len(dev.cfg.cpus) {
			dev.msg.Printf("invalid channel index %d for cpu routing", i)
			return
		}
		dev.cfg.cpus[i] = id
	}
}

// WithPollTimeout bounds every register poll of the device.
func WithPollTimeout(timeout, interval time.Duration) Option {
	return func(dev *Device) {
		dev.cfg.cmd.Timeout = timeout
		dev.cfg.cmd.Interval = interval
		dev.cfg.slot.Timeout = timeout
		dev.cfg.slot.Interval = interval
	}
}

// WithVersionCheck rejects stream images older than v.
func WithVersionCheck(v Version) Option {
	return func(dev *Device) {
		dev.cfg.minVersion = &v
	}
}

// WithMaxBandwidth sets the largest channel bandwidth, in Hz.
// LO frequencies must then be above half of it.
func WithMaxBandwidth(hz uint64) Option {
	return func(dev *Device) {
		dev.cfg.maxBW = hz
	}
}

// WithMaskRestoreOnFailure makes LoFrequencySet restore the interrupt and
// ramp-down masks even when the CPU command fails.
func WithMaskRestoreOnFailure(v bool) Option {
	return func(dev *Device) {
		dev.cfg.restoreOnFailure = v
	}
}
