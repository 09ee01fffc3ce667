// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command adrv-tdaq drives an ADRV903X board as a TDAQ process.
//
// The board profile is given as the first positional argument:
//
//	$> adrv-tdaq -id adrv-01 -rc-addr :44000 /etc/adrv/lpc-01.yaml
//
// On /init the board is opened and its default stream image loaded.
// Between /start and /stop the configured channels are enabled and the
// stream processor errors are published on the /stream-errors output.
package main // import "github.com/go-lpc/adrv903x/cmd/adrv-tdaq"

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/adrv903x/board"
	"github.com/go-lpc/adrv903x/radio"
)

func main() {
	cmd := flags.New()

	fname := os.Getenv("ADRV_PROFILE")
	if len(cmd.Args) > 0 {
		fname = cmd.Args[0]
	}

	dev := newAdrv(fname)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/stream-errors", dev.streamErrors)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type msgStream interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type adrv struct {
	fname string
	freq  time.Duration // stream error polling period

	load func(fname string) (board.Profile, error)

	mu   sync.Mutex
	prof board.Profile
	dev  *radio.Device
	on   bool

	nerrs int
	errs  chan []byte
}

func newAdrv(fname string) *adrv {
	return &adrv{
		fname: fname,
		freq:  100 * time.Millisecond,
		load:  board.Load,
		errs:  make(chan []byte, 1024),
	}
}

func (dev *adrv) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return dev.config(ctx.Msg)
}

func (dev *adrv) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.init(ctx.Msg)
}

func (dev *adrv) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return dev.reset(ctx.Msg)
}

func (dev *adrv) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return dev.enable(ctx.Msg, true)
}

func (dev *adrv) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dev.mu.Lock()
	n := dev.nerrs
	dev.mu.Unlock()
	ctx.Msg.Debugf("received /stop command... -> stream-errors=%d", n)
	return dev.enable(ctx.Msg, false)
}

func (dev *adrv) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return dev.close()
}

func (dev *adrv) config(msg msgStream) error {
	if dev.fname == "" {
		return fmt.Errorf("missing board profile")
	}
	prof, err := dev.load(dev.fname)
	if err != nil {
		msg.Errorf("could not load board profile: %+v", err)
		return fmt.Errorf("could not load board profile: %w", err)
	}

	dev.mu.Lock()
	dev.prof = prof
	dev.mu.Unlock()

	msg.Infof("board %q configured (channels=%v)", prof.Board, prof.InitializedChannels())
	return nil
}

func (dev *adrv) init(msg msgStream) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.prof.Board == "" {
		return fmt.Errorf("board not configured")
	}
	if dev.dev != nil {
		_ = dev.dev.Close()
		dev.dev = nil
	}

	rdev, err := dev.prof.Open(nil)
	if err != nil {
		msg.Errorf("could not open board %q: %+v", dev.prof.Board, err)
		return fmt.Errorf("could not open board: %w", err)
	}

	if dev.prof.Image != "" {
		f, err := os.Open(dev.prof.Image)
		if err != nil {
			_ = rdev.Close()
			return fmt.Errorf("could not open stream image: %w", err)
		}
		defer f.Close()

		err = rdev.LoadStreamImage(f, 4096)
		if err != nil {
			_ = rdev.Close()
			msg.Errorf("could not load stream image %q: %+v", dev.prof.Image, err)
			return fmt.Errorf("could not load stream image: %w", err)
		}
		msg.Infof("stream image %q loaded", dev.prof.Image)
	}

	dev.dev = rdev
	dev.nerrs = 0
	return nil
}

func (dev *adrv) reset(msg msgStream) error {
	err := dev.close()
	if err != nil {
		msg.Errorf("could not close board: %+v", err)
	}
	return dev.init(msg)
}

func (dev *adrv) enable(msg msgStream, on bool) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.dev == nil {
		return fmt.Errorf("board not initialized")
	}

	var (
		chans = dev.dev.InitializedChannels()
		orx   = chans & radio.ORxAll
		rx    = chans & radio.RxAll
		tx    = chans & radio.TxAll
		err   error
	)
	switch on {
	case true:
		err = dev.dev.RxTxEnableSet(orx, orx, rx, rx, tx, tx)
	default:
		err = dev.dev.RxTxEnableSet(orx, 0, rx, 0, tx, 0)
	}
	if err != nil {
		msg.Errorf("could not switch channels %v (on=%v): %+v", chans, on, err)
		return fmt.Errorf("could not switch channels: %w", err)
	}
	dev.on = on
	return nil
}

func (dev *adrv) close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.on = false
	if dev.dev == nil {
		return nil
	}
	err := dev.dev.Close()
	dev.dev = nil
	return err
}

// poll collects the latched stream processor errors of a running board.
func (dev *adrv) poll(msg msgStream) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.dev == nil || !dev.on {
		return nil
	}

	errs, err := dev.dev.StreamProcErrorGet()
	if err != nil {
		return fmt.Errorf("could not read stream errors: %w", err)
	}
	for _, e := range errs {
		msg.Infof("stream error: %v", e)
		raw, err := encodeStreamError(e)
		if err != nil {
			return err
		}
		select {
		case dev.errs <- raw:
			dev.nerrs++
		default:
			msg.Errorf("stream error dropped: %v", e)
		}
	}
	return nil
}

func encodeStreamError(e radio.StreamProcError) ([]byte, error) {
	o := new(bytes.Buffer)
	enc := tdaq.NewEncoder(o)
	enc.WriteStr(e.Slice)
	enc.WriteU32(e.Stream)
	enc.WriteU32(e.Value)
	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("could not encode stream error: %w", err)
	}
	return o.Bytes(), nil
}

func (dev *adrv) streamErrors(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.errs:
		dst.Body = data
	}
	return nil
}

func (dev *adrv) run(ctx tdaq.Context) error {
	tick := time.NewTicker(dev.freq)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tick.C:
			err := dev.poll(ctx.Msg)
			if err != nil {
				ctx.Msg.Errorf("%+v", err)
			}
		}
	}
}
