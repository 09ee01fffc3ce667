// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command adrv-srv serves an ADRV903X board over the JSON control protocol.
//
// Usage:
//
//	$> adrv-srv -profile=/etc/adrv/lpc-01.yaml -addr=:8877
package main // import "github.com/go-lpc/adrv903x/cmd/adrv-srv"

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-lpc/adrv903x/board"
	"github.com/go-lpc/adrv903x/radio"
)

func main() {
	log.SetPrefix("adrv-srv: ")
	log.SetFlags(0)

	var (
		fname = flag.String("profile", "", "path to the YAML board profile")
		addr  = flag.String("addr", "", "[ip]:[port] to listen on (default: from profile)")
		load  = flag.Bool("load", false, "load the default stream image of the profile when opening the board")
	)

	flag.Parse()

	if *fname == "" {
		flag.Usage()
		log.Fatalf("missing board profile")
	}

	prof, err := board.Load(*fname)
	if err != nil {
		log.Fatalf("could not load board profile: %+v", err)
	}

	if *addr == "" {
		*addr = prof.Server
	}
	if *addr == "" {
		*addr = ":8877"
	}

	log.Printf("serving board %q on %q...", prof.Board, *addr)
	err = radio.Serve(*addr, opener(prof, *load))
	if err != nil {
		log.Fatalf("could not serve board %q: %+v", prof.Board, err)
	}
}

func opener(prof board.Profile, load bool) func() (*radio.Device, error) {
	msg := log.New(os.Stdout, "adrv: ", 0)
	return func() (*radio.Device, error) {
		dev, err := prof.Open(msg)
		if err != nil {
			return nil, err
		}

		if !load || prof.Image == "" {
			return dev, nil
		}

		err = loadImage(dev, prof.Image)
		if err != nil {
			_ = dev.Close()
			return nil, err
		}
		return dev, nil
	}
}

func loadImage(dev *radio.Device, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open stream image: %w", err)
	}
	defer f.Close()

	log.Printf("loading stream image %q...", fname)
	err = dev.LoadStreamImage(f, 4096)
	if err != nil {
		return fmt.Errorf("could not load stream image %q: %w", fname, err)
	}
	return nil
}
