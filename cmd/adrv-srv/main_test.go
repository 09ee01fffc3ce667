// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/adrv903x/board"
	"github.com/go-lpc/adrv903x/internal/mmap"
)

func TestOpener(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	prof := board.Profile{
		Board: "lpc-test",
		Transport: board.Transport{
			Kind:    board.Mem,
			Regions: []mmap.Region{{Addr: 0, Size: 0x100}},
		},
		Image: filepath.Join(t.TempDir(), "not-there.bin"),
	}

	dev, err := opener(prof, false)()
	if err != nil {
		t.Fatalf("could not open board: %+v", err)
	}
	if dev.StreamLoaded() {
		t.Fatalf("stream unexpectedly loaded")
	}
	_ = dev.Close()

	_, err = opener(prof, true)()
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("invalid error: %+v", err)
	}

	// a truncated image is reported.
	err = os.WriteFile(prof.Image, bytes.Repeat([]byte{0}, 16), 0644)
	if err != nil {
		t.Fatalf("could not write image: %+v", err)
	}
	_, err = opener(prof, true)()
	if err == nil || !strings.Contains(err.Error(), "could not load stream image") {
		t.Fatalf("invalid error: %+v", err)
	}
}
