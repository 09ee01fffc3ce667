// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command adrv-shell is an interactive client of an adrv-srv server.
//
// Usage:
//
//	$> adrv-shell -addr=lpc-01:8877
//	adrv> load ./stream_image.bin
//	adrv> lo-set {"lo": 0, "frequency": 3500000000}
//	adrv> stream-errors
//	adrv> quit
package main // import "github.com/go-lpc/adrv903x/cmd/adrv-shell"

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-lpc/adrv903x/radio"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("adrv-shell: ")
	log.SetFlags(0)

	var (
		addr  = flag.String("addr", ":8877", "[ip]:[port] of the adrv-srv server")
		chunk = flag.Int("chunk", 4096, "size of stream image chunks")
		hist  = flag.String("history", filepath.Join(os.TempDir(), ".adrv-shell.history"), "path to the history file")
	)

	flag.Parse()

	cli, err := radio.Dial(*addr)
	if err != nil {
		log.Fatalf("could not connect to server: %+v", err)
	}
	defer cli.Close()

	sh := newShell(cli, *chunk, os.Stdout)

	ln := liner.NewLiner()
	defer ln.Close()

	ln.SetCtrlCAborts(true)
	ln.SetCompleter(sh.complete)

	if f, err := os.Open(*hist); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		f, err := os.Create(*hist)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = ln.WriteHistory(f)
	}()

	for {
		line, err := ln.Prompt("adrv> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return
			}
			log.Printf("could not read line: %+v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			log.Printf("%+v", err)
		}
		if quit {
			return
		}
	}
}

type shell struct {
	cli   *radio.Client
	chunk int
	w     io.Writer
	cmds  []string
}

func newShell(cli *radio.Client, chunk int, w io.Writer) *shell {
	return &shell{
		cli:   cli,
		chunk: chunk,
		w:     w,
		cmds:  append(radio.Commands(), "help", "exit"),
	}
}

func (sh *shell) complete(line string) []string {
	var out []string
	for _, name := range sh.cmds {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	return out
}

// exec runs one command line and reports whether the session is over.
func (sh *shell) exec(line string) (bool, error) {
	name, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	args = strings.TrimSpace(args)

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintf(sh.w, "commands: %s\n", strings.Join(sh.cmds, ", "))
		return false, nil
	case "load":
		if args == "" {
			return false, fmt.Errorf("missing stream image file")
		}
		f, err := os.Open(args)
		if err != nil {
			return false, fmt.Errorf("could not open stream image: %w", err)
		}
		defer f.Close()
		err = sh.cli.LoadStreamImage(f, sh.chunk)
		if err != nil {
			return false, fmt.Errorf("could not load stream image %q: %w", args, err)
		}
		fmt.Fprintf(sh.w, "stream image %q loaded\n", args)
		return false, nil
	}

	var req interface{}
	if args != "" {
		raw := json.RawMessage(args)
		if !json.Valid(raw) {
			return false, fmt.Errorf("invalid JSON arguments for %q: %q", name, args)
		}
		req = raw
	}

	var rep json.RawMessage
	err := sh.cli.Do(name, req, &rep)
	if err != nil {
		return name == "close", err
	}
	if name == "close" {
		return true, nil
	}
	if len(rep) != 0 {
		fmt.Fprintf(sh.w, "%s\n", rep)
	}
	return false, nil
}
