// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command adrv-ctl sends one command to an adrv-srv server.
//
// Usage:
//
//	$> adrv-ctl -addr=lpc-01:8877 load ./stream_image.bin
//	$> adrv-ctl -addr=lpc-01:8877 enable '{"rx_sel": 3, "rx_en": 1}'
//	$> adrv-ctl -addr=lpc-01:8877 stream-errors
//
// Failed commands are reported by mail when the MAIL_xxx environment
// variables (or the mail section of the board profile) are set.
package main // import "github.com/go-lpc/adrv903x/cmd/adrv-ctl"

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/go-lpc/adrv903x/board"
	"github.com/go-lpc/adrv903x/internal/alert"
	"github.com/go-lpc/adrv903x/radio"
)

func main() {
	log.SetPrefix("adrv-ctl: ")
	log.SetFlags(0)

	var (
		addr  = flag.String("addr", "", "[ip]:[port] of the adrv-srv server")
		fname = flag.String("profile", "", "path to the YAML board profile")
		chunk = flag.Int("chunk", 4096, "size of stream image chunks")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: adrv-ctl [OPTIONS] CMD [JSON-ARGS]

ex:
 $> adrv-ctl -addr=lpc-01:8877 load ./stream_image.bin
 $> adrv-ctl -addr=lpc-01:8877 lo-get '{"lo": 0}'

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing command")
	}

	var (
		name = "adrv"
		mcfg = alert.ConfigFromEnv()
	)
	if *fname != "" {
		prof, err := board.Load(*fname)
		if err != nil {
			log.Fatalf("could not load board profile: %+v", err)
		}
		name = prof.Board
		if *addr == "" {
			*addr = prof.Server
		}
		if prof.Mail.Valid() {
			mcfg = prof.Mail
		}
	}

	err := run(*addr, flag.Args(), *chunk, os.Stdout)
	if err != nil {
		mailer := alert.New("adrv-ctl", mcfg)
		e := mailer.Alert(
			fmt.Sprintf("%s: %s failed", name, flag.Arg(0)),
			fmt.Sprintf("board:   %s\naddr:    %s\ncommand: %s\nerror:   %+v\n",
				name, *addr, strings.Join(flag.Args(), " "), err,
			),
		)
		if e != nil {
			log.Printf("could not send mail alert: %+v", e)
		}
		log.Fatalf("%+v", err)
	}
}

func run(addr string, args []string, chunk int, w io.Writer) error {
	if addr == "" {
		return fmt.Errorf("missing server address")
	}

	cli, err := radio.Dial(addr)
	if err != nil {
		return err
	}
	defer cli.Close()

	name := args[0]
	switch name {
	case "load":
		if len(args) < 2 {
			return fmt.Errorf("missing stream image file")
		}
		return load(cli, args[1], chunk, w)
	}

	var req interface{}
	if len(args) > 1 {
		raw := json.RawMessage(args[1])
		if !json.Valid(raw) {
			return fmt.Errorf("invalid JSON arguments for %q: %q", name, args[1])
		}
		req = raw
	}

	var rep json.RawMessage
	err = cli.Do(name, req, &rep)
	if err != nil {
		return err
	}
	if len(rep) == 0 {
		return nil
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("could not format %q reply: %w", name, err)
	}
	fmt.Fprintf(w, "%s\n", out)
	return nil
}

func load(cli *radio.Client, fname string, chunk int, w io.Writer) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open stream image: %w", err)
	}
	defer f.Close()

	err = cli.LoadStreamImage(f, chunk)
	if err != nil {
		return fmt.Errorf("could not load stream image %q: %w", fname, err)
	}

	var st radio.LoadState
	err = cli.Do("load-state", nil, &st)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "stream image %q loaded (stage=%v)\n", fname, st.Stage)
	return nil
}
