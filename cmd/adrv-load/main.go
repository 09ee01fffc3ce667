// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command adrv-load loads a stream image into several boards concurrently.
//
// The image is read from a file or from the stream image database:
//
//	$> adrv-load --image=./stream_image.bin lpc-01:8877 lpc-02:8877
//	$> adrv-load --db=adrv --board=lpc-01 lpc-01:8877
//	$> adrv-load --db=adrv --board=lpc-01 --name=tdd lpc-01:8877
//
// With --store, the image file is registered in the database instead:
//
//	$> adrv-load --store --db=adrv --board=lpc-01 --name=tdd --version=2.9.1.4 --image=./tdd.bin
package main // import "github.com/go-lpc/adrv903x/cmd/adrv-load"

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-lpc/adrv903x/imgdb"
	"github.com/go-lpc/adrv903x/radio"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("adrv-load: ")
	log.SetFlags(0)

	err := xmain(os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type options struct {
	image   string
	db      string
	board   string
	name    string
	version string
	store   bool
	chunk   int
	timeout time.Duration
	addrs   []string
}

func parse(args []string) (options, error) {
	var (
		opts options
		fset = flag.NewFlagSet("adrv-load", flag.ContinueOnError)
	)
	fset.StringVarP(&opts.image, "image", "i", "", "path to the stream image file")
	fset.StringVar(&opts.db, "db", "", "name of the stream image database")
	fset.StringVarP(&opts.board, "board", "b", "", "board whose stream image is retrieved from the database")
	fset.StringVarP(&opts.name, "name", "n", "", "name of the stream image in the database (default: latest)")
	fset.StringVar(&opts.version, "version", "", "version of the stored stream image")
	fset.BoolVar(&opts.store, "store", false, "store the image file into the database")
	fset.IntVar(&opts.chunk, "chunk", 4096, "size of stream image chunks")
	fset.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "timeout of the whole load")

	err := fset.Parse(args)
	if err != nil {
		return opts, err
	}
	opts.addrs = fset.Args()

	switch {
	case opts.store:
		if opts.image == "" || opts.db == "" || opts.board == "" || opts.version == "" {
			return opts, fmt.Errorf("--store needs --image, --db, --board and --version")
		}
	case opts.image == "" && opts.db == "":
		return opts, fmt.Errorf("missing stream image source (--image or --db)")
	case opts.image != "" && opts.db != "":
		return opts, fmt.Errorf("--image and --db are mutually exclusive")
	case opts.db != "" && opts.board == "":
		return opts, fmt.Errorf("missing --board")
	case len(opts.addrs) == 0:
		return opts, fmt.Errorf("missing adrv-srv addresses")
	}
	return opts, nil
}

func xmain(args []string) error {
	opts, err := parse(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if opts.store {
		return store(ctx, opts)
	}

	img, err := fetch(ctx, opts)
	if err != nil {
		return err
	}

	return run(ctx, img, opts.addrs, opts.chunk)
}

func fetch(ctx context.Context, opts options) ([]byte, error) {
	if opts.image != "" {
		raw, err := os.ReadFile(opts.image)
		if err != nil {
			return nil, fmt.Errorf("could not read stream image: %w", err)
		}
		return raw, nil
	}

	db, err := imgdb.Open(opts.db)
	if err != nil {
		return nil, fmt.Errorf("could not open stream image db: %w", err)
	}
	defer db.Close()

	var img imgdb.Image
	switch opts.name {
	case "":
		img, err = db.LastStreamImage(ctx, opts.board)
	default:
		img, err = db.StreamImage(ctx, opts.board, opts.name)
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve stream image: %w", err)
	}
	log.Printf("stream image %q (version=%v, created=%v)", img.Name, img.Version, img.Created.Format(time.RFC3339))
	return img.Data, nil
}

func store(ctx context.Context, opts options) error {
	vers, err := radio.ParseVersion(opts.version)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(opts.image)
	if err != nil {
		return fmt.Errorf("could not read stream image: %w", err)
	}

	hdr, err := radio.ParseImageHeader(raw, nil)
	if err != nil {
		return fmt.Errorf("could not parse stream image %q: %w", opts.image, err)
	}
	if hdr.Version != vers {
		return fmt.Errorf("stream image version mismatch: image=%v, flag=%v", hdr.Version, vers)
	}

	name := opts.name
	if name == "" {
		name = filepath.Base(opts.image)
	}

	db, err := imgdb.Open(opts.db)
	if err != nil {
		return fmt.Errorf("could not open stream image db: %w", err)
	}
	defer db.Close()

	return db.AddStreamImage(ctx, imgdb.Image{
		Board:   opts.board,
		Name:    name,
		Version: vers,
		Data:    raw,
	})
}

func run(ctx context.Context, img []byte, addrs []string, chunk int) error {
	grp, ctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		addr := addr
		grp.Go(func() error {
			return load(ctx, addr, bytes.NewReader(img), chunk)
		})
	}

	err := grp.Wait()
	if err != nil {
		return fmt.Errorf("could not load stream image: %w", err)
	}
	log.Printf("stream image loaded into %d board(s)", len(addrs))
	return nil
}

func load(ctx context.Context, addr string, r io.Reader, chunk int) error {
	cli, err := radio.Dial(addr)
	if err != nil {
		return err
	}
	defer cli.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- cli.LoadStreamImage(r, chunk)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("could not load %q: %w", addr, ctx.Err())
	case err = <-errc:
		if err != nil {
			return fmt.Errorf("could not load %q: %w", addr, err)
		}
	}
	log.Printf("%s: stream image loaded", addr)
	return nil
}
