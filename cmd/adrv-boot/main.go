// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command adrv-boot supervises the control processes of an ADRV903X board.
//
// adrv-boot checks the board profile and its default stream image, then
// starts adrv-srv (and adrv-tdaq, when asked) and restarts them when they
// exit, up to -restarts times.
// Logs are appended to $ADRVLOGDIR/<board>-<process>.log.
//
// Usage:
//
//	$> adrv-boot -profile=/etc/adrv/lpc-01.yaml -tdaq -pmon
package main // import "github.com/go-lpc/adrv903x/cmd/adrv-boot"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-lpc/adrv903x/board"
	"github.com/go-lpc/adrv903x/radio"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("adrv-boot: ")
	log.SetFlags(0)

	var (
		doMon    = flag.Bool("pmon", false, "enable pmon monitoring")
		doFreq   = flag.Duration("freq", 1*time.Second, "pmon frequency")
		doTDAQ   = flag.Bool("tdaq", false, "start the adrv-tdaq process")
		fname    = flag.String("profile", "", "path to the YAML board profile")
		restarts = flag.Int("restarts", 5, "number of restarts of a process before giving up")
		delay    = flag.Duration("delay", 2*time.Second, "delay before restarting a process")
	)

	flag.Parse()

	if *fname == "" {
		flag.Usage()
		log.Fatalf("missing board profile")
	}

	procs, err := plan(*fname, *doTDAQ)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	dir := os.Getenv("ADRVLOGDIR")
	if dir == "" {
		dir = "/var/log/adrv"
	}

	sup := supervisor{
		dir:      dir,
		mon:      *doMon,
		freq:     *doFreq,
		restarts: *restarts,
		delay:    *delay,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	err = sup.run(procs, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// proc describes a supervised process.
type proc struct {
	name string // name of the log files
	path string
	args []string
}

// plan checks the board profile stored in fname and returns the processes
// serving that board.
// adrv-srv loads the default stream image of the profile, when there is one
// and its header is valid.
func plan(fname string, tdaq bool) ([]proc, error) {
	prof, err := board.Load(fname)
	if err != nil {
		return nil, fmt.Errorf("could not load board profile: %w", err)
	}

	srv := proc{
		name: prof.Board + "-adrv-srv",
		path: "adrv-srv",
		args: []string{"-profile=" + fname},
	}
	if prof.Image != "" {
		v, err := checkImage(prof)
		if err != nil {
			return nil, fmt.Errorf("board %q: %w", prof.Board, err)
		}
		log.Printf("board %q: stream image %q v%v", prof.Board, prof.Image, v)
		srv.args = append(srv.args, "-load")
	}

	procs := []proc{srv}
	if tdaq {
		procs = append(procs, proc{
			name: prof.Board + "-adrv-tdaq",
			path: "adrv-tdaq",
			args: []string{fname},
		})
	}
	return procs, nil
}

// checkImage parses the header of the default stream image of prof.
func checkImage(prof board.Profile) (radio.Version, error) {
	var minVer *radio.Version
	if prof.MinVersion != "" {
		v, err := radio.ParseVersion(prof.MinVersion)
		if err != nil {
			return radio.Version{}, fmt.Errorf("invalid minimum stream image version: %w", err)
		}
		minVer = &v
	}

	raw, err := os.ReadFile(prof.Image)
	if err != nil {
		return radio.Version{}, fmt.Errorf("could not read stream image: %w", err)
	}

	hdr, err := radio.ParseImageHeader(raw, minVer)
	if err != nil {
		return hdr.Version, fmt.Errorf("invalid stream image %q: %w", prof.Image, err)
	}
	return hdr.Version, nil
}

var killall = func(name string) error {
	kill := exec.Command("killall", "-q", name)
	kill.Stderr = os.Stderr
	kill.Stdout = os.Stdout
	return kill.Run()
}

// supervisor runs processes, restarting them when they exit.
type supervisor struct {
	dir  string        // log directory
	mon  bool          // pmon monitoring
	freq time.Duration // pmon frequency

	restarts int
	delay    time.Duration
}

// run supervises procs until stop is signaled or one of them exhausted its
// restarts.
func (sup supervisor) run(procs []proc, stop chan os.Signal) error {
	for _, p := range procs {
		err := killall(filepath.Base(p.path))
		if err != nil {
			log.Printf("no previous %q process: %+v", p.path, err)
		}
	}

	grp, ctx := errgroup.WithContext(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-stop:
			log.Printf("stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, p := range procs {
		p := p
		grp.Go(func() error {
			return sup.supervise(ctx, p)
		})
	}

	err := grp.Wait()
	if err != nil {
		return fmt.Errorf("could not supervise board processes: %w", err)
	}
	return nil
}

var errExited = errors.New("process exited")

func (sup supervisor) supervise(ctx context.Context, p proc) error {
	out, err := os.OpenFile(
		filepath.Join(sup.dir, p.name+".log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644,
	)
	if err != nil {
		return fmt.Errorf("could not create output log file for %q: %w", p.name, err)
	}
	defer out.Close()

	for n := 0; ; n++ {
		fmt.Fprintf(out, "### %s: starting %s %q (run=%d)\n",
			time.Now().UTC().Format(time.RFC3339), p.path, p.args, n,
		)
		err := sup.exec(ctx, p, out)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errExited
		}
		if n >= sup.restarts {
			return fmt.Errorf("%q stopped after %d runs: %w", p.name, n+1, err)
		}

		log.Printf("%q exited (%v), restarting in %v...", p.name, err, sup.delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sup.delay):
		}
	}
}

// exec runs p once, until it exits or ctx is done.
func (sup supervisor) exec(ctx context.Context, p proc, out io.Writer) error {
	cmd := exec.CommandContext(ctx, p.path, p.args...)
	cmd.Stdout = out
	cmd.Stderr = out

	log.Printf("starting %q...", p.name)
	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start %q: %w", p.name, err)
	}

	if sup.mon {
		mon, err := sup.monitor(p.name, cmd.Process.Pid)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return err
		}
		defer mon()
	}

	return cmd.Wait()
}

// monitor starts monitoring the process pid and returns a function
// stopping it.
func (sup supervisor) monitor(name string, pid int) (func(), error) {
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("could not start monitoring %q (pid=%d): %w", name, pid, err)
	}
	f, err := os.OpenFile(
		filepath.Join(sup.dir, name+"-pmon.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644,
	)
	if err != nil {
		_ = p.Kill()
		return nil, fmt.Errorf("could not create pmon log file for %q: %w", name, err)
	}
	p.W = f
	p.Freq = sup.freq

	go func() {
		defer f.Close()
		err := p.Run()
		if err != nil {
			log.Printf("could not monitor %q: %+v", name, err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop monitoring %q: %+v", name, err)
		}
	}, nil
}
