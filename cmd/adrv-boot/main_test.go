// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/adrv903x/radio"
)

// streamImage returns a minimal stream image of version 2.9.1.4.
func streamImage() []byte {
	const (
		hdrSize = 424
		nslices = 20
		size    = 440 + 16*(nslices-1)
	)
	p := make([]byte, size)
	for i, v := range []uint32{2, 9, 1, 4} {
		binary.LittleEndian.PutUint32(p[8+4*i:], v)
	}
	binary.LittleEndian.PutUint32(p[24:], hdrSize)
	for i := 0; i < nslices; i++ {
		sz, off := uint32(16), uint32(440+16*(i-1))
		if i == 0 {
			sz, off = 440, 0
		}
		binary.LittleEndian.PutUint32(p[28+8*i:], sz)
		binary.LittleEndian.PutUint32(p[28+8*i+4:], off)
	}
	return p
}

func writeProfile(t *testing.T, dir, extra string) string {
	t.Helper()
	fname := filepath.Join(dir, "lpc-test.yaml")
	raw := "board: lpc-test\ntransport: {kind: mem, regions: [{addr: 0, size: 256}]}\n" + extra
	err := os.WriteFile(fname, []byte(raw), 0644)
	if err != nil {
		t.Fatalf("could not write profile: %+v", err)
	}
	return fname
}

func TestPlan(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "stream.bin")
	err := os.WriteFile(img, streamImage(), 0644)
	if err != nil {
		t.Fatalf("could not write stream image: %+v", err)
	}

	for _, tc := range []struct {
		name  string
		extra string
		tdaq  bool
		want  func(fname string) []proc
		err   error
	}{
		{
			name: "srv",
			want: func(fname string) []proc {
				return []proc{
					{"lpc-test-adrv-srv", "adrv-srv", []string{"-profile=" + fname}},
				}
			},
		},
		{
			name: "srv-tdaq",
			tdaq: true,
			want: func(fname string) []proc {
				return []proc{
					{"lpc-test-adrv-srv", "adrv-srv", []string{"-profile=" + fname}},
					{"lpc-test-adrv-tdaq", "adrv-tdaq", []string{fname}},
				}
			},
		},
		{
			name:  "image",
			extra: "image: " + img + "\nmin-version: 2.9.0.0\n",
			want:  func(fname string) []proc {
				return []proc{
					{"lpc-test-adrv-srv", "adrv-srv", []string{"-profile=" + fname, "-load"}},
				}
			},
		},
		{
			name:  "image-too-old",
			extra: "image: " + img + "\nmin-version: 2.10.0.0\n",
			err:   &radio.VersionRangeError{},
		},
		{
			name:  "image-missing",
			extra: "image: " + filepath.Join(dir, "not-there.bin") + "\n",
			err:   fs.ErrNotExist,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := writeProfile(t, t.TempDir(), tc.extra)
			got, err := plan(fname, tc.tdaq)
			switch {
			case tc.err != nil:
				if err == nil {
					t.Fatalf("expected an error")
				}
				var verr *radio.VersionRangeError
				switch {
				case errors.As(tc.err, &verr):
					if !errors.As(err, &verr) {
						t.Fatalf("invalid error: got=%+v, want a version range error", err)
					}
				case !errors.Is(err, tc.err):
					t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.err)
				}
				return
			case err != nil:
				t.Fatalf("could not plan processes: %+v", err)
			}

			if want := tc.want(fname); !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid processes:\ngot= %+v\nwant=%+v", got, want)
			}
		})
	}
}

func TestPlanInvalidProfile(t *testing.T) {
	_, err := plan(filepath.Join(t.TempDir(), "not-there.yaml"), false)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, fs.ErrNotExist)
	}
}

func TestRun(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skipf("no sleep command: %+v", err)
	}

	var killed []string
	defer func(f func(string) error) { killall = f }(killall)
	killall = func(name string) error {
		killed = append(killed, name)
		return nil
	}

	for _, tc := range []struct {
		name  string
		procs []proc
		mon   bool
		stop  bool
		runs  int
		err   error
	}{
		{
			name:  "restart",
			procs: []proc{
				{"b-sleep", sleep, []string{"0"}},
			},
			runs: 3,
			err:  errExited,
		},
		{
			name:  "restart-pmon",
			procs: []proc{
				{"b-sleep", sleep, []string{"1"}},
			},
			mon:  true,
			runs: 3,
			err:  errExited,
		},
		{
			name:  "stop",
			procs: []proc{
				{"b-sleep", sleep, []string{"30"}},
				{"b-sleep-2", sleep, []string{"30"}},
			},
			stop: true,
			runs: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			sup := supervisor{
				dir:      dir,
				mon:      tc.mon,
				freq:     100 * time.Millisecond,
				restarts: 2,
				delay:    10 * time.Millisecond,
			}

			stop := make(chan os.Signal, 1)
			if tc.stop {
				go func() {
					time.Sleep(500 * time.Millisecond)
					stop <- os.Interrupt
				}()
			}
			killed = killed[:0]
			err := sup.run(tc.procs, stop)
			switch {
			case tc.err != nil:
				if !errors.Is(err, tc.err) {
					t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.err)
				}
			case err != nil:
				t.Fatalf("could not run processes: %+v", err)
			}
			if len(killed) != len(tc.procs) {
				t.Fatalf("previous processes not killed: %q", killed)
			}

			for _, p := range tc.procs {
				raw, err := os.ReadFile(filepath.Join(dir, p.name+".log"))
				if err != nil {
					t.Fatalf("missing log file: %+v", err)
				}
				if got, want := bytes.Count(raw, []byte("### ")), tc.runs; got != want {
					t.Fatalf("invalid number of runs for %q: got=%d, want=%d", p.name, got, want)
				}
				if tc.mon {
					_, err = os.Stat(filepath.Join(dir, p.name+"-pmon.log"))
					if err != nil {
						t.Fatalf("missing pmon log file: %+v", err)
					}
				}
			}
		})
	}
}

func TestSuperviseMissingCommand(t *testing.T) {
	sup := supervisor{dir: t.TempDir()}
	err := sup.supervise(context.Background(), proc{
		name: "b-missing",
		path: filepath.Join(t.TempDir(), "not-there"),
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := err.Error(), `"b-missing" stopped after 1 runs`; !strings.Contains(got, want) {
		t.Fatalf("invalid error: got=%q, want=%q", got, want)
	}
}
