// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap exposes memory-mapped register windows as a flat address
// space.
package mmap // import "github.com/go-lpc/adrv903x/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"

	"golang.org/x/sys/unix"
)

var (
	errClosed   = errors.New("mmap: closed")
	ErrUnmapped = errors.New("mmap: address not mapped")
)

// Handle is a memory-mapped window.
type Handle struct {
	data []byte
}

// HandleFrom wraps data, as returned by unix.Mmap.
func HandleFrom(data []byte) *Handle {
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Close unmaps the window.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	return unix.Munmap(data)
}

// Len returns the length of the window.
func (h *Handle) Len() int {
	return len(h.data)
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Region maps Size bytes of chip address space, starting at Addr, to the
// physical address Phys.
type Region struct {
	Addr int64 `yaml:"addr"`
	Phys int64 `yaml:"phys"`
	Size int   `yaml:"size"`
}

type window struct {
	Region
	h *Handle

	mapped bool
}

// Map is a set of memory-mapped windows over the chip address space.
type Map struct {
	f    *os.File
	wins []window // sorted by address
}

// Open memory-maps the regions of the device file fname, usually /dev/mem.
func Open(fname string, regions ...Region) (*Map, error) {
	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}

	m := &Map{f: f}
	for _, r := range regions {
		data, err := unix.Mmap(
			int(f.Fd()), r.Phys, r.Size,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED,
		)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf(
				"mmap: could not map region 0x%x (phys=0x%x, size=%d): %w",
				r.Addr, r.Phys, r.Size, err,
			)
		}
		m.add(window{Region: r, h: HandleFrom(data), mapped: true})
	}

	return m, nil
}

// MapFrom returns a map of the given regions backed by plain memory.
func MapFrom(regions ...Region) *Map {
	m := new(Map)
	for _, r := range regions {
		m.add(window{Region: r, h: &Handle{data: make([]byte, r.Size)}})
	}
	return m
}

func (m *Map) add(w window) {
	m.wins = append(m.wins, w)
	sort.Slice(m.wins, func(i, j int) bool {
		return m.wins[i].Addr < m.wins[j].Addr
	})
}

func (m *Map) find(off int64, n int) (*window, error) {
	i := sort.Search(len(m.wins), func(i int) bool {
		w := m.wins[i]
		return w.Addr+int64(w.Size) > off
	})
	if i == len(m.wins) {
		return nil, fmt.Errorf("mmap: no window for 0x%x: %w", off, ErrUnmapped)
	}
	w := &m.wins[i]
	if off < w.Addr || off+int64(n) > w.Addr+int64(w.Size) {
		return nil, fmt.Errorf("mmap: no window for [0x%x, 0x%x): %w", off, off+int64(n), ErrUnmapped)
	}
	return w, nil
}

// ReadAt implements the io.ReaderAt interface.
func (m *Map) ReadAt(p []byte, off int64) (int, error) {
	w, err := m.find(off, len(p))
	if err != nil {
		return 0, err
	}
	return w.h.ReadAt(p, off-w.Addr)
}

// WriteAt implements the io.WriterAt interface.
func (m *Map) WriteAt(p []byte, off int64) (int, error) {
	w, err := m.find(off, len(p))
	if err != nil {
		return 0, err
	}
	return w.h.WriteAt(p, off-w.Addr)
}

// Close unmaps all the windows and closes the device file.
func (m *Map) Close() error {
	var err error
	for _, w := range m.wins {
		if !w.mapped {
			continue
		}
		if e := w.h.Close(); e != nil && err == nil {
			err = fmt.Errorf("mmap: could not unmap region 0x%x: %w", w.Addr, e)
		}
	}
	m.wins = nil

	if m.f != nil {
		if e := m.f.Close(); e != nil && err == nil {
			err = fmt.Errorf("mmap: could not close device file: %w", e)
		}
		m.f = nil
	}
	return err
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)

	_ io.ReaderAt = (*Map)(nil)
	_ io.WriterAt = (*Map)(nil)
	_ io.Closer   = (*Map)(nil)
)
