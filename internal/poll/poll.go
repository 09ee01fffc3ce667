// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package poll implements bounded busy-waits on hardware conditions.
package poll // import "github.com/go-lpc/adrv903x/internal/poll"

import (
	"errors"
	"time"
)

// ErrTimeout is returned when a wait exhausts its budget.
var ErrTimeout = errors.New("timeout")

// Budget bounds a wait.
// A wait stops after Timeout has elapsed or after Checks evaluations of the
// condition, whichever comes first. A zero Timeout or zero Checks means no
// bound on that axis, but at least one of them must be set.
type Budget struct {
	Timeout  time.Duration
	Interval time.Duration
	Checks   int
}

// Default is the budget used when none is configured.
var Default = Budget{
	Timeout:  1 * time.Second,
	Interval: 10 * time.Microsecond,
}

// Wait evaluates done until it reports true, it returns an error, or the
// budget is exhausted.
func (b Budget) Wait(done func() (bool, error)) error {
	if b.Timeout <= 0 && b.Checks <= 0 {
		b = Default
	}

	var (
		beg = time.Now()
		n   = 0
	)
	for {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		n++
		if b.Checks > 0 && n >= b.Checks {
			return ErrTimeout
		}
		if b.Timeout > 0 && time.Since(beg) >= b.Timeout {
			return ErrTimeout
		}
		if b.Interval > 0 {
			time.Sleep(b.Interval)
		}
	}
}
