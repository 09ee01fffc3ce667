// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poll

import (
	"errors"
	"testing"
	"time"
)

func TestWait(t *testing.T) {
	t.Run("done", func(t *testing.T) {
		n := 0
		err := Budget{Checks: 10}.Wait(func() (bool, error) {
			n++
			return n == 3, nil
		})
		if err != nil {
			t.Fatalf("could not wait: %+v", err)
		}
		if n != 3 {
			t.Fatalf("invalid number of checks: got=%d, want=3", n)
		}
	})

	t.Run("checks", func(t *testing.T) {
		n := 0
		err := Budget{Checks: 5}.Wait(func() (bool, error) {
			n++
			return false, nil
		})
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrTimeout)
		}
		if n != 5 {
			t.Fatalf("invalid number of checks: got=%d, want=5", n)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		err := Budget{Timeout: 5 * time.Millisecond, Interval: time.Millisecond}.Wait(func() (bool, error) {
			return false, nil
		})
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrTimeout)
		}
	})

	t.Run("error", func(t *testing.T) {
		want := errors.New("boom")
		err := Budget{Checks: 5}.Wait(func() (bool, error) {
			return false, want
		})
		if !errors.Is(err, want) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, want)
		}
	})
}
