// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adrv903x

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	const root = "github.com/go-lpc/adrv903x"
	for _, tc := range []struct {
		name string
		bi   *debug.BuildInfo
		vers string
		sum  string
	}{
		{name: "nil"},
		{
			name: "main",
			bi: &debug.BuildInfo{
				Main: debug.Module{Path: root, Version: "v0.3.0", Sum: "h1:main"},
			},
			vers: "v0.3.0",
			sum:  "h1:main",
		},
		{
			name: "dep",
			bi: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/lab"},
				Deps: []*debug.Module{
					{Path: "golang.org/x/sys", Version: "v0.7.0"},
					{Path: root, Version: "v0.2.1", Sum: "h1:dep"},
				},
			},
			vers: "v0.2.1",
			sum:  "h1:dep",
		},
		{
			name: "replace-path",
			bi: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: root, Version: "v0.2.1", Replace: &debug.Module{Path: "../adrv903x"}},
				},
			},
			vers: "../adrv903x",
		},
		{
			name: "replace-version",
			bi: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: root, Version: "v0.2.1", Replace: &debug.Module{Path: "example.org/fork", Version: "v0.2.2", Sum: "h1:fork"}},
				},
			},
			vers: "example.org/fork v0.2.2",
			sum:  "h1:fork",
		},
		{
			name: "replace-dirty",
			bi: &debug.BuildInfo{
				Deps: []*debug.Module{
					{Path: root, Version: "v0.2.1", Replace: &debug.Module{}},
				},
			},
			vers: "v0.2.1*",
		},
		{
			name: "missing",
			bi:   &debug.BuildInfo{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vers, sum := versionOf(tc.bi)
			if vers != tc.vers || sum != tc.sum {
				t.Fatalf("invalid version: got=(%q, %q), want=(%q, %q)", vers, sum, tc.vers, tc.sum)
			}
		})
	}
}
