// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-lpc/adrv903x/radio/internal/regs"
)

func TestRxTxEnableSet(t *testing.T) {
	dev, bus, _ := newTestDevice()
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		var (
			old = [3]uint8{uint8(rnd.Intn(256)), uint8(rnd.Intn(4)), uint8(rnd.Intn(256))}
			sel = [3]Channel{Channel(rnd.Intn(256)), Channel(rnd.Intn(4)), Channel(rnd.Intn(256))}
			en  = [3]Channel{Channel(rnd.Intn(256)), Channel(rnd.Intn(4)), Channel(rnd.Intn(256))}
		)
		bus.set8(regs.RX_SPI_EN, old[0])
		bus.set8(regs.ORX_SPI_EN, old[1])
		bus.set8(regs.TX_SPI_EN, old[2])

		err := dev.RxTxEnableSet(
			sel[1]<<orxShift, en[1]<<orxShift,
			sel[0], en[0],
			sel[2]<<txShift, en[2]<<txShift,
		)
		if err != nil {
			t.Fatalf("could not set enables: %+v", err)
		}

		orx, rx, tx, err := dev.RxTxEnableGet(ReadbackSPI)
		if err != nil {
			t.Fatalf("could not get enables: %+v", err)
		}
		for j, v := range []struct {
			name string
			got  Channel
		}{
			{"rx", rx},
			{"orx", orx >> orxShift},
			{"tx", tx >> txShift},
		} {
			want := Channel(old[j])&^sel[j] | en[j]&sel[j]
			if v.got != want {
				t.Fatalf(
					"%s: invalid enables: got=0x%x, want=0x%x (old=0x%x, sel=0x%x, en=0x%x)",
					v.name, uint32(v.got), uint32(want), old[j], uint32(sel[j]), uint32(en[j]),
				)
			}
		}
	}
}

func TestRxTxEnableSetUntouched(t *testing.T) {
	dev, bus, _ := newTestDevice()
	err := dev.RxTxEnableSet(0, ORxAll, Rx1, Rx1|Rx2, 0, TxAll)
	if err != nil {
		t.Fatalf("could not set enables: %+v", err)
	}
	for _, addr := range []int64{regs.ORX_SPI_EN, regs.TX_SPI_EN} {
		if bus.wrote(addr) {
			t.Fatalf("register 0x%x written with empty select mask", addr)
		}
	}
	if got, want := bus.u8(regs.RX_SPI_EN), uint8(Rx1); got != want {
		t.Fatalf("invalid rx enables: got=0x%x, want=0x%x", got, want)
	}
}

func TestRxTxEnableSetErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		init Channel
		sel  [3]Channel
	}{
		{"rx-range", RxAll | ORxAll | TxAll, [3]Channel{0, Rx0 | ORx0, 0}},
		{"orx-range", RxAll | ORxAll | TxAll, [3]Channel{ORx0 | Rx7, 0, 0}},
		{"tx-range", RxAll | ORxAll | TxAll, [3]Channel{0, 0, Tx0 | 1<<20}},
		{"rx-uninitialized", RxAll &^ Rx4, [3]Channel{0, Rx4, 0}},
		{"tx-uninitialized", Tx0 | Tx1, [3]Channel{0, 0, Tx2}},
		{"orx-uninitialized", RxAll | TxAll, [3]Channel{ORx1, 0, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev, bus, _ := newTestDevice(WithInitializedChannels(tc.init))
			err := dev.RxTxEnableSet(tc.sel[0], tc.sel[0], tc.sel[1], tc.sel[1], tc.sel[2], tc.sel[2])
			if !errors.Is(err, ErrInvalidChannelMask) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalidChannelMask)
			}
			if len(bus.writes) != 0 {
				t.Fatalf("registers written on invalid mask: %d", len(bus.writes))
			}
		})
	}
}

func TestRxTxEnableGet(t *testing.T) {
	dev, bus, _ := newTestDevice()
	bus.set8(regs.RX_ON, 0x81)
	bus.set8(regs.ORX_ON, 0xfe)
	bus.set8(regs.TX_ON, 0x0f)
	bus.set8(regs.RX_SPI_EN, 0x01)

	orx, rx, tx, err := dev.RxTxEnableGet(ReadbackEffective)
	if err != nil {
		t.Fatalf("could not read enables: %+v", err)
	}
	if got, want := [3]Channel{orx, rx, tx}, [3]Channel{ORx1, Rx0 | Rx7, Tx0 | Tx1 | Tx2 | Tx3}; got != want {
		t.Fatalf("invalid effective enables: got=%v, want=%v", got, want)
	}

	_, rx, _, err = dev.RxTxEnableGet(ReadbackSPI)
	if err != nil {
		t.Fatalf("could not read enables: %+v", err)
	}
	if rx != Rx0 {
		t.Fatalf("invalid spi enables: got=%v, want=%v", rx, Rx0)
	}

	_, _, _, err = dev.RxTxEnableGet(Readback(3))
	if !errors.Is(err, ErrRange) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrRange)
	}

	bus.fail = errors.New("spi error")
	_, _, _, err = dev.RxTxEnableGet(ReadbackSPI)
	if !errors.Is(err, bus.fail) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, bus.fail)
	}
}

func TestChannelString(t *testing.T) {
	for _, tc := range []struct {
		ch   Channel
		want string
	}{
		{0, "none"},
		{Rx0 | Rx3, "rx0|rx3"},
		{ORx1 | Tx7, "orx1|tx7"},
		{TxChannel(2) | RxChannel(5), "rx5|tx2"},
		{Tx0 | 1<<24, "tx0|0x1000000"},
	} {
		if got := tc.ch.String(); got != tc.want {
			t.Fatalf("invalid string for 0x%x: got=%q, want=%q", uint32(tc.ch), got, tc.want)
		}
	}
}
