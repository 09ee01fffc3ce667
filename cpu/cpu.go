// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements the command mailbox of the embedded ARM CPUs of
// an ADRV903X transceiver.
package cpu // import "github.com/go-lpc/adrv903x/cpu"

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/adrv903x/internal/bits"
	"github.com/go-lpc/adrv903x/internal/poll"
)

// ID identifies one of the embedded CPUs.
type ID uint8

const (
	CPU0 ID = iota
	CPU1

	NumCPUs = 2
)

func (id ID) String() string {
	switch id {
	case CPU0:
		return "cpu0"
	case CPU1:
		return "cpu1"
	}
	return fmt.Sprintf("cpu(%d)", uint8(id))
}

// Opcode is a mailbox command identifier.
type Opcode uint16

const (
	CmdSetLoFrequency        Opcode = 0x0021
	CmdGetLoFrequency        Opcode = 0x0022
	CmdSetChanToPlls         Opcode = 0x0023
	CmdSetLoopFilter         Opcode = 0x0024
	CmdGetLoopFilter         Opcode = 0x0025
	CmdGetRxTxLoFreq         Opcode = 0x0026
	CmdSetTxToOrxPresetAtten Opcode = 0x0041
	CmdSetTxToOrxPresetNco   Opcode = 0x0042
)

func (op Opcode) String() string {
	switch op {
	case CmdSetLoFrequency:
		return "SET_LO_FREQUENCY"
	case CmdGetLoFrequency:
		return "GET_LO_FREQUENCY"
	case CmdSetChanToPlls:
		return "SET_CHAN_TO_PLLS"
	case CmdSetLoopFilter:
		return "SET_LOOPFILTER"
	case CmdGetLoopFilter:
		return "GET_LOOPFILTER"
	case CmdGetRxTxLoFreq:
		return "GET_RXTXLOFREQ"
	case CmdSetTxToOrxPresetAtten:
		return "SET_TX_TO_ORX_PRESET_ATTEN"
	case CmdSetTxToOrxPresetNco:
		return "SET_TX_TO_ORX_PRESET_NCO"
	}
	return fmt.Sprintf("CMD(0x%04x)", uint16(op))
}

// Status is the transport-level status returned in a response header.
type Status uint32

const (
	StatusNoError        Status = 0
	StatusUnknownCommand Status = 1
	StatusBadPayload     Status = 2
	StatusBusy           Status = 3
	StatusFailed         Status = 4
)

func (st Status) String() string {
	switch st {
	case StatusNoError:
		return "no-error"
	case StatusUnknownCommand:
		return "unknown-command"
	case StatusBadPayload:
		return "bad-payload"
	case StatusBusy:
		return "busy"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", uint32(st))
}

var (
	ErrTimeout       = poll.ErrTimeout
	ErrException     = errors.New("cpu: exception raised")
	ErrTransactionID = errors.New("cpu: unexpected transaction id")
	ErrPayloadSize   = errors.New("cpu: payload too large")
	ErrInvalidCPU    = errors.New("cpu: invalid cpu")
)

// Error is returned when the CPU answers a command with a non-zero status.
type Error struct {
	CPU    ID
	Cmd    Opcode
	Status Status
}

func (e *Error) Error() string {
	return fmt.Sprintf("cpu: %v command %v failed: %v", e.CPU, e.Cmd, e.Status)
}

// mailbox layout, relative to the per-CPU base address.
const (
	mboxStatus    = 0x000 // bit0: busy, bit1: exception
	mboxDoorbell  = 0x001
	mboxCmdStatus = 0x002 // bit0: pending
	mboxReq       = 0x100
	mboxResp      = 0x200
	mboxSize      = 0x100

	statusBusy      = 1 << 0
	statusException = 1 << 1
	cmdPending      = 1 << 0

	reqHdrSize  = 4 // cmd u16 + tid u16
	respHdrSize = 8 // cmd u16 + tid u16 + status u32

	// MaxPayload is the largest request or response payload.
	MaxPayload = mboxSize - respHdrSize
)

var bases = [NumCPUs]int64{
	CPU0: 0x46a10000,
	CPU1: 0x46a20000,
}

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

type config struct {
	ready poll.Budget // mailbox free
	reply poll.Budget // command completion
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithTimeout bounds the wait for the mailbox to become free and the wait
// for a command to complete.
func WithTimeout(ready, reply time.Duration) Option {
	return func(mb *Mailbox) {
		mb.cfg.ready.Timeout = ready
		mb.cfg.reply.Timeout = reply
	}
}

// WithInterval sets the delay between two mailbox status checks.
func WithInterval(dt time.Duration) Option {
	return func(mb *Mailbox) {
		mb.cfg.ready.Interval = dt
		mb.cfg.reply.Interval = dt
	}
}

// WithLogger sets the logger used to trace commands.
func WithLogger(msg *log.Logger) Option {
	return func(mb *Mailbox) {
		mb.msg = msg
	}
}

// Mailbox exchanges commands with the embedded CPUs through their
// memory-mapped mailboxes.
type Mailbox struct {
	rw  rwer
	msg *log.Logger
	cfg config

	tid [NumCPUs]uint16
	buf [mboxSize]byte
}

// New returns a mailbox driving the CPUs through rw.
func New(rw rwer, opts ...Option) *Mailbox {
	mb := &Mailbox{
		rw:  rw,
		msg: log.New(os.Stdout, "cpu: ", 0),
		cfg: config{
			ready: poll.Budget{Timeout: 100 * time.Millisecond, Interval: 10 * time.Microsecond},
			reply: poll.Budget{Timeout: 1 * time.Second, Interval: 10 * time.Microsecond},
		},
	}
	for _, opt := range opts {
		opt(mb)
	}
	return mb
}

// Send sends command cmd with payload req to the CPU id and waits for its
// response. The response payload is copied into resp.
func (mb *Mailbox) Send(id ID, cmd Opcode, req, resp []byte) error {
	if id >= NumCPUs {
		return fmt.Errorf("cpu: could not send %v to %v: %w", cmd, id, ErrInvalidCPU)
	}
	if len(req) > MaxPayload || len(resp) > MaxPayload {
		return fmt.Errorf(
			"cpu: could not send %v (req=%d, resp=%d): %w",
			cmd, len(req), len(resp), ErrPayloadSize,
		)
	}

	base := bases[id]
	err := mb.cfg.ready.Wait(func() (bool, error) {
		v, err := mb.readU8(base + mboxStatus)
		if err != nil {
			return false, err
		}
		if v&statusException != 0 {
			mb.msg.Printf("%v raised an exception (status=0x%02x)", id, v)
			return false, ErrException
		}
		return v&statusBusy == 0, nil
	})
	if err != nil {
		return fmt.Errorf("cpu: %v mailbox not ready for %v: %w", id, cmd, err)
	}

	mb.tid[id]++
	tid := mb.tid[id]

	n := reqHdrSize + len(req)
	bits.PutU16(mb.buf[:], 0, uint16(cmd))
	bits.PutU16(mb.buf[:], 2, tid)
	copy(mb.buf[reqHdrSize:], req)
	_, err = mb.rw.WriteAt(mb.buf[:n], base+mboxReq)
	if err != nil {
		return fmt.Errorf("cpu: could not write %v request to %v: %w", cmd, id, err)
	}

	err = mb.writeU8(base+mboxDoorbell, uint8(cmd))
	if err != nil {
		return fmt.Errorf("cpu: could not ring %v doorbell: %w", id, err)
	}

	err = mb.cfg.reply.Wait(func() (bool, error) {
		v, err := mb.readU8(base + mboxCmdStatus)
		if err != nil {
			return false, err
		}
		return v&cmdPending == 0, nil
	})
	if err != nil {
		return fmt.Errorf("cpu: no %v response from %v (tid=%d): %w", cmd, id, tid, err)
	}

	n = respHdrSize + len(resp)
	_, err = mb.rw.ReadAt(mb.buf[:n], base+mboxResp)
	if err != nil {
		return fmt.Errorf("cpu: could not read %v response from %v: %w", cmd, id, err)
	}

	if got := bits.U16(mb.buf[:], 2); got != tid {
		return fmt.Errorf(
			"cpu: %v response from %v (got=%d, want=%d): %w",
			cmd, id, got, tid, ErrTransactionID,
		)
	}

	if st := Status(bits.U32(mb.buf[:], 4)); st != StatusNoError {
		return &Error{CPU: id, Cmd: cmd, Status: st}
	}
	copy(resp, mb.buf[respHdrSize:n])

	return nil
}

func (mb *Mailbox) readU8(addr int64) (uint8, error) {
	var p [1]byte
	_, err := mb.rw.ReadAt(p[:], addr)
	if err != nil {
		return 0, fmt.Errorf("could not read register 0x%x: %w", addr, err)
	}
	return p[0], nil
}

func (mb *Mailbox) writeU8(addr int64, v uint8) error {
	p := [1]byte{v}
	_, err := mb.rw.WriteAt(p[:], addr)
	if err != nil {
		return fmt.Errorf("could not write register 0x%x: %w", addr, err)
	}
	return nil
}
