// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"golang.org/x/exp/slices"
)

// server allows to control an ADRV903X device over TCP.
//
// Requests and replies are JSON objects:
//
//	{"name": "lo-set", "args": {"lo": 0, "frequency": 3500000000}}
//	{"msg": "ok", "data": ...}
type server struct {
	ctl net.Listener
	msg *log.Logger

	open func() (*Device, error)
	dev  *Device
}

// Serve serves the device created by open on addr.
// The device is opened on the first connection and kept open across
// connections, until a client sends the "close" command.
func Serve(addr string, open func() (*Device, error)) error {
	srv, err := newServer(addr, open)
	if err != nil {
		return fmt.Errorf("could not create adrv server: %w", err)
	}
	return srv.serve()
}

func newServer(addr string, open func() (*Device, error)) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not create adrv-ctl server on %q: %w", addr, err)
	}

	srv := &server{
		ctl:  ctl,
		msg:  log.New(os.Stdout, "adrv-srv: ", 0),
		open: open,
	}
	return srv, nil
}

func (srv *server) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("could not accept connection: %w", err)
		}

		err = srv.handle(conn)
		if err != nil {
			srv.msg.Printf("could not run ADRV device: %+v", err)
			continue
		}
	}
}

type request struct {
	Name string           `json:"name"`
	Args *json.RawMessage `json:"args"`
}

type reply struct {
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (srv *server) handle(conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	if srv.dev == nil {
		dev, err := srv.open()
		if err != nil {
			srv.reply(conn, nil, err)
			return fmt.Errorf("could not open ADRV device: %w", err)
		}
		srv.dev = dev
	}

	dec := json.NewDecoder(conn)
	for {
		var req request
		err := dec.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(conn, nil, err)
			return fmt.Errorf("could not decode command request: %w", err)
		}

		name := strings.ToLower(req.Name)
		switch name {
		case "close":
			err = srv.dev.Close()
			srv.dev = nil
			srv.reply(conn, nil, err)
			return err
		case "quit":
			srv.reply(conn, nil, nil)
			return nil
		}

		h, ok := handlers[name]
		if !ok {
			srv.msg.Printf("unknown command name=%q", req.Name)
			srv.reply(conn, nil, fmt.Errorf("unknown command %q", req.Name))
			continue
		}

		var args json.RawMessage
		if req.Args != nil {
			args = *req.Args
		}
		out, err := h(srv.dev, args)
		if err != nil {
			srv.msg.Printf("could not run %q: %+v", req.Name, err)
		}
		srv.reply(conn, out, err)
	}
}

func (srv *server) reply(conn net.Conn, v interface{}, err error) {
	rep := reply{Msg: "ok"}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}
	if err == nil && v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			rep.Msg = fmt.Sprintf("could not encode reply: %+v", err)
		}
		rep.Data = raw
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) close() {
	_ = srv.ctl.Close()
	if srv.dev != nil {
		_ = srv.dev.Close()
	}
}

type handler func(dev *Device, args json.RawMessage) (interface{}, error)

func decode(name string, args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return fmt.Errorf("missing %q arguments", name)
	}
	err := json.Unmarshal(args, v)
	if err != nil {
		return fmt.Errorf("could not decode %q arguments: %w", name, err)
	}
	return nil
}

// Command arguments and replies.
type (
	LoadArgs struct {
		Offset uint32 `json:"offset"`
		Data   []byte `json:"data"`
	}

	EnableArgs struct {
		ORxSelect Channel `json:"orx_sel"`
		ORxEnable Channel `json:"orx_en"`
		RxSelect  Channel `json:"rx_sel"`
		RxEnable  Channel `json:"rx_en"`
		TxSelect  Channel `json:"tx_sel"`
		TxEnable  Channel `json:"tx_en"`
	}

	EnableState struct {
		ORx Channel `json:"orx"`
		Rx  Channel `json:"rx"`
		Tx  Channel `json:"tx"`
	}

	PresetAttenArgs struct {
		Mapping   PresetMapping `json:"mapping"`
		AttenDB   uint8         `json:"atten"`
		Immediate bool          `json:"immediate"`
	}

	PresetNcoArgs struct {
		Mapping   PresetMapping `json:"mapping"`
		AdcKHz    int32         `json:"adc"`
		DpKHz     int32         `json:"dp"`
		Immediate bool          `json:"immediate"`
	}

	LoopFilterArgs struct {
		Lo Lo `json:"lo"`
		LoLoopFilter
	}

	TriggerArgs struct {
		Stream uint8   `json:"stream"`
		Tx     Channel `json:"tx,omitempty"`
		Rx     Channel `json:"rx,omitempty"`
	}
)

// Commands returns the sorted names of the commands understood by the server.
func Commands() []string {
	names := make([]string, 0, len(handlers)+2)
	for name := range handlers {
		names = append(names, name)
	}
	names = append(names, "close", "quit")
	slices.Sort(names)
	return names
}

var handlers = map[string]handler{
	"load": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v LoadArgs
		if err := decode("load", args, &v); err != nil {
			return nil, err
		}
		err := dev.StreamImageWrite(v.Offset, v.Data)
		return dev.LoadState(), err
	},
	"load-state": func(dev *Device, _ json.RawMessage) (interface{}, error) {
		return dev.LoadState(), nil
	},
	"enable": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v EnableArgs
		if err := decode("enable", args, &v); err != nil {
			return nil, err
		}
		return nil, dev.RxTxEnableSet(v.ORxSelect, v.ORxEnable, v.RxSelect, v.RxEnable, v.TxSelect, v.TxEnable)
	},
	"enable-get": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v struct {
			Effective bool `json:"effective"`
		}
		if len(args) > 0 {
			if err := decode("enable-get", args, &v); err != nil {
				return nil, err
			}
		}
		mode := ReadbackSPI
		if v.Effective {
			mode = ReadbackEffective
		}
		orx, rx, tx, err := dev.RxTxEnableGet(mode)
		return EnableState{ORx: orx, Rx: rx, Tx: tx}, err
	},
	"lo-set": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v LoConfig
		if err := decode("lo-set", args, &v); err != nil {
			return nil, err
		}
		return nil, dev.LoFrequencySet(v)
	},
	"lo-get": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v struct {
			Lo Lo `json:"lo"`
		}
		if err := decode("lo-get", args, &v); err != nil {
			return nil, err
		}
		freq, err := dev.LoFrequencyGet(v.Lo)
		return LoConfig{Lo: v.Lo, Frequency: freq}, err
	},
	"lo-filter-set": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v LoopFilterArgs
		if err := decode("lo-filter-set", args, &v); err != nil {
			return nil, err
		}
		return nil, dev.LoLoopFilterSet(v.Lo, v.LoLoopFilter)
	},
	"lo-filter-get": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v struct {
			Lo Lo `json:"lo"`
		}
		if err := decode("lo-filter-get", args, &v); err != nil {
			return nil, err
		}
		cfg, err := dev.LoLoopFilterGet(v.Lo)
		return LoopFilterArgs{Lo: v.Lo, LoLoopFilter: cfg}, err
	},
	"lo-freqs": func(dev *Device, _ json.RawMessage) (interface{}, error) {
		return dev.RxTxLoFreqGet()
	},
	"pll-status": func(dev *Device, _ json.RawMessage) (interface{}, error) {
		return dev.PllStatusGet()
	},
	"pll-mux": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v PllMux
		if err := decode("pll-mux", args, &v); err != nil {
			return nil, err
		}
		return nil, dev.CfgPllToChanCtrl(v)
	},
	"mapping-set": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v struct {
			Mapping uint8 `json:"mapping"`
		}
		if err := decode("mapping-set", args, &v); err != nil {
			return nil, err
		}
		return nil, dev.TxToOrxMappingSet(v.Mapping)
	},
	"mapping-get": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v struct {
			ORx Channel `json:"orx"`
		}
		if err := decode("mapping-get", args, &v); err != nil {
			return nil, err
		}
		return dev.TxToOrxMappingGet(v.ORx)
	},
	"mapping-config": func(dev *Device, _ json.RawMessage) (interface{}, error) {
		return dev.TxToOrxMappingConfigGet()
	},
	"atten-set": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v PresetAttenArgs
		if err := decode("atten-set", args, &v); err != nil {
			return nil, err
		}
		return nil, dev.TxToOrxPresetAttenSet(v.Mapping, v.AttenDB, v.Immediate)
	},
	"atten-get": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v struct {
			Value MapVal `json:"value"`
		}
		if err := decode("atten-get", args, &v); err != nil {
			return nil, err
		}
		return dev.TxToOrxPresetAttenGet(v.Value)
	},
	"nco-set": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v PresetNcoArgs
		if err := decode("nco-set", args, &v); err != nil {
			return nil, err
		}
		return nil, dev.TxToOrxPresetNcoSet(v.Mapping, v.AdcKHz, v.DpKHz, v.Immediate)
	},
	"nco-get": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v struct {
			Value MapVal `json:"value"`
		}
		if err := decode("nco-get", args, &v); err != nil {
			return nil, err
		}
		adc, dp, err := dev.TxToOrxPresetNcoGet(v.Value)
		return PresetNcoArgs{AdcKHz: adc, DpKHz: dp}, err
	},
	"trigger": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v TriggerArgs
		if err := decode("trigger", args, &v); err != nil {
			return nil, err
		}
		switch {
		case v.Tx != 0 && v.Rx != 0:
			return nil, fmt.Errorf("trigger: tx and rx channels are exclusive")
		case v.Tx != 0:
			return nil, dev.TxStreamTrigger(v.Tx, v.Stream)
		case v.Rx != 0:
			return nil, dev.RxStreamTrigger(v.Rx, v.Stream)
		}
		return nil, dev.StreamTrigger(v.Stream)
	},
	"stream-errors": func(dev *Device, _ json.RawMessage) (interface{}, error) {
		return dev.StreamProcErrorGet()
	},
	"stream-version": func(dev *Device, _ json.RawMessage) (interface{}, error) {
		return dev.StreamVersionGet()
	},
	"gpio-config": func(dev *Device, _ json.RawMessage) (interface{}, error) {
		return dev.StreamGpioConfigGet()
	},
	"gpio-config-set": func(dev *Device, args json.RawMessage) (interface{}, error) {
		var v StreamGpioInputs
		if err := decode("gpio-config-set", args, &v); err != nil {
			return nil, err
		}
		return nil, dev.StreamGpioConfigSet(v)
	},
}
