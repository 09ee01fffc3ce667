// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package radio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

// Client controls a remote device served with Serve.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the device server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("radio: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// Close ends the session with the server.
// The remote device stays open.
func (c *Client) Close() error {
	err := c.send("quit", nil, nil)
	if e := c.conn.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

// Do runs the named command with args and decodes its result into out,
// when out is not nil.
func (c *Client) Do(name string, args, out interface{}) error {
	return c.send(name, args, out)
}

func (c *Client) send(name string, args, out interface{}) error {
	req := request{Name: name}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("radio: could not encode %q arguments: %w", name, err)
		}
		msg := json.RawMessage(raw)
		req.Args = &msg
	}

	err := c.enc.Encode(req)
	if err != nil {
		return fmt.Errorf("radio: could not send %q request: %w", name, err)
	}

	var rep reply
	err = c.dec.Decode(&rep)
	if err != nil {
		return fmt.Errorf("radio: could not decode %q reply: %w", name, err)
	}
	if rep.Msg != "ok" {
		return fmt.Errorf("radio: %q failed: %s", name, rep.Msg)
	}

	if out == nil || len(rep.Data) == 0 {
		return nil
	}
	err = json.Unmarshal(rep.Data, out)
	if err != nil {
		return fmt.Errorf("radio: could not decode %q result: %w", name, err)
	}
	return nil
}

// StreamImageWrite writes a chunk of a stream image to the remote device.
func (c *Client) StreamImageWrite(byteOffset uint32, p []byte) (LoadState, error) {
	var st LoadState
	err := c.send("load", LoadArgs{Offset: byteOffset, Data: p}, &st)
	return st, err
}

// LoadStreamImage writes the stream image read from r to the remote
// device, in chunks of size bytes.
func (c *Client) LoadStreamImage(r io.Reader, size int) error {
	ir, err := NewImageReader(r, size)
	if err != nil {
		return err
	}

	var st LoadState
	for {
		off, p, err := ir.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		st, err = c.StreamImageWrite(off, p)
		if err != nil {
			return err
		}
	}

	if st.Stage != Armed {
		return fmt.Errorf("radio: remote stream image truncated (slice=%d): %w", st.Index, io.ErrUnexpectedEOF)
	}
	return nil
}
