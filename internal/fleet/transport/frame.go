// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport implements the Command Transport: a length-prefixed
// framed request over a stream connection between the Controller and each
// Fetcher. Framing is a 4-byte big-endian length followed by that many
// bytes of JSON, with the reply being the literal string "OK".
package transport

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrMalformedFrame is returned when a frame's declared length is invalid
// or its body is truncated — a hard connection-level error per
// SPEC_FULL.md §4.3.
var ErrMalformedFrame = errors.New("transport: malformed frame")

// MaxFrameBytes bounds the declared body length to guard against a
// corrupt or hostile peer claiming an unreasonable size.
const MaxFrameBytes = 16 << 20 // 16 MiB

const okReply = "OK"

// Send dials addr, writes a single framed command, half-closes the write
// side, and waits for the literal "OK" reply. Each call uses a fresh
// connection, per SPEC_FULL.md §4.3.
func Send(addr string, cmd any, dialTimeout, readTimeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("transport: marshal command: %w", err)
	}
	if err := writeFrame(conn, body); err != nil {
		return fmt.Errorf("transport: write frame to %s: %w", addr, err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	if readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
	reply := make([]byte, len(okReply))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("transport: read reply from %s: %w", addr, err)
	}
	if string(reply) != okReply {
		return fmt.Errorf("transport: unexpected reply from %s: %q", addr, reply)
	}
	return nil
}

// writeFrame writes the 4-byte big-endian length prefix then the body.
func writeFrame(w io.Writer, body []byte) error {
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(len(body)))
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadCommand reads one framed command off conn and decodes it into cmd.
// A clean EOF before any bytes are read is reported via io.EOF so callers
// can treat it as a liveness probe rather than a hard error, per
// SPEC_FULL.md §4.3.
func ReadCommand(conn net.Conn, cmd any) error {
	var sizeBuf [4]byte
	n, err := io.ReadFull(conn, sizeBuf[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("%w: reading length: %v", ErrMalformedFrame, err)
	}

	size := binary.BigEndian.Uint32(sizeBuf[:])
	if size > MaxFrameBytes {
		return fmt.Errorf("%w: body size %d exceeds limit", ErrMalformedFrame, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrMalformedFrame, err)
	}
	if err := json.Unmarshal(body, cmd); err != nil {
		return fmt.Errorf("%w: decoding body: %v", ErrMalformedFrame, err)
	}
	return nil
}

// WriteOK writes the literal "OK" reply and half-closes the write side.
func WriteOK(conn net.Conn) error {
	if _, err := conn.Write([]byte(okReply)); err != nil {
		return err
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}
