/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package transport implements the reliable unicast messenger §1 and §4
of the design treat as a given: a typed request/reply call to a named
peer address, with a per-call timeout, over a simple length-prefixed
frame.

Wire format:

	+--------+--------+--------+--------+--------+--------+...
	| Magic  | Version|  Kind  | Flags  |    Length (4B)   | Payload...
	+--------+--------+--------+--------+--------+--------+...

	- Magic (1 byte): 0xC5
	- Version (1 byte): 0x01
	- Kind (1 byte): message kind, one of the RLog/BOrder RPC codes
	- Flags (1 byte): bit 0 set when Payload is Snappy-compressed
	- Length (4 bytes, big-endian): length of Payload on the wire
	- Payload: JSON-encoded request or reply struct

Blocked-peer enforcement is deliberately absent from this package -
see DESIGN.md's note on why partition simulation belongs to the
RLog/BOrder node layer, which alone knows the id -> address mapping a
"blocked peer" check is defined over.
*/
package transport

import (
	"encoding/binary"
	"errors"
	"io"

	"rlogborder/internal/compression"
)

// Kind identifies the RPC carried by a frame. RLog and BOrder each
// define their own Kind constants in their own packages; this package
// only moves opaque bytes.
type Kind byte

const (
	magicByte      byte = 0xC5
	protocolVer    byte = 0x01
	headerSize          = 8
	flagCompressed byte = 0x01

	// MaxFrameSize bounds a single frame at 16 MiB, generous for a
	// batch of log entries or a block's data field.
	MaxFrameSize = 16 * 1024 * 1024
)

// Errors returned by the frame codec.
var (
	ErrBadMagic   = errors.New("transport: bad magic byte")
	ErrBadVersion = errors.New("transport: unsupported protocol version")
	ErrTooLarge   = errors.New("transport: frame exceeds maximum size")
)

type header struct {
	kind    Kind
	flags   byte
	length  uint32
}

func writeHeader(w io.Writer, h header) error {
	buf := make([]byte, headerSize)
	buf[0] = magicByte
	buf[1] = protocolVer
	buf[2] = byte(h.kind)
	buf[3] = h.flags
	binary.BigEndian.PutUint32(buf[4:], h.length)
	_, err := w.Write(buf)
	return err
}

func readHeader(r io.Reader) (header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return header{}, err
	}
	if buf[0] != magicByte {
		return header{}, ErrBadMagic
	}
	if buf[1] != protocolVer {
		return header{}, ErrBadVersion
	}
	length := binary.BigEndian.Uint32(buf[4:])
	if length > MaxFrameSize {
		return header{}, ErrTooLarge
	}
	return header{kind: Kind(buf[2]), flags: buf[3], length: length}, nil
}

// writeFrame writes kind and payload to w, compressing payload with
// Snappy first when it's large enough to be worth it.
func writeFrame(w io.Writer, kind Kind, payload []byte) error {
	flags := byte(0)
	body := payload
	if len(payload) >= compression.MinCompressSize {
		compressed := compression.Compress(payload)
		if len(compressed) < len(payload) {
			body = compressed
			flags |= flagCompressed
		}
	}

	if err := writeHeader(w, header{kind: kind, flags: flags, length: uint32(len(body))}); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// readFrame reads one frame from r, transparently decompressing the
// payload when the compressed flag is set.
func readFrame(r io.Reader) (Kind, []byte, error) {
	h, err := readHeader(r)
	if err != nil {
		return 0, nil, err
	}

	body := make([]byte, h.length)
	if h.length > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, err
		}
	}

	if h.flags&flagCompressed != 0 {
		body, err = compression.Decompress(body)
		if err != nil {
			return 0, nil, err
		}
	}

	return h.kind, body, nil
}
