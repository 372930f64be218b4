// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import "fmt"

// MaxFrameLen bounds the payload length a Reassembler will accept before
// giving up on the stream as corrupt. Nothing in this protocol version
// sends a file anywhere near this large in one message, but an unbounded
// accumulator would let a corrupt or hostile length prefix force
// unbounded memory growth.
const MaxFrameLen = 64 << 20 // 64 MiB

// Frame wraps payload (as produced by Encode) with the four-byte
// big-endian length prefix spec.md §4.2 puts on the wire. It does not
// duplicate the length inside payload itself; encode() never writes an
// outer length, only Frame does.
func Frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	putBeUint32(out[0:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// Unframe splits the single, complete length-prefixed frame in data into
// its payload and any trailing bytes belonging to the next frame. It
// returns ok=false if data does not yet contain a complete frame.
func Unframe(data []byte) (payload []byte, rest []byte, ok bool, err error) {
	if len(data) < 4 {
		return nil, data, false, nil
	}
	n := beUint32(data[0:4])
	if n > MaxFrameLen {
		return nil, nil, false, fmt.Errorf("protocol: frame length %d exceeds maximum %d", n, MaxFrameLen)
	}
	if len(data) < 4+int(n) {
		return nil, data, false, nil
	}
	return data[4 : 4+n], data[4+n:], true, nil
}

// Reassembler accumulates bytes arriving from a non-blocking socket read
// and yields complete message frames as they become available. It is the
// stateful counterpart to the pure Frame/Unframe functions, used by
// internal/connection to turn partial reads into whole messages.
type Reassembler struct {
	buf []byte
}

// Feed appends newly-read bytes to the accumulator.
func (r *Reassembler) Feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// Next pops the next complete frame's payload off the front of the
// accumulator, if one is available. ok is false if more bytes are needed.
func (r *Reassembler) Next() (payload []byte, ok bool, err error) {
	payload, rest, ok, err := Unframe(r.buf)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	r.buf = rest
	return out, true, nil
}

// Pending reports how many bytes are currently buffered, waiting on more
// data to complete a frame.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}
