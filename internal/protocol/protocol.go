// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package protocol implements the wire format spoken between a remote
// build client and its build host: a registry of typed, length-framed
// messages. Every Message knows its own Kind and how to encode/decode
// itself; Decode dispatches on the two-byte kind prefix read from the
// front of a payload.
package protocol

import (
	"errors"
	"fmt"
)

// Kind identifies a message type on the wire. Kinds are disjoint and
// stable across versions of this package.
type Kind uint16

const (
	KindIntroduction  Kind = 0
	KindMessage       Kind = 1
	KindError         Kind = 2
	KindSetBuild      Kind = 3
	KindAcknowledge   Kind = 4
	KindFileContent   Kind = 5
	KindExecuteBuild  Kind = 6
	KindBuildOutput   Kind = 7
	KindBuildComplete Kind = 8
)

func (k Kind) String() string {
	switch k {
	case KindIntroduction:
		return "Introduction"
	case KindMessage:
		return "Message"
	case KindError:
		return "Error"
	case KindSetBuild:
		return "SetBuild"
	case KindAcknowledge:
		return "Acknowledge"
	case KindFileContent:
		return "FileContent"
	case KindExecuteBuild:
		return "ExecuteBuild"
	case KindBuildOutput:
		return "BuildOutput"
	case KindBuildComplete:
		return "BuildComplete"
	default:
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
}

// Message is implemented by every protocol message. Encode returns the
// payload bytes for this message, kind prefix included; it never includes
// the outer frame length (see Frame for that).
type Message interface {
	Kind() Kind
	encode() []byte
}

// Errors surfaced by the codec, per spec.md §7.
var (
	// ErrUnknownKind is returned by Decode when the kind prefix does not
	// match any registered message type.
	ErrUnknownKind = errors.New("protocol: unknown message kind")

	// ErrDuplicateRegistration is raised by Register (and, in turn, the
	// package init() calls below) if two message types claim the same
	// kind. It signals a programmer error, not a runtime condition.
	ErrDuplicateRegistration = errors.New("protocol: duplicate message kind registration")

	// ErrTruncated is returned by a decoder when the supplied payload is
	// shorter than the kind's fixed or declared length requires.
	ErrTruncated = errors.New("protocol: truncated message payload")
)

type decoder func(payload []byte) (Message, error)

var registry = make(map[Kind]decoder)

// Register adds a decoder for the given kind to the global registry. It
// is meant to be called from package init() only; a duplicate kind is a
// programming error and panics, matching the teacher's pattern of failing
// fast on registration conflicts discovered at process start rather than
// threading an error return through every init().
func Register(kind Kind, dec decoder) {
	if _, exists := registry[kind]; exists {
		panic(fmt.Errorf("%w: %v", ErrDuplicateRegistration, kind))
	}
	registry[kind] = dec
}

// Decode reads the two-byte kind prefix from data and dispatches to the
// registered decoder for that kind. data must be exactly one message
// payload, as produced by a prior Encode (the framing layer is
// responsible for carving payloads out of the byte stream).
func Decode(data []byte) (Message, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 bytes for kind, got %d", ErrTruncated, len(data))
	}
	kind := Kind(beUint16(data))
	dec, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint16(kind))
	}
	return dec(data)
}

// Encode returns the wire payload for m (kind prefix plus body), with no
// outer frame length. Pair with Frame to put it on the wire.
func Encode(m Message) []byte {
	return m.encode()
}
