// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import (
	"bytes"
	"reflect"
	"testing"
)

// roundTrip encodes m, decodes the result, and returns the decoded value.
func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	encoded := Encode(m)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return decoded
}

func TestIntroductionRoundTrip(t *testing.T) {
	in := Introduction{Version: 1, User: "dev", Password: "s3cret", Hostname: "workstation", Platform: "linux"}
	out := roundTrip(t, in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestIntroductionWireSizeMatchesSpec(t *testing.T) {
	in := Introduction{Version: 1, User: "dev", Password: "pw", Hostname: "host", Platform: "linux"}
	encoded := Encode(in)
	// 2 (kind) + 1 (version) + 64*3 (user/password/hostname) + 8 (platform)
	want := 2 + 1 + 64*3 + 8
	if len(encoded) != want {
		t.Errorf("expected %d bytes, got %d", want, len(encoded))
	}
}

func TestEncodeIntroductionRejectsOverlongField(t *testing.T) {
	in := Introduction{User: string(make([]byte, 65))}
	if _, err := EncodeIntroduction(in); err == nil {
		t.Fatal("expected error for overlong user field")
	}
}

func TestTextMessageRoundTrip(t *testing.T) {
	in := TextMessage{Text: "build started"}
	out := roundTrip(t, in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestErrorMsgRoundTrip(t *testing.T) {
	in := ErrorMsg{Code: 42, Text: "no such folder"}
	out := roundTrip(t, in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestSetBuildRoundTrip(t *testing.T) {
	in := SetBuild{BuildID: "abc123", Folders: []string{"/home/dev/proj", "/home/dev/lib"}}
	out := roundTrip(t, in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestSetBuildRoundTripNoFolders(t *testing.T) {
	in := SetBuild{BuildID: "abc123"}
	out := roundTrip(t, in).(SetBuild)
	if out.BuildID != in.BuildID {
		t.Errorf("expected build id %q, got %q", in.BuildID, out.BuildID)
	}
	if len(out.Folders) != 0 {
		t.Errorf("expected no folders, got %v", out.Folders)
	}
}

func TestAcknowledgeRoundTrip(t *testing.T) {
	in := Acknowledge{RefKind: KindSetBuild, Positive: true}
	out := roundTrip(t, in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}

	in2 := Acknowledge{RefKind: KindIntroduction, Positive: false}
	out2 := roundTrip(t, in2)
	if !reflect.DeepEqual(in2, out2) {
		t.Errorf("round trip mismatch: got %+v want %+v", out2, in2)
	}
}

func TestFileContentRoundTrip(t *testing.T) {
	in := FileContent{
		Root:         "/home/dev/proj",
		RelativeName: "src/main.go",
		Content:      []byte{0x00, 0xff, 0x10, 0x20, 'h', 'i'},
	}
	out := roundTrip(t, in).(FileContent)
	if in.Root != out.Root || in.RelativeName != out.RelativeName {
		t.Errorf("path mismatch: got %+v want %+v", out, in)
	}
	if !bytes.Equal(in.Content, out.Content) {
		t.Errorf("content mismatch: got %v want %v", out.Content, in.Content)
	}
}

func TestFileContentPreservesNonUTF8Bytes(t *testing.T) {
	// spec.md §9: content is opaque bytes, not text; invalid UTF-8 must
	// survive a round trip unchanged, unlike the original source's bug.
	in := FileContent{Root: "r", RelativeName: "n", Content: []byte{0xff, 0xfe, 0x00, 0x80}}
	out := roundTrip(t, in).(FileContent)
	if !bytes.Equal(in.Content, out.Content) {
		t.Errorf("expected raw bytes preserved, got %v want %v", out.Content, in.Content)
	}
}

func TestEncodeFileContentRejectsOverlongPath(t *testing.T) {
	in := FileContent{Root: string(make([]byte, 257))}
	if _, err := EncodeFileContent(in); err == nil {
		t.Fatal("expected error for overlong root path")
	}
}

func TestExecuteBuildRoundTrip(t *testing.T) {
	in := ExecuteBuild{ShellCommand: "make -j4 all"}
	out := roundTrip(t, in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestBuildOutputRoundTrip(t *testing.T) {
	in := BuildOutput{IsStdout: true, Text: "compiling...\n"}
	out := roundTrip(t, in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}

	in2 := BuildOutput{IsStdout: false, Text: "warning: unused variable\n"}
	out2 := roundTrip(t, in2)
	if !reflect.DeepEqual(in2, out2) {
		t.Errorf("round trip mismatch: got %+v want %+v", out2, in2)
	}
}

func TestBuildCompleteRoundTrip(t *testing.T) {
	in := BuildComplete{ExitCode: 1}
	out := roundTrip(t, in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}
}

// TestFramedStreamOfMixedMessages reproduces spec.md §8's scenario S2: a
// sequence of distinct message kinds framed back to back on one stream
// must decode, in order, back to the original values.
func TestFramedStreamOfMixedMessages(t *testing.T) {
	msgs := []Message{
		Introduction{Version: 1, User: "dev", Hostname: "box", Platform: "linux"},
		SetBuild{BuildID: "deadbeef", Folders: []string{"/a", "/b"}},
		Acknowledge{RefKind: KindSetBuild, Positive: true},
		FileContent{Root: "/a", RelativeName: "f.txt", Content: []byte("contents")},
		ExecuteBuild{ShellCommand: "go build ./..."},
		BuildOutput{IsStdout: true, Text: "ok\n"},
		BuildComplete{ExitCode: 0},
	}

	var stream []byte
	for _, m := range msgs {
		stream = append(stream, Frame(Encode(m))...)
	}

	var r Reassembler
	r.Feed(stream)
	for i, want := range msgs {
		payload, ok, err := r.Next()
		if err != nil {
			t.Fatalf("message %d: unexpected error: %v", i, err)
		}
		if !ok {
			t.Fatalf("message %d: expected a complete frame", i)
		}
		got, err := Decode(payload)
		if err != nil {
			t.Fatalf("message %d: decode error: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("message %d mismatch: got %+v want %+v", i, got, want)
		}
	}
}
