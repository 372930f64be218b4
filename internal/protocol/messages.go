// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package protocol

import "fmt"

func init() {
	Register(KindIntroduction, func(p []byte) (Message, error) { return decodeIntroduction(p) })
	Register(KindMessage, func(p []byte) (Message, error) { return decodeMessageMsg(p) })
	Register(KindError, func(p []byte) (Message, error) { return decodeError(p) })
	Register(KindSetBuild, func(p []byte) (Message, error) { return decodeSetBuild(p) })
	Register(KindAcknowledge, func(p []byte) (Message, error) { return decodeAcknowledge(p) })
	Register(KindFileContent, func(p []byte) (Message, error) { return decodeFileContent(p) })
	Register(KindExecuteBuild, func(p []byte) (Message, error) { return decodeExecuteBuild(p) })
	Register(KindBuildOutput, func(p []byte) (Message, error) { return decodeBuildOutput(p) })
	Register(KindBuildComplete, func(p []byte) (Message, error) { return decodeBuildComplete(p) })
}

const (
	userFieldWidth     = 64
	passwordFieldWidth = 64
	hostnameFieldWidth = 64
	platformFieldWidth = 8
	pathFieldWidth     = 256
)

// Introduction is sent once, first, by the client to announce the
// protocol version and authenticate.
type Introduction struct {
	Version  uint8
	User     string
	Password string
	Hostname string
	Platform string
}

func (Introduction) Kind() Kind { return KindIntroduction }

func (m Introduction) encode() []byte {
	const size = 2 + 1 + userFieldWidth + passwordFieldWidth + hostnameFieldWidth + platformFieldWidth
	buf := make([]byte, size)
	putBeUint16(buf[0:2], uint16(KindIntroduction))
	buf[2] = m.Version
	off := 3
	mustPutFixed(buf[off:off+userFieldWidth], m.User, userFieldWidth)
	off += userFieldWidth
	mustPutFixed(buf[off:off+passwordFieldWidth], m.Password, passwordFieldWidth)
	off += passwordFieldWidth
	mustPutFixed(buf[off:off+hostnameFieldWidth], m.Hostname, hostnameFieldWidth)
	off += hostnameFieldWidth
	mustPutFixed(buf[off:off+platformFieldWidth], m.Platform, platformFieldWidth)
	return buf
}

// EncodeIntroduction validates field widths before encoding, returning an
// error instead of panicking the way encode() (and so Encode) does when a
// field is too long.
func EncodeIntroduction(m Introduction) ([]byte, error) {
	if len(m.User) > userFieldWidth {
		return nil, fmt.Errorf("protocol: user %q exceeds %d bytes", m.User, userFieldWidth)
	}
	if len(m.Password) > passwordFieldWidth {
		return nil, fmt.Errorf("protocol: password exceeds %d bytes", passwordFieldWidth)
	}
	if len(m.Hostname) > hostnameFieldWidth {
		return nil, fmt.Errorf("protocol: hostname %q exceeds %d bytes", m.Hostname, hostnameFieldWidth)
	}
	if len(m.Platform) > platformFieldWidth {
		return nil, fmt.Errorf("protocol: platform %q exceeds %d bytes", m.Platform, platformFieldWidth)
	}
	return m.encode(), nil
}

func mustPutFixed(dst []byte, s string, width int) {
	if err := putFixedString(dst, s, width); err != nil {
		panic(err)
	}
}

func decodeIntroduction(data []byte) (Message, error) {
	const size = 2 + 1 + userFieldWidth + passwordFieldWidth + hostnameFieldWidth + platformFieldWidth
	if err := needLen(data, size, "Introduction"); err != nil {
		return nil, err
	}
	off := 3
	user := getFixedString(data[off : off+userFieldWidth])
	off += userFieldWidth
	password := getFixedString(data[off : off+passwordFieldWidth])
	off += passwordFieldWidth
	hostname := getFixedString(data[off : off+hostnameFieldWidth])
	off += hostnameFieldWidth
	platform := getFixedString(data[off : off+platformFieldWidth])
	return Introduction{
		Version:  data[2],
		User:     user,
		Password: password,
		Hostname: hostname,
		Platform: platform,
	}, nil
}

// TextMessage carries free-form human-readable text between peers (wire
// kind "Message"; named TextMessage here to avoid colliding with the
// Message interface).
type TextMessage struct {
	Text string
}

func (TextMessage) Kind() Kind { return KindMessage }

func (m TextMessage) encode() []byte {
	body := []byte(m.Text)
	buf := make([]byte, 2+4+len(body))
	putBeUint16(buf[0:2], uint16(KindMessage))
	putBeUint32(buf[2:6], uint32(len(body)))
	copy(buf[6:], body)
	return buf
}

func decodeMessageMsg(data []byte) (Message, error) {
	if err := needLen(data, 6, "Message"); err != nil {
		return nil, err
	}
	n := beUint32(data[2:6])
	if err := needLen(data, 6+int(n), "Message body"); err != nil {
		return nil, err
	}
	return TextMessage{Text: string(data[6 : 6+n])}, nil
}

// ErrorMsg reports a server-side or protocol-level error to the peer.
type ErrorMsg struct {
	Code uint32
	Text string
}

func (ErrorMsg) Kind() Kind { return KindError }

func (m ErrorMsg) encode() []byte {
	body := []byte(m.Text)
	buf := make([]byte, 2+4+4+len(body))
	putBeUint16(buf[0:2], uint16(KindError))
	putBeUint32(buf[2:6], m.Code)
	putBeUint32(buf[6:10], uint32(len(body)))
	copy(buf[10:], body)
	return buf
}

func decodeError(data []byte) (Message, error) {
	if err := needLen(data, 10, "Error"); err != nil {
		return nil, err
	}
	code := beUint32(data[2:6])
	n := beUint32(data[6:10])
	if err := needLen(data, 10+int(n), "Error body"); err != nil {
		return nil, err
	}
	return ErrorMsg{Code: code, Text: string(data[10 : 10+n])}, nil
}

// SetBuild announces the set of project roots taking part in a build,
// along with the build-id derived from them (see MakeBuildID).
type SetBuild struct {
	BuildID string
	Folders []string
}

func (SetBuild) Kind() Kind { return KindSetBuild }

func (m SetBuild) encode() []byte {
	parts := make([]string, 0, len(m.Folders)+1)
	parts = append(parts, m.BuildID)
	parts = append(parts, m.Folders...)
	body := []byte(joinNUL(parts))
	buf := make([]byte, 2+4+len(body))
	putBeUint16(buf[0:2], uint16(KindSetBuild))
	putBeUint32(buf[2:6], uint32(len(body)))
	copy(buf[6:], body)
	return buf
}

func decodeSetBuild(data []byte) (Message, error) {
	if err := needLen(data, 6, "SetBuild"); err != nil {
		return nil, err
	}
	n := beUint32(data[2:6])
	if err := needLen(data, 6+int(n), "SetBuild body"); err != nil {
		return nil, err
	}
	parts := splitNUL(string(data[6 : 6+n]))
	if len(parts) == 0 {
		return nil, fmt.Errorf("protocol: SetBuild payload missing build-id")
	}
	return SetBuild{BuildID: parts[0], Folders: parts[1:]}, nil
}

func joinNUL(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\x00"
		}
		out += p
	}
	return out
}

func splitNUL(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Acknowledge is sent by the server in response to a prior message,
// identifying that message's kind and whether it was accepted.
type Acknowledge struct {
	RefKind  Kind
	Positive bool
}

func (Acknowledge) Kind() Kind { return KindAcknowledge }

func (m Acknowledge) encode() []byte {
	buf := make([]byte, 2+2+1)
	putBeUint16(buf[0:2], uint16(KindAcknowledge))
	putBeUint16(buf[2:4], uint16(m.RefKind))
	if m.Positive {
		buf[4] = 1
	}
	return buf
}

func decodeAcknowledge(data []byte) (Message, error) {
	if err := needLen(data, 5, "Acknowledge"); err != nil {
		return nil, err
	}
	return Acknowledge{RefKind: Kind(beUint16(data[2:4])), Positive: data[4] != 0}, nil
}

// FileContent carries the full contents of one file, rooted at root with
// the given name relative to it. Content is opaque bytes; spec.md §9
// notes the original source's treatment of file data as UTF-8 text was a
// bug and must not be preserved.
type FileContent struct {
	Root         string
	RelativeName string
	Content      []byte
}

func (FileContent) Kind() Kind { return KindFileContent }

func (m FileContent) encode() []byte {
	buf := make([]byte, 2+pathFieldWidth+pathFieldWidth+4+len(m.Content))
	putBeUint16(buf[0:2], uint16(KindFileContent))
	off := 2
	mustPutFixed(buf[off:off+pathFieldWidth], m.Root, pathFieldWidth)
	off += pathFieldWidth
	mustPutFixed(buf[off:off+pathFieldWidth], m.RelativeName, pathFieldWidth)
	off += pathFieldWidth
	putBeUint32(buf[off:off+4], uint32(len(m.Content)))
	off += 4
	copy(buf[off:], m.Content)
	return buf
}

// EncodeFileContent validates the fixed-width path fields before
// encoding, per spec.md §9's guidance to reject rather than truncate.
func EncodeFileContent(m FileContent) ([]byte, error) {
	if len(m.Root) > pathFieldWidth {
		return nil, fmt.Errorf("protocol: root path %q exceeds %d bytes", m.Root, pathFieldWidth)
	}
	if len(m.RelativeName) > pathFieldWidth {
		return nil, fmt.Errorf("protocol: relative name %q exceeds %d bytes", m.RelativeName, pathFieldWidth)
	}
	return m.encode(), nil
}

func decodeFileContent(data []byte) (Message, error) {
	const fixed = 2 + pathFieldWidth + pathFieldWidth + 4
	if err := needLen(data, fixed, "FileContent"); err != nil {
		return nil, err
	}
	off := 2
	root := getFixedString(data[off : off+pathFieldWidth])
	off += pathFieldWidth
	name := getFixedString(data[off : off+pathFieldWidth])
	off += pathFieldWidth
	n := beUint32(data[off : off+4])
	off += 4
	if err := needLen(data, off+int(n), "FileContent body"); err != nil {
		return nil, err
	}
	content := make([]byte, n)
	copy(content, data[off:off+int(n)])
	return FileContent{Root: root, RelativeName: name, Content: content}, nil
}

// ExecuteBuild asks the server to run shellCommand in the first folder
// announced by the most recent SetBuild.
type ExecuteBuild struct {
	ShellCommand string
}

func (ExecuteBuild) Kind() Kind { return KindExecuteBuild }

func (m ExecuteBuild) encode() []byte {
	body := []byte(m.ShellCommand)
	buf := make([]byte, 2+4+len(body))
	putBeUint16(buf[0:2], uint16(KindExecuteBuild))
	putBeUint32(buf[2:6], uint32(len(body)))
	copy(buf[6:], body)
	return buf
}

func decodeExecuteBuild(data []byte) (Message, error) {
	if err := needLen(data, 6, "ExecuteBuild"); err != nil {
		return nil, err
	}
	n := beUint32(data[2:6])
	if err := needLen(data, 6+int(n), "ExecuteBuild body"); err != nil {
		return nil, err
	}
	return ExecuteBuild{ShellCommand: string(data[6 : 6+n])}, nil
}

// BuildOutput streams one chunk of stdout or stderr text from a running
// build back to the client.
type BuildOutput struct {
	IsStdout bool
	Text     string
}

func (BuildOutput) Kind() Kind { return KindBuildOutput }

func (m BuildOutput) encode() []byte {
	body := []byte(m.Text)
	buf := make([]byte, 2+1+4+len(body))
	putBeUint16(buf[0:2], uint16(KindBuildOutput))
	if m.IsStdout {
		buf[2] = 1
	}
	putBeUint32(buf[3:7], uint32(len(body)))
	copy(buf[7:], body)
	return buf
}

func decodeBuildOutput(data []byte) (Message, error) {
	if err := needLen(data, 7, "BuildOutput"); err != nil {
		return nil, err
	}
	n := beUint32(data[3:7])
	if err := needLen(data, 7+int(n), "BuildOutput body"); err != nil {
		return nil, err
	}
	return BuildOutput{IsStdout: data[2] != 0, Text: string(data[7 : 7+n])}, nil
}

// BuildComplete signals that the remote build process has exited, with
// its exit code.
type BuildComplete struct {
	ExitCode uint16
}

func (BuildComplete) Kind() Kind { return KindBuildComplete }

func (m BuildComplete) encode() []byte {
	buf := make([]byte, 2+2)
	putBeUint16(buf[0:2], uint16(KindBuildComplete))
	putBeUint16(buf[2:4], m.ExitCode)
	return buf
}

func decodeBuildComplete(data []byte) (Message, error) {
	if err := needLen(data, 4, "BuildComplete"); err != nil {
		return nil, err
	}
	return BuildComplete{ExitCode: beUint16(data[2:4])}, nil
}
