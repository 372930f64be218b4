// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package build orchestrates one login-through-build-completion session
// against a single connection: the Connect/Introduce/SetBuild/file-pump/
// ExecuteBuild/output-streaming flow the original remote_build.py's
// RemoteBuildCommand drove by hand from Sublime Text UI callbacks.
package build

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kballard/go-shellquote"

	"github.com/OdatNurd/remotebuild/internal/config"
	"github.com/OdatNurd/remotebuild/internal/connection"
	"github.com/OdatNurd/remotebuild/internal/fileset"
	"github.com/OdatNurd/remotebuild/internal/logger"
	"github.com/OdatNurd/remotebuild/internal/protocol"
)

var l = logger.L.NewFacility("build", "build session orchestration")

// Gatherer produces the project snapshot a Session sends up once login
// succeeds. Callers typically bind this to fileset.GatherProject (or
// fileset.GatherSingleFile as the empty-folder fallback) with their own
// configured folders already closed over.
type Gatherer func() (fileset.ProjectSnapshot, error)

// OutputFunc receives one chunk of streamed build output.
type OutputFunc func(isStdout bool, text string)

// DoneFunc is called exactly once, when the remote build process exits.
type DoneFunc func(exitCode uint16)

// ReadyFunc is called exactly once, when the last queued file has been
// sent and acknowledged. remote_build.py never itself acts on this
// moment ("We know the build is ready to execute when the last file is
// done" is only a comment there); callers that want to run a command
// use this to know when it's safe to call ExecuteBuild.
type ReadyFunc func()

type pendingFile struct {
	root string
	name string
}

// Session drives one client-side build interaction over an already
// dialed Connection, in the ack-gated style of remote_build.py:
// send_next_file only queues the next FileContentMessage once the
// previous SetBuild/FileContent has been acknowledged.
type Session struct {
	conn     *connection.Connection
	host     config.BuildHost
	gather   Gatherer
	onOutput OutputFunc
	onDone   DoneFunc
	onReady  ReadyFunc

	buildID      string
	projectRoots []string
	pending      []pendingFile
}

// NewSession wires a Session to an already-connecting Connection.
// gather is invoked once the server acknowledges the login Introduction
// (spec.md's supplemented "Acknowledge semantics for login"); onOutput
// and onDone stream the remote build's stdout/stderr and report its
// final exit code; onReady (optional, may be nil) fires once every
// gathered file has been sent and acknowledged.
func NewSession(conn *connection.Connection, host config.BuildHost, gather Gatherer, onOutput OutputFunc, onDone DoneFunc, onReady ReadyFunc) *Session {
	return &Session{
		conn:     conn,
		host:     host,
		gather:   gather,
		onOutput: onOutput,
		onDone:   onDone,
		onReady:  onReady,
	}
}

// HandleNotification is the connection.Callback a Session registers
// with Manager.Connect. It mirrors RemoteBuildCommand.result's dispatch
// on Notification, then dispatches further on message kind for MESSAGE
// notifications the way result() dispatches on isinstance(msg, ...).
func (s *Session) HandleNotification(c *connection.Connection, n connection.Notification) {
	switch n {
	case connection.Connecting:
		l.Infof("connecting to %s:%d", c.Host(), c.Port())

	case connection.Connected:
		l.Infoln("connected, sending introduction")
		s.conn.Send(protocol.Introduction{
			Version:  1,
			User:     s.host.Username,
			Password: s.host.Password,
			Hostname: hostname(),
			Platform: platformName(),
		})

	case connection.ConnectionFailed:
		l.Warnf("connection to %s:%d failed", c.Host(), c.Port())

	case connection.SendError:
		l.Warnln("send error")

	case connection.RecvError:
		l.Warnln("receive error")

	case connection.Closed:
		l.Infoln("connection closed")

	case connection.Message:
		s.drainMessages()
	}
}

func (s *Session) drainMessages() {
	for {
		msg, ok := s.conn.Receive()
		if !ok {
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.TextMessage:
		l.Infof("message: %s", m.Text)

	case protocol.ErrorMsg:
		l.Warnf("error [%d]: %s", m.Code, m.Text)

	case protocol.Acknowledge:
		s.handleAcknowledge(m)

	case protocol.FileContent:
		l.Infof("receive: %s/%s (%d bytes)", filepath.Base(m.Root), m.RelativeName, len(m.Content))

	case protocol.BuildOutput:
		if s.onOutput != nil {
			s.onOutput(m.IsStdout, m.Text)
		}

	case protocol.BuildComplete:
		l.Infof("build complete: exit code %d", m.ExitCode)
		if s.onDone != nil {
			s.onDone(m.ExitCode)
		}

	default:
		l.Verbosef("unhandled message: %+v", msg)
	}
}

// handleAcknowledge implements the two client-side state transitions
// spec.md's supplemented features call out: a positive Acknowledge for
// Introduction starts the build, and a positive Acknowledge for
// SetBuild or FileContent pumps the next queued file.
func (s *Session) handleAcknowledge(ack protocol.Acknowledge) {
	if !ack.Positive {
		l.Warnf("negative acknowledge for %v", ack.RefKind)
		return
	}

	switch ack.RefKind {
	case protocol.KindIntroduction:
		if err := s.StartBuild(); err != nil {
			l.Warnf("failed to start build: %v", err)
		}

	case protocol.KindSetBuild, protocol.KindFileContent:
		s.sendNextFile()
	}
}

// StartBuild gathers the configured project files and announces them to
// the server, the Go counterpart of RemoteBuildCommand.start_build.
func (s *Session) StartBuild() error {
	snapshot, err := s.gather()
	if err != nil {
		return fmt.Errorf("build: gathering project files: %w", err)
	}

	s.projectRoots = snapshot.SortedFolders()
	s.buildID = protocol.MakeBuildID(s.projectRoots)

	s.pending = s.pending[:0]
	for _, root := range s.projectRoots {
		for _, name := range snapshot[root].SortedNames() {
			s.pending = append(s.pending, pendingFile{root: root, name: name})
		}
	}

	s.conn.Send(protocol.SetBuild{BuildID: s.buildID, Folders: s.projectRoots})
	return nil
}

// sendNextFile pops the next queued file and sends its full contents,
// the ack-gated pump described in spec.md's supplemented features.
func (s *Session) sendNextFile() {
	if len(s.pending) == 0 {
		l.Infoln("all files transmitted")
		if s.onReady != nil {
			s.onReady()
		}
		return
	}

	next := s.pending[0]
	s.pending = s.pending[1:]

	content, err := os.ReadFile(filepath.Join(next.root, next.name))
	if err != nil {
		l.Warnf("failed to read %s/%s: %v", next.root, next.name, err)
		s.sendNextFile()
		return
	}

	fc := protocol.FileContent{Root: next.root, RelativeName: next.name, Content: content}
	if _, err := protocol.EncodeFileContent(fc); err != nil {
		l.Warnf("failed to encode %s/%s: %v", next.root, next.name, err)
		s.sendNextFile()
		return
	}
	s.conn.Send(fc)
}

// ExecuteBuild validates shellCommand the way a shell would, with a
// go-shellquote split, before handing it to the server unchanged.
func (s *Session) ExecuteBuild(shellCommand string) error {
	if _, err := shellquote.Split(shellCommand); err != nil {
		return fmt.Errorf("build: invalid shell command %q: %w", shellCommand, err)
	}
	s.conn.Send(protocol.ExecuteBuild{ShellCommand: shellCommand})
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
