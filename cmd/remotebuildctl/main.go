// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/thejerf/suture/v4"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/OdatNurd/remotebuild/internal/build"
	"github.com/OdatNurd/remotebuild/internal/config"
	"github.com/OdatNurd/remotebuild/internal/connection"
	"github.com/OdatNurd/remotebuild/internal/fileset"
	"github.com/OdatNurd/remotebuild/internal/logger"
)

const (
	exitSuccess = 0
	exitError   = 1
)

var l = logger.L.NewFacility("main", "CLI entry point")

// CLI is the root command tree, grounded on cmd/syncthing/cli's use of
// kong for flag and subcommand parsing.
type CLI struct {
	Conf string `help:"Path to the settings file." type:"path"`

	Hosts HostsCmd `cmd:"" help:"List the configured build hosts."`
	Build BuildCmd `cmd:"" default:"1" help:"Gather project files and run a build on a remote host."`
}

// HostsCmd implements the connection-selection UX spec.md's
// supplemented features describe: list configured hosts by name,
// masking any stored password.
type HostsCmd struct{}

func (c *HostsCmd) Run(settings *config.Settings) error {
	if len(settings.BuildHosts) == 0 {
		fmt.Println("no build hosts configured")
		return nil
	}
	for _, h := range settings.BuildHosts {
		if h.Password == "" {
			fmt.Printf("%s\trb://%s@%s:%d\n", h.Name, h.Username, h.Host, h.Port)
		} else {
			fmt.Printf("%s\trb://%s:%s@%s:%d\n", h.Name, h.Username, h.MaskedPassword(), h.Host, h.Port)
		}
	}
	return nil
}

// BuildCmd dials a configured host, authenticates, sends the project's
// files, and streams back build output.
type BuildCmd struct {
	HostName string   `name:"host" help:"Name of the configured build host to use; required when more than one is configured."`
	Folders  []string `arg:"" optional:"" help:"Folders to gather project files from; defaults to the current directory."`
	Command  string   `name:"exec" help:"Shell command to run remotely once the build files are uploaded."`
}

func (c *BuildCmd) Run(settings *config.Settings) error {
	host, err := c.selectHost(settings)
	if err != nil {
		return err
	}

	folders := c.Folders
	if len(folders) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		folders = []string{wd}
	}

	specs := make([]fileset.FolderSpec, len(folders))
	for i, f := range folders {
		specs[i] = fileset.FolderSpec{Path: f}
	}

	cache, err := fileset.NewHashCache(4096)
	if err != nil {
		return err
	}

	gather := func() (fileset.ProjectSnapshot, error) {
		return fileset.GatherProject(specs, "", settings.DefaultFileExcludes, settings.DefaultFolderExcludes, true, cache)
	}

	onOutput := func(isStdout bool, text string) {
		if isStdout {
			fmt.Print(text)
		} else {
			fmt.Fprint(os.Stderr, text)
		}
	}

	done := make(chan uint16, 1)
	onDone := func(exitCode uint16) { done <- exitCode }

	mgr := connection.NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := suture.New("remotebuildctl", suture.Spec{
		Log: func(line string) { l.Debugln(line) },
	})
	sup.Add(mgr)
	go sup.ServeBackground(ctx)

	var session *build.Session
	onReady := func() {
		if c.Command == "" {
			// Nothing to run remotely; the upload itself was the task.
			onDone(0)
			return
		}
		if err := session.ExecuteBuild(c.Command); err != nil {
			l.Warnf("%v", err)
			onDone(1)
		}
	}

	// Connect raises its first notification (Connecting) before it
	// returns, so session isn't assigned yet when it arrives. Buffer
	// whatever shows up before that and replay it once session exists,
	// rather than silently dropping it.
	var bufMu sync.Mutex
	var buffered []connection.Notification
	var bufferedConn *connection.Connection

	conn, err := mgr.Connect(host.Host, host.Port, func(conn *connection.Connection, n connection.Notification) {
		bufMu.Lock()
		s := session
		if s == nil {
			bufferedConn = conn
			buffered = append(buffered, n)
		}
		bufMu.Unlock()
		if s != nil {
			s.HandleNotification(conn, n)
		}
	})
	if err != nil {
		return err
	}

	bufMu.Lock()
	session = build.NewSession(conn, host, gather, onOutput, onDone, onReady)
	pending := buffered
	buffered = nil
	bufMu.Unlock()
	for _, n := range pending {
		session.HandleNotification(bufferedConn, n)
	}

	select {
	case code := <-done:
		if code != 0 {
			return fmt.Errorf("remote build exited with code %d", code)
		}
		return nil
	case <-time.After(10 * time.Minute):
		return fmt.Errorf("build: timed out waiting for the remote build to finish")
	}
}

func (c *BuildCmd) selectHost(settings *config.Settings) (config.BuildHost, error) {
	if c.HostName != "" {
		h, ok := settings.FindHost(c.HostName)
		if !ok {
			return config.BuildHost{}, fmt.Errorf("no build host named %q is configured", c.HostName)
		}
		return h, nil
	}
	if len(settings.BuildHosts) == 1 {
		return settings.BuildHosts[0], nil
	}
	return config.BuildHost{}, fmt.Errorf("more than one build host is configured; pass --host to disambiguate (see the hosts command)")
}

func main() {
	maxprocs.Set()

	confDir, err := config.DefaultDir()
	if err != nil {
		l.Warnf("failed to determine config directory: %v", err)
	}

	if os.Getenv("RBNORESTART") == "" {
		monitorMain(confDir)
		return
	}

	var cli CLI
	parser := kong.Parse(&cli, kong.Name("remotebuildctl"),
		kong.Description("Gather project files and run builds on a remote build host."))

	confPath := cli.Conf
	if confPath == "" {
		p, err := config.DefaultPath()
		parser.FatalIfErrorf(err)
		confPath = p
	}

	settings, err := config.Load(confPath)
	if err != nil {
		l.Warnf("failed to load %s: %v", confPath, err)
		settings = &config.Settings{}
	}

	if err := parser.Run(settings); err != nil {
		l.Warnf("%v", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}
