// Copyright (C) 2024 The RemoteBuild Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package connection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// connMetrics groups the counters/gauges this package exposes, grounded
// on cmd/stcrashreceiver/metrics.go's promauto style. They are
// process-wide (registered once against the default registry, as the
// teacher does for its own metrics), so every Manager in a process
// shares the same series; a second Manager in the same process
// (multiple build hosts) adds to those same unlabelled series rather
// than registering a second family.
type connMetrics struct {
	connectionsOpened prometheus.Counter
	connectionsActive prometheus.Gauge
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter
	messagesByKind    *prometheus.CounterVec
}

var sharedConnMetrics = &connMetrics{
	connectionsOpened: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotebuild",
		Subsystem: "connection",
		Name:      "opened_total",
	}),
	connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "remotebuild",
		Subsystem: "connection",
		Name:      "active",
	}),
	bytesSent: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotebuild",
		Subsystem: "connection",
		Name:      "bytes_sent_total",
	}),
	bytesReceived: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotebuild",
		Subsystem: "connection",
		Name:      "bytes_received_total",
	}),
	messagesByKind: promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remotebuild",
		Subsystem: "connection",
		Name:      "messages_total",
	}, []string{"kind"}),
}

func newConnMetrics() *connMetrics {
	return sharedConnMetrics
}
