// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package model

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsync",
		Subsystem: "model",
		Name:      "sessions_total",
		Help:      "Number of finished sync sessions, per scope and terminal state.",
	}, []string{"scope", "state"})

	metricDownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsync",
		Subsystem: "model",
		Name:      "downloads_total",
		Help:      "Number of file download attempts, per scope and result.",
	}, []string{"scope", "result"})

	metricDownloadedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsync",
		Subsystem: "model",
		Name:      "downloaded_bytes_total",
		Help:      "Number of content bytes committed to the sandbox root, per scope.",
	}, []string{"scope"})

	metricVerifyMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsync",
		Subsystem: "model",
		Name:      "verify_mismatches_total",
		Help:      "Number of local files that failed an integrity re-check and were re-fetched.",
	}, []string{"scope"})

	metricDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsync",
		Subsystem: "model",
		Name:      "deletes_total",
		Help:      "Number of local paths deleted by sync sessions, per scope.",
	}, []string{"scope"})

	metricPathEscapes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsync",
		Subsystem: "model",
		Name:      "path_escapes_total",
		Help:      "Number of manifest entries rejected for resolving outside the sandbox root.",
	}, []string{"scope"})
)

const (
	resultOK     = "ok"
	resultFailed = "failed"
)
