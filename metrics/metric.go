//
//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2023 THL A29 Limited, a Tencent company.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package metrics provides the DCB core's runtime monitoring data: the
// poller's epoll efficiency counters plus the DCB lifecycle counters
// (allocations, closes, final frees, buffered writes, zombie queue depth,
// reap completions). ShowMetrics dumps all of them to the log; Collector
// exports only the DCB lifecycle counters listed in exportedNames (not
// the epoll counters, TaskAssigned or buffered writes) as Prometheus
// gauges/counters.
package metrics

import (
	"time"

	"go.uber.org/atomic"

	"github.com/skysql-gw/dcbcore/log"
)

// All metrics definitions.
const (
	// The following constants are Epoll metrics.

	EpollWait = iota
	EpollNoWait
	EpollEvents
	TaskAssigned

	// The following constants are DCB core metrics.

	DCBAllocs
	DCBCloses
	DCBFinalFrees
	DCBZombieDepth
	DCBReapCompletions
	TCPWriteNotify

	// Keep it last.

	Max
)

var (
	metrics [Max]atomic.Uint64
)

// Add metrics counter.
func Add(name int, delta uint64) {
	if name >= Max {
		return
	}
	metrics[name].Add(delta)
}

// Set overwrites a metric with an absolute value, for gauges like
// DCBZombieDepth where the interesting number is a current level rather
// than a running total.
func Set(name int, value uint64) {
	if name >= Max {
		return
	}
	metrics[name].Store(value)
}

// Get one metric counter.
func Get(name int) uint64 {
	if name >= Max {
		return 0
	}
	return metrics[name].Load()
}

// GetAll get all metrics.
func GetAll() [Max]uint64 {
	var m [Max]uint64
	for i := range metrics {
		m[i] = metrics[i].Load()
	}
	return m
}

// ShowMetricsOfPeriod shows metric info of duration d from now on.
// It will block d duration, and then prints metrics info.
func ShowMetricsOfPeriod(d time.Duration) {
	old := GetAll()
	<-time.After(d)
	new := GetAll()
	var m [Max]uint64
	for i := range metrics {
		m[i] = new[i] - old[i]
	}
	showAll(m)
}

// ShowMetrics shows metric info in console.
func ShowMetrics() {
	m := GetAll()
	showAll(m)
}

func showAll(m [Max]uint64) {
	log.Debug("######### dcbcore metrics (", time.Now().Format("2006-01-02 15:04:05"), ") ###########")
	showEpollMetrics(m)
	showDCBMetrics(m)
	log.Debugf("%-59s: %d", "# number of task assigned (dispatchRead)", m[TaskAssigned])
}

func showDCBMetrics(m [Max]uint64) {
	log.Debugf("%-59s: %d", "# DCB - number of allocations", m[DCBAllocs])
	log.Debugf("%-59s: %d", "# DCB - number of closes", m[DCBCloses])
	log.Debugf("%-59s: %d", "# DCB - number of final frees", m[DCBFinalFrees])
	log.Debugf("%-59s: %d", "# DCB - current zombie list depth", m[DCBZombieDepth])
	log.Debugf("%-59s: %d", "# DCB - number of reap completions", m[DCBReapCompletions])
	log.Debugf("%-59s: %d", "# DCB - number of writes buffered on a non-empty queue", m[TCPWriteNotify])
}

func showEpollMetrics(m [Max]uint64) {
	log.Debugf("%-59s: %d", "# EPOLL - number of epoll_wait returns (tag:b)", m[EpollWait])
	log.Debugf("%-59s: %d", "# EPOLL - number of epoll_wait called with msc=0 (tag:a)", m[EpollNoWait])
	log.Debugf("%-59s: %d", "# EPOLL - number of total events", m[EpollEvents])
	if (m[EpollWait]) > 0 {
		log.Debugf("%-59s: %.2f%%", "# EPOLL - a/b * 100%", float32(m[EpollNoWait])*100/float32(m[EpollWait]))
		log.Debugf("%-59s: %.2f", "# EPOLL - average events number per epoll_wait",
			float32(m[EpollEvents])/float32(m[EpollWait]))
	}
}
