// Package health answers the heartbeat() liveness probe a monitor
// polls a storage node for (SPEC_FULL §6.2/§6.6: the monitor service
// itself is out of scope, but the storage tier still answers the
// RPC). Shaped after the teacher's SysInfoStat
// (bench/soaktest/stats/sysinfo.go): a flat, JSON-tagged snapshot
// struct stamped with a daemon id and timestamp.
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package health

import "time"

// Beat is one node's liveness snapshot.
type Beat struct {
	DaemonID     string    `json:"daemonid"`
	Timestamp    time.Time `json:"timestamp"`
	InFlightJobs int       `json:"in_flight_jobs"`
	Uptime       float64   `json:"uptime_seconds"`
}

// Prober reports the counters a Beat needs; job.Coordinator's result
// cache and the process start time satisfy this without health
// importing job directly (avoids a dependency cycle).
type Prober interface {
	InFlightJobCount() int
}

// Monitor stamps heartbeats for one node.
type Monitor struct {
	daemonID string
	started  time.Time
	prober   Prober
}

// New builds a Monitor for daemonID, stamping started as the process
// boot time.
func New(daemonID string, started time.Time, prober Prober) *Monitor {
	return &Monitor{daemonID: daemonID, started: started, prober: prober}
}

// Heartbeat produces the current liveness snapshot. now is passed in
// rather than read from the clock internally so callers (and tests)
// control the timestamp.
func (m *Monitor) Heartbeat(now time.Time) Beat {
	return Beat{
		DaemonID:     m.daemonID,
		Timestamp:    now,
		InFlightJobs: m.prober.InFlightJobCount(),
		Uptime:       now.Sub(m.started).Seconds(),
	}
}
