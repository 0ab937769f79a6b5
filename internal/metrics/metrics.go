// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package metrics wires storage operation counters and timers into a
// monkit.v2 registry, mirroring pkg/process's SetMetricHandler(*monkit.
// Registry) hook (pkg/process/exec_test.go's MockedService) so the
// same registry-injection pattern the teacher's Service interface uses
// carries over to this server's metrics surface.
package metrics

import (
	"context"

	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

// Scope is the monkit scope every syncstorage metric is registered
// under.
var Scope = monkit.ScopeNamed("syncstorage")

// Recorder exposes the handful of metrics the HTTP and storage layers
// emit: request timers per route and counters for quota/conflict
// outcomes.
type Recorder struct {
	registry *monkit.Registry
}

// NewRecorder binds Recorder to registry. A nil registry is valid and
// makes every method a no-op, so components can hold a Recorder before
// SetMetricHandler has run.
func NewRecorder(registry *monkit.Registry) *Recorder {
	return &Recorder{registry: registry}
}

// Task starts a monkit timer for the named operation; call the
// returned func with the operation's error on completion, e.g.:
//
//	stop := rec.Task(ctx, "put_bso")
//	defer func() { stop(&err) }()
func (r *Recorder) Task(ctx context.Context, name string) func(*error) {
	if r.registry == nil {
		return func(*error) {}
	}
	return Scope.TaskNamed(name)(&ctx)
}

// CountConflict increments the write-conflict counter (I-write
// conflict path, §5).
func (r *Recorder) CountConflict(collection string) {
	if r.registry == nil {
		return
	}
	Scope.Counter("write_conflict", monkit.NewSeriesTag("collection", collection)).Inc(1)
}

// CountQuotaRejected increments the quota-enforcement-rejected counter.
func (r *Recorder) CountQuotaRejected(collection string) {
	if r.registry == nil {
		return
	}
	Scope.Counter("quota_rejected", monkit.NewSeriesTag("collection", collection)).Inc(1)
}

// CountQuotaAtLimit increments the advisory at-limit counter, wired as
// the default quota.Policy.OnAtLimit handler.
func (r *Recorder) CountQuotaAtLimit(collection string, usedBytes int64) {
	if r.registry == nil {
		return
	}
	Scope.Counter("quota_at_limit", monkit.NewSeriesTag("collection", collection)).Inc(1)
	Scope.FloatVal("quota_used_bytes").Observe(float64(usedBytes))
}

// Registry exposes the underlying monkit.Registry, if bound, so
// SetMetricHandler-style wiring can attach an output sink (statsd,
// the Prometheus-compatible monkit http presentation, etc).
func (r *Recorder) Registry() *monkit.Registry {
	return r.registry
}
