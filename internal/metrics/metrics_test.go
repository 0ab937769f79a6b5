// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/mozilla-services/syncstorage-go/internal/metrics"
)

func TestRecorderNilRegistryIsNoOp(t *testing.T) {
	rec := metrics.NewRecorder(nil)
	require.Nil(t, rec.Registry())
	rec.CountConflict("bookmarks")
	rec.CountQuotaRejected("bookmarks")
	rec.CountQuotaAtLimit("bookmarks", 512)
}

func TestTaskRecordsCompletion(t *testing.T) {
	rec := metrics.NewRecorder(monkit.Default)
	ctx := context.Background()
	var err error
	stop := rec.Task(ctx, "put_bso")
	stop(&err)
}
