// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package timestamp_test

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
)

func TestHeaderFormatRoundTrip(t *testing.T) {
	ts := timestamp.Timestamp(1_234_560)
	require.Equal(t, "1234.56", ts.HeaderFormat())

	parsed, err := timestamp.ParseHeader(ts.HeaderFormat())
	require.NoError(t, err)
	require.Equal(t, ts, parsed)
}

func TestParseHeaderRejectsGarbage(t *testing.T) {
	_, err := timestamp.ParseHeader("not-a-number")
	require.Error(t, err)

	_, err = timestamp.ParseHeader("-1.00")
	require.Error(t, err)
}

func TestTruncate10ms(t *testing.T) {
	require.Equal(t, timestamp.Timestamp(1230), timestamp.Timestamp(1234).Truncate10ms())
	require.Equal(t, timestamp.Timestamp(1230), timestamp.Timestamp(1239).Truncate10ms())
}

func TestSystemClockTruncates(t *testing.T) {
	fake := clockwork.NewFakeClockAt(clockwork.NewFakeClock().Now())
	clock := timestamp.SystemClock{Clock: fake}
	now := clock.Now()
	require.Equal(t, now, now.Truncate10ms())
}

func TestParseOffsetShapes(t *testing.T) {
	off, err := timestamp.ParseOffset("42")
	require.NoError(t, err)
	require.Equal(t, timestamp.Offset("42"), off)

	off, err = timestamp.ParseOffset("1000:3")
	require.NoError(t, err)
	require.Equal(t, timestamp.Offset("1000:3"), off)

	_, err = timestamp.ParseOffset("abc")
	require.Error(t, err)
}

func TestMax(t *testing.T) {
	require.Equal(t, timestamp.Timestamp(10), timestamp.Max(timestamp.Timestamp(3), timestamp.Timestamp(10)))
}
