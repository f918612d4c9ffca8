// SPDX-License-Identifier: MIT

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAggregationCoverage(t *testing.T) {
	RecordAggregation(10, 3, 1, 0, time.Second)
	assert.Equal(t, float64(1), testutil.ToFloat64(coverageComplete))
	assert.Equal(t, float64(10), testutil.ToFloat64(programmesCollected))
	assert.Equal(t, float64(3), testutil.ToFloat64(programmesDropped.WithLabelValues("duplicate")))

	RecordAggregation(4, 0, 0, 2, time.Second)
	assert.Equal(t, float64(0), testutil.ToFloat64(coverageComplete))
}

func TestObserveUpstreamRequest(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("timelines", "success"))
	ObserveUpstreamRequest("timelines", "success", 20*time.Millisecond)
	after := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("timelines", "success"))
	assert.Equal(t, before+1, after)
}

func TestRecordXMLTV(t *testing.T) {
	before := testutil.ToFloat64(xmltvWriteErrors)
	RecordXMLTV(0, errors.New("disk full"))
	assert.Equal(t, before+1, testutil.ToFloat64(xmltvWriteErrors))

	RecordXMLTV(42, nil)
	assert.Equal(t, float64(42), testutil.ToFloat64(xmltvProgrammesWritten))
}

func TestWriteTextfile(t *testing.T) {
	RecordChannels(7)
	path := filepath.Join(t.TempDir(), "plutoepg.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plutoepg_channels_total 7")
}
