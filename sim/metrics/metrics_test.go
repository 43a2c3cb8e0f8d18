package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

func TestEventCounter_FlushPublishesAndClears(t *testing.T) {
	// GIVEN a counter that saw two deaths and one start
	start := testutil.ToFloat64(PatientEventsTotal.WithLabelValues("death"))
	c := NewEventCounter()
	c.OnPatientEvent(patient.EventInfo{Kind: patient.KindDeath})
	c.OnPatientEvent(patient.EventInfo{Kind: patient.KindDeath})
	c.OnPatientEvent(patient.EventInfo{Kind: patient.KindStart})

	// WHEN flushed twice
	c.Flush()
	c.Flush()

	// THEN the shared counter grew once
	assert.Equal(t, start+2, testutil.ToFloat64(PatientEventsTotal.WithLabelValues("death")))
}

func TestWriteTextfile(t *testing.T) {
	ReplicationsTotal.WithLabelValues(StatusOK).Inc()
	path := filepath.Join(t.TempDir(), "sighos.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `sighos_replications_total{status="ok"}`))
}
