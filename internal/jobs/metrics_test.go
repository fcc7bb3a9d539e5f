package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("journal_post").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("journal_post").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("journal_post", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("journal_post", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("journal_post")))
}

func TestSetUnbalanced(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetUnbalanced("202301", 2)
	require.Equal(t, 2.0, testutil.ToFloat64(m.unbalanced.WithLabelValues("202301")))

	var nilMetrics *Metrics
	nilMetrics.SetUnbalanced("202301", 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
