package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRun(t *testing.T) {
	t.Run("increments the status counter", func(t *testing.T) {
		before := testutil.ToFloat64(RunsTotal.WithLabelValues("ok"))
		ObserveRun("ok", 90*time.Second)
		after := testutil.ToFloat64(RunsTotal.WithLabelValues("ok"))
		assert.Equal(t, before+1, after)
	})

	t.Run("statuses are tracked independently", func(t *testing.T) {
		beforeOK := testutil.ToFloat64(RunsTotal.WithLabelValues("ok"))
		beforePartial := testutil.ToFloat64(RunsTotal.WithLabelValues("partial"))

		ObserveRun("partial", time.Minute)

		assert.Equal(t, beforeOK, testutil.ToFloat64(RunsTotal.WithLabelValues("ok")))
		assert.Equal(t, beforePartial+1, testutil.ToFloat64(RunsTotal.WithLabelValues("partial")))
	})

	t.Run("last run gauges track the latest outcome", func(t *testing.T) {
		ObserveRun("ok", time.Minute)
		assert.Equal(t, float64(1), testutil.ToFloat64(LastRunSuccess))
		assert.Greater(t, testutil.ToFloat64(LastRunTimestamp), float64(0))

		ObserveRun("failed", time.Minute)
		assert.Equal(t, float64(0), testutil.ToFloat64(LastRunSuccess))

		ObserveRun("partial", time.Minute)
		assert.Equal(t, float64(1), testutil.ToFloat64(LastRunSuccess))
	})
}

func TestStageCounters(t *testing.T) {
	before := testutil.ToFloat64(TicketsDiscovered)
	TicketsDiscovered.Add(150)
	assert.Equal(t, before+150, testutil.ToFloat64(TicketsDiscovered))

	beforeRejected := testutil.ToFloat64(RowsRejected)
	RowsRejected.Add(2)
	assert.Equal(t, beforeRejected+2, testutil.ToFloat64(RowsRejected))
}
