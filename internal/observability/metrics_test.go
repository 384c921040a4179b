package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordParseFailureCountsByKind(t *testing.T) {
	EnsureRegistered()

	planBefore := testutil.ToFloat64(getMetrics().planParseFailTotal.WithLabelValues("plan"))
	routeBefore := testutil.ToFloat64(getMetrics().planParseFailTotal.WithLabelValues("route"))

	RecordParseFailure("plan")
	RecordParseFailure("route")
	RecordParseFailure("route")

	assert.Equal(t, planBefore+1, testutil.ToFloat64(getMetrics().planParseFailTotal.WithLabelValues("plan")))
	assert.Equal(t, routeBefore+2, testutil.ToFloat64(getMetrics().planParseFailTotal.WithLabelValues("route")))
}

func TestRecordEnqueueAndDropCounters(t *testing.T) {
	EnsureRegistered()

	queuedBefore := testutil.ToFloat64(getMetrics().enqueueTotal.WithLabelValues("queued"))
	droppedBefore := testutil.ToFloat64(getMetrics().droppedTotal.WithLabelValues("summarize"))

	RecordEnqueue("queued")
	RecordDropped("summarize", 3)

	assert.Equal(t, queuedBefore+1, testutil.ToFloat64(getMetrics().enqueueTotal.WithLabelValues("queued")))
	assert.Equal(t, droppedBefore+3, testutil.ToFloat64(getMetrics().droppedTotal.WithLabelValues("summarize")))
}
