package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestJobsTotal_IncrementsPerKindStatusLabelPair(t *testing.T) {
	JobsTotal.Reset()
	JobsTotal.WithLabelValues("file_analysis", "completed").Inc()
	JobsTotal.WithLabelValues("file_analysis", "completed").Inc()
	JobsTotal.WithLabelValues("file_analysis", "failed").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(JobsTotal.WithLabelValues("file_analysis", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(JobsTotal.WithLabelValues("file_analysis", "failed")))
}

func TestQueueDepth_ReportsLastSetValue(t *testing.T) {
	QueueDepth.Reset()
	QueueDepth.WithLabelValues("ingestion").Set(5)
	QueueDepth.WithLabelValues("ingestion").Set(3)

	assert.Equal(t, float64(3), testutil.ToFloat64(QueueDepth.WithLabelValues("ingestion")))
}

func TestMatchClassifications_CountsByClassification(t *testing.T) {
	MatchClassifications.Reset()
	MatchClassifications.WithLabelValues("auto_matched").Inc()
	MatchClassifications.WithLabelValues("potential_match").Inc()
	MatchClassifications.WithLabelValues("auto_matched").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(MatchClassifications.WithLabelValues("auto_matched")))
}
