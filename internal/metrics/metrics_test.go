package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := pipelineRunsTotal
	Init()

	if pipelineRunsTotal == nil || pipelineRecordsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
	if first != pipelineRunsTotal {
		t.Fatal("Init() replaced collectors on second call")
	}
}

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(pipelineCounter(t, "fetch", "success"))
	ObserveRun("fetch", "success", 120*time.Millisecond)
	after := testutil.ToFloat64(pipelineCounter(t, "fetch", "success"))
	if after-before != 1 {
		t.Errorf("expected run counter to increase by 1, got %f", after-before)
	}
	if val := testutil.CollectAndCount(pipelineRunDurationSeconds); val <= 0 {
		t.Errorf("expected run duration to be observed, got %d", val)
	}
}

func TestAddRecordsIgnoresNonPositive(t *testing.T) {
	Init()
	before := testutil.ToFloat64(pipelineRecordsTotal.WithLabelValues("load", "skipped"))
	AddRecords("load", "skipped", 0)
	AddRecords("load", "skipped", -3)
	AddRecords("load", "skipped", 2)
	after := testutil.ToFloat64(pipelineRecordsTotal.WithLabelValues("load", "skipped"))
	if after-before != 2 {
		t.Errorf("expected skipped counter to increase by 2, got %f", after-before)
	}
}

func TestSetArtifactBytesAndNotifications(t *testing.T) {
	SetArtifactBytes(512)
	if val := testutil.ToFloat64(pipelineArtifactBytes); val != 512 {
		t.Errorf("expected artifact bytes 512, got %f", val)
	}

	before := testutil.ToFloat64(pipelineNotificationsTotal.WithLabelValues("failed"))
	ObserveNotification("failed")
	if val := testutil.ToFloat64(pipelineNotificationsTotal.WithLabelValues("failed")); val-before != 1 {
		t.Errorf("expected notification counter to increase by 1, got %f", val-before)
	}
}

func pipelineCounter(t *testing.T, stage, outcome string) prometheus.Counter {
	t.Helper()
	Init()
	return pipelineRunsTotal.WithLabelValues(stage, outcome)
}
