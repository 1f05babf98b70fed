package rmacsmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	rmacsmetrics "github.com/tiiuae/rmacs/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := rmacsmetrics.NewCollector(reg)

	if c.LedgerFrequencies == nil {
		t.Error("LedgerFrequencies is nil")
	}
	if c.LedgerAverageQuality == nil {
		t.Error("LedgerAverageQuality is nil")
	}
	if c.DedupSetSize == nil {
		t.Error("DedupSetSize is nil")
	}
	if c.ScansPerformed == nil {
		t.Error("ScansPerformed is nil")
	}
	if c.SwitchesAttempted == nil {
		t.Error("SwitchesAttempted is nil")
	}
	if c.MessagesDropped == nil {
		t.Error("MessagesDropped is nil")
	}

	// Registration must not panic and must be gatherable.
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestLedgerGauges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := rmacsmetrics.NewCollector(reg)

	c.SetLedgerFrequencies(3)
	if got := gaugeValue(t, c.LedgerFrequencies); got != 3 {
		t.Errorf("LedgerFrequencies = %v, want 3", got)
	}

	c.SetLedgerAverageQuality(5180, 4.5)
	if got := gaugeVecValue(t, c.LedgerAverageQuality, "5180"); got != 4.5 {
		t.Errorf("LedgerAverageQuality[5180] = %v, want 4.5", got)
	}

	c.SetDedupSetSize(42)
	if got := gaugeValue(t, c.DedupSetSize); got != 42 {
		t.Errorf("DedupSetSize = %v, want 42", got)
	}
}

func TestScanAndReportCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := rmacsmetrics.NewCollector(reg)

	c.IncScansPerformed(5180)
	c.IncScansPerformed(5180)
	c.IncScansPerformed(5200)

	if got := counterVecValue(t, c.ScansPerformed, "5180"); got != 2 {
		t.Errorf("ScansPerformed[5180] = %v, want 2", got)
	}
	if got := counterVecValue(t, c.ScansPerformed, "5200"); got != 1 {
		t.Errorf("ScansPerformed[5200] = %v, want 1", got)
	}

	c.IncQualityReportsSent()
	c.IncQualityReportsSent()
	if got := counterValue(t, c.QualityReportsSent); got != 2 {
		t.Errorf("QualityReportsSent = %v, want 2", got)
	}
}

func TestBCQICounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := rmacsmetrics.NewCollector(reg)

	c.IncBCQIAlertsSent()
	c.IncBCQIAlertsAccepted()
	c.IncBCQIAlertsAccepted()
	c.IncBCQIAlertsDebounced()

	if got := counterValue(t, c.BCQIAlertsSent); got != 1 {
		t.Errorf("BCQIAlertsSent = %v, want 1", got)
	}
	if got := counterValue(t, c.BCQIAlertsAccepted); got != 2 {
		t.Errorf("BCQIAlertsAccepted = %v, want 2", got)
	}
	if got := counterValue(t, c.BCQIAlertsDebounced); got != 1 {
		t.Errorf("BCQIAlertsDebounced = %v, want 1", got)
	}
}

func TestSwitchAndPFHCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := rmacsmetrics.NewCollector(reg)

	c.IncSwitchesAttempted(rmacsmetrics.SwitchResultSuccessful)
	c.IncSwitchesAttempted(rmacsmetrics.SwitchResultUnsuccessful)
	c.IncSwitchesAttempted(rmacsmetrics.SwitchResultSuccessful)

	if got := counterVecValue(t, c.SwitchesAttempted, rmacsmetrics.SwitchResultSuccessful); got != 2 {
		t.Errorf("SwitchesAttempted[successful] = %v, want 2", got)
	}
	if got := counterVecValue(t, c.SwitchesAttempted, rmacsmetrics.SwitchResultUnsuccessful); got != 1 {
		t.Errorf("SwitchesAttempted[unsuccessful] = %v, want 1", got)
	}

	c.IncPFHIterations()
	c.IncPFHIterations()
	c.IncPFHConvergences()

	if got := counterValue(t, c.PFHIterations); got != 2 {
		t.Errorf("PFHIterations = %v, want 2", got)
	}
	if got := counterValue(t, c.PFHConvergences); got != 1 {
		t.Errorf("PFHConvergences = %v, want 1", got)
	}
}

func TestTransportCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := rmacsmetrics.NewCollector(reg)

	c.IncOperatingFreqBroadcasts()
	if got := counterValue(t, c.OperatingFreqBroadcasts); got != 1 {
		t.Errorf("OperatingFreqBroadcasts = %v, want 1", got)
	}

	c.IncMessagesDropped("wlan0")
	c.IncMessagesDropped("wlan0")
	c.IncMessagesDropped("wlan1")

	if got := counterVecValue(t, c.MessagesDropped, "wlan0"); got != 2 {
		t.Errorf("MessagesDropped[wlan0] = %v, want 2", got)
	}
	if got := counterVecValue(t, c.MessagesDropped, "wlan1"); got != 1 {
		t.Errorf("MessagesDropped[wlan1] = %v, want 1", got)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func gaugeVecValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	g, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func counterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
