package rmacsmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "rmacs"
	subsystem = "control"
)

// Label names for RMACS metrics.
const (
	labelFreq      = "freq"
	labelInterface = "interface"
	labelResult    = "result"
)

// -------------------------------------------------------------------------
// Collector — Prometheus RMACS Metrics
// -------------------------------------------------------------------------

// Collector holds all RMACS Prometheus metrics.
//
//   - Ledger gauges expose the channel-quality ledger's shape for dashboards.
//   - Scan/report/switch counters track control-plane activity (scans per
//     frequency, switches per outcome).
//   - BCQI and dedup counters surface interference and duplicate-suppression
//     behavior for alerting.
type Collector struct {
	// LedgerFrequencies tracks the number of distinct frequencies currently
	// tracked in the quality ledger.
	LedgerFrequencies prometheus.Gauge

	// LedgerAverageQuality exposes the current average_quality per
	// frequency. Absent when the value is ⊥.
	LedgerAverageQuality *prometheus.GaugeVec

	// DedupSetSize tracks the number of message_ids currently held in the
	// processed-ID set.
	DedupSetSize prometheus.Gauge

	// ScansPerformed counts off-channel and operating-channel scans per
	// frequency.
	ScansPerformed *prometheus.CounterVec

	// QualityReportsSent counts ChannelQualityReport messages emitted.
	QualityReportsSent prometheus.Counter

	// BCQIAlertsSent counts BadChannelQualityIndex alerts emitted by the
	// client FSM.
	BCQIAlertsSent prometheus.Counter

	// BCQIAlertsAccepted counts BCQI alerts the server accepted past its
	// debounce window.
	BCQIAlertsAccepted prometheus.Counter

	// BCQIAlertsDebounced counts BCQI alerts the server dropped because
	// they arrived within bcqi_threshold_time of the last accepted one.
	BCQIAlertsDebounced prometheus.Counter

	// SwitchesAttempted counts client and server-initiated channel
	// switch commands, labeled by outcome (successful/unsuccessful/
	// not_required).
	SwitchesAttempted *prometheus.CounterVec

	// PFHIterations counts partial-frequency-hopping loop iterations run
	// by the server FSM.
	PFHIterations prometheus.Counter

	// PFHConvergences counts PFH runs that reached FREQUENCY_HOPPING_COMPLETE.
	PFHConvergences prometheus.Counter

	// OperatingFreqBroadcasts counts periodic and operator-triggered
	// OperatingFrequency broadcasts.
	OperatingFreqBroadcasts prometheus.Counter

	// MessagesDropped counts inbound frames dropped for duplicate
	// message_id or decode failure, labeled by interface.
	MessagesDropped *prometheus.CounterVec
}

// NewCollector creates a Collector with all RMACS metrics registered against
// the provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
//
// All metrics are created with the "rmacs_control_" prefix (namespace_subsystem)
// to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.LedgerFrequencies,
		c.LedgerAverageQuality,
		c.DedupSetSize,
		c.ScansPerformed,
		c.QualityReportsSent,
		c.BCQIAlertsSent,
		c.BCQIAlertsAccepted,
		c.BCQIAlertsDebounced,
		c.SwitchesAttempted,
		c.PFHIterations,
		c.PFHConvergences,
		c.OperatingFreqBroadcasts,
		c.MessagesDropped,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		LedgerFrequencies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ledger_frequencies",
			Help:      "Number of distinct frequencies tracked in the channel-quality ledger.",
		}),

		LedgerAverageQuality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ledger_average_quality",
			Help:      "Current average_quality for a ledger frequency.",
		}, []string{labelFreq}),

		DedupSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dedup_set_size",
			Help:      "Number of message_ids currently tracked in the processed-ID set.",
		}),

		ScansPerformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scans_performed_total",
			Help:      "Total spectral scans performed, labeled by scanned frequency.",
		}, []string{labelFreq}),

		QualityReportsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "quality_reports_sent_total",
			Help:      "Total ChannelQualityReport messages emitted.",
		}),

		BCQIAlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bcqi_alerts_sent_total",
			Help:      "Total BadChannelQualityIndex alerts emitted by the client FSM.",
		}),

		BCQIAlertsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bcqi_alerts_accepted_total",
			Help:      "Total BCQI alerts accepted by the server past its debounce window.",
		}),

		BCQIAlertsDebounced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bcqi_alerts_debounced_total",
			Help:      "Total BCQI alerts dropped by the server's debounce window.",
		}),

		SwitchesAttempted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "switches_attempted_total",
			Help:      "Total channel switch commands attempted, labeled by outcome.",
		}, []string{labelResult}),

		PFHIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pfh_iterations_total",
			Help:      "Total partial-frequency-hopping loop iterations run by the server FSM.",
		}),

		PFHConvergences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pfh_convergences_total",
			Help:      "Total partial-frequency-hopping runs that converged on a stable frequency.",
		}),

		OperatingFreqBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operating_freq_broadcasts_total",
			Help:      "Total OperatingFrequency broadcasts sent.",
		}),

		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_dropped_total",
			Help:      "Total inbound frames dropped, labeled by receiving interface.",
		}, []string{labelInterface}),
	}
}

// -------------------------------------------------------------------------
// Ledger
// -------------------------------------------------------------------------

// SetLedgerFrequencies sets the ledger frequency-count gauge.
func (c *Collector) SetLedgerFrequencies(n int) {
	c.LedgerFrequencies.Set(float64(n))
}

// SetLedgerAverageQuality sets the average_quality gauge for one frequency.
func (c *Collector) SetLedgerAverageQuality(freq int, avg float64) {
	c.LedgerAverageQuality.WithLabelValues(freqLabel(freq)).Set(avg)
}

// SetDedupSetSize sets the processed-ID set size gauge.
func (c *Collector) SetDedupSetSize(n int) {
	c.DedupSetSize.Set(float64(n))
}

// -------------------------------------------------------------------------
// Scans and Reports
// -------------------------------------------------------------------------

// IncScansPerformed increments the scan counter for a frequency.
func (c *Collector) IncScansPerformed(freq int) {
	c.ScansPerformed.WithLabelValues(freqLabel(freq)).Inc()
}

// IncQualityReportsSent increments the quality-report counter.
func (c *Collector) IncQualityReportsSent() {
	c.QualityReportsSent.Inc()
}

// -------------------------------------------------------------------------
// BCQI
// -------------------------------------------------------------------------

// IncBCQIAlertsSent increments the BCQI-sent counter.
func (c *Collector) IncBCQIAlertsSent() {
	c.BCQIAlertsSent.Inc()
}

// IncBCQIAlertsAccepted increments the BCQI-accepted counter.
func (c *Collector) IncBCQIAlertsAccepted() {
	c.BCQIAlertsAccepted.Inc()
}

// IncBCQIAlertsDebounced increments the BCQI-debounced counter.
func (c *Collector) IncBCQIAlertsDebounced() {
	c.BCQIAlertsDebounced.Inc()
}

// -------------------------------------------------------------------------
// Switching and PFH
// -------------------------------------------------------------------------

// Switch outcome labels for SwitchesAttempted.
const (
	SwitchResultSuccessful   = "successful"
	SwitchResultUnsuccessful = "unsuccessful"
	SwitchResultNotRequired  = "not_required"
)

// IncSwitchesAttempted increments the switch-attempt counter for an outcome.
func (c *Collector) IncSwitchesAttempted(result string) {
	c.SwitchesAttempted.WithLabelValues(result).Inc()
}

// IncPFHIterations increments the PFH-iteration counter.
func (c *Collector) IncPFHIterations() {
	c.PFHIterations.Inc()
}

// IncPFHConvergences increments the PFH-convergence counter.
func (c *Collector) IncPFHConvergences() {
	c.PFHConvergences.Inc()
}

// IncOperatingFreqBroadcasts increments the operating-frequency-broadcast counter.
func (c *Collector) IncOperatingFreqBroadcasts() {
	c.OperatingFreqBroadcasts.Inc()
}

// -------------------------------------------------------------------------
// Transport
// -------------------------------------------------------------------------

// IncMessagesDropped increments the dropped-message counter for an interface.
func (c *Collector) IncMessagesDropped(iface string) {
	c.MessagesDropped.WithLabelValues(iface).Inc()
}

// freqLabel formats a frequency as a Prometheus label value.
func freqLabel(freq int) string {
	return strconv.Itoa(freq)
}
