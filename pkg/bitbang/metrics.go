package bitbang

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts transport activity for one or more sessions.
type Metrics struct {
	Flushes           prometheus.Counter
	BytesWritten      prometheus.Counter
	BytesRead         prometheus.Counter
	Samples           prometheus.Counter
	TransportWarnings prometheus.Counter
	OverflowDrops     prometheus.Counter
}

// NewMetrics creates the counters and registers them on reg when it is not
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bitbang",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		Flushes:           counter("flushes_total", "Completed transmit buffer flushes."),
		BytesWritten:      counter("bytes_written_total", "Pin bytes written to the converter."),
		BytesRead:         counter("bytes_read_total", "Sampled bytes read back from the converter."),
		Samples:           counter("samples_total", "TDO samples kept for sample-requested bytes."),
		TransportWarnings: counter("transport_warnings_total", "Flushes abandoned on a transfer error."),
		OverflowDrops:     counter("overflow_drops_total", "Bytes dropped on a full buffer."),
	}
	if reg != nil {
		reg.MustRegister(
			m.Flushes,
			m.BytesWritten,
			m.BytesRead,
			m.Samples,
			m.TransportWarnings,
			m.OverflowDrops,
		)
	}
	return m
}
