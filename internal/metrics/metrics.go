// Package metrics implements Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/hdrstack/internal/core"
)

var (
	// PacketsTotal counts packets handed to the decoder by entry point
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrstack_packets_total",
			Help: "Total number of packets decoded",
		},
		[]string{"entry"},
	)

	// DecodeErrorsTotal counts failed decodes by the layer that failed
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrstack_decode_errors_total",
			Help: "Total number of packets that failed to decode",
		},
		[]string{"layer", "kind"},
	)

	// LayersTotal counts decoded headers per layer
	LayersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrstack_layers_total",
			Help: "Total number of decoded headers per layer",
		},
		[]string{"layer"},
	)

	// PacketsSkippedTotal counts packets that never reached the decoder
	PacketsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdrstack_packets_skipped_total",
			Help: "Total number of packets skipped before decoding",
		},
		[]string{"reason"}, // filtered | oversized
	)

	// DecodeLatencySeconds measures the time spent in a single decode call
	DecodeLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hdrstack_decode_latency_seconds",
			Help:    "Latency of a single decode call in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00000001, 2, 20), // 10ns to ~5ms
		},
	)
)

// Skip reasons for PacketsSkippedTotal.
const (
	SkipFiltered  = "filtered"
	SkipOversized = "oversized"
)

// ObserveDecode records the outcome of one decode call.
func ObserveDecode(entry string, stack *core.HeaderStack, err error) {
	PacketsTotal.WithLabelValues(entry).Inc()

	if err != nil {
		var de *core.DecodeError
		if errors.As(err, &de) {
			DecodeErrorsTotal.WithLabelValues(de.Layer.String(), de.Kind()).Inc()
		} else {
			DecodeErrorsTotal.WithLabelValues(core.LayerUnknown.String(), "other").Inc()
		}
		return
	}

	for _, layer := range stack.Layers() {
		LayersTotal.WithLabelValues(layer.String()).Inc()
	}
}
