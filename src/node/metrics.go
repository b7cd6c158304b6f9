package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/wire"
)

// Metrics holds the Prometheus metrics of a Manager. Each Manager registers
// them on its own registry so several can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	// Connection metrics
	ConnectedPeers prometheus.Gauge
	PendingDials   prometheus.Gauge
	RegistrySize   *prometheus.GaugeVec
	PeerOutcomes   *prometheus.CounterVec

	// Frame metrics
	FramesReceived  *prometheus.CounterVec
	FramesRejected  *prometheus.CounterVec
	FramesRelayed   prometheus.Counter
	RelaySuppressed prometheus.Counter
	RelayDropped    prometheus.Counter

	// State metrics
	CommitteeEpoch prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with the given namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ConnectedPeers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_peers",
			Help:      "Number of peers exchanging frames",
		}),
		PendingDials: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_dials",
			Help:      "Number of dials waiting for a slot or in progress",
		}),
		RegistrySize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_ips",
			Help:      "Number of IPs by membership",
		}, []string{"membership"}),
		PeerOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_terminations_total",
			Help:      "Terminated peer connections by error type",
		}, []string{"reason"}),

		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames read from peers by message type",
		}, []string{"type"}),
		FramesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Frames that failed decoding or validation",
		}, []string{"type", "reason"}),
		FramesRelayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_relayed_total",
			Help:      "Frames queued to peers by flood relay",
		}),
		RelaySuppressed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_suppressed_total",
			Help:      "Frames not relayed because they were relayed before",
		}),
		RelayDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_dropped_total",
			Help:      "Relayed frames dropped because the peer's outbound queue was full",
		}),

		CommitteeEpoch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "committee_epoch",
			Help:      "Epoch of the cached committee roster",
		}),
	}
}

func (m *Metrics) observeFrame(t wire.MessageType, err error) {
	label := typeLabel(t)
	m.FramesReceived.WithLabelValues(label).Inc()
	if err != nil {
		m.FramesRejected.WithLabelValues(label, errReason(err)).Inc()
	}
}

// typeLabel folds every undefined message type into one label value.
func typeLabel(t wire.MessageType) string {
	if !t.Known() {
		return "unknown"
	}
	return t.String()
}

func errReason(err error) string {
	for _, t := range []cm.NetErrType{
		cm.FormatError,
		cm.ValidationError,
		cm.ConnectionError,
		cm.DialError,
		cm.HandshakeError,
	} {
		if cm.IsNet(err, t) {
			return t.String()
		}
	}
	if err == nil {
		return "none"
	}
	return "other"
}
