package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"spikenet/internal/model"
)

const namespace = "spikenet"

// Metrics holds the per-domain simulation counters. Every series carries a
// domain label.
type Metrics struct {
	Ticks          *prometheus.CounterVec
	SpikedNeurons  *prometheus.CounterVec
	SpikesSent     *prometheus.CounterVec
	SpikesReceived *prometheus.CounterVec
	IndexAgain     *prometheus.CounterVec
	SynapsesSent   *prometheus.CounterVec
	LiveSynapses   *prometheus.GaugeVec
	DeadNeurons    *prometheus.GaugeVec
	DeployStage    *prometheus.GaugeVec
	TickDuration   *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg leaves them unregistered,
// which is what tests want when several networks share a process.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Number of simulation ticks completed",
		}, []string{"domain"}),
		SpikedNeurons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spiked_neurons_total",
			Help:      "Number of local neurons that crossed their threshold",
		}, []string{"domain"}),
		SpikesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spikes_sent_total",
			Help:      "Number of spikes forwarded to receiver slots of other domains",
		}, []string{"domain"}),
		SpikesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spikes_received_total",
			Help:      "Number of spikes applied to local receiver slots",
		}, []string{"domain"}),
		IndexAgain: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_again_total",
			Help:      "Number of duplicate receiver or transmitter registrations",
		}, []string{"domain", "index"}),
		SynapsesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_synapses_sent_total",
			Help:      "Number of synapse requests sent to other domains",
		}, []string{"domain"}),
		LiveSynapses: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_synapses",
			Help:      "Synapses with a non-zero level",
		}, []string{"domain"}),
		DeadNeurons: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dead_neurons",
			Help:      "Neurons flagged dead after exhausting their vitality",
		}, []string{"domain"}),
		DeployStage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deploy_stage",
			Help:      "Last completed deployment stage",
		}, []string{"domain"}),
		TickDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one domain tick",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"domain"}),
	}
}

func (m *Metrics) ObserveTick(domain string, st model.TickStats) {
	m.Ticks.WithLabelValues(domain).Inc()
	m.SpikedNeurons.WithLabelValues(domain).Add(float64(st.Spiked))
	m.SpikesSent.WithLabelValues(domain).Add(float64(st.Transmitted))
	m.SpikesReceived.WithLabelValues(domain).Add(float64(st.Received))
	m.LiveSynapses.WithLabelValues(domain).Set(float64(st.LiveSynapses))
	m.DeadNeurons.WithLabelValues(domain).Set(float64(st.DeadNeurons))
	m.TickDuration.WithLabelValues(domain).Observe(float64(st.ElapsedMicros) / 1e6)
}

func (m *Metrics) IncrementIndexAgain(domain, index string) {
	m.IndexAgain.WithLabelValues(domain, index).Inc()
}

func (m *Metrics) AddSynapsesSent(domain string, n int) {
	m.SynapsesSent.WithLabelValues(domain).Add(float64(n))
}

func (m *Metrics) SetDeployStage(domain string, stage int) {
	m.DeployStage.WithLabelValues(domain).Set(float64(stage))
}
