package stats

import (
	"math"

	"spikenet/internal/model"
)

// ActivitySummary condenses the tick history of one domain.
type ActivitySummary struct {
	Ticks             int     `json:"ticks"`
	TotalSpiked       int     `json:"total_spiked"`
	MeanSpiked        float64 `json:"mean_spiked"`
	StdSpiked         float64 `json:"std_spiked"`
	MaxSpiked         int     `json:"max_spiked"`
	TotalReceived     int     `json:"total_received"`
	TotalTransmitted  int     `json:"total_transmitted"`
	FinalDeadNeurons  int     `json:"final_dead_neurons"`
	FinalLiveSynapses int     `json:"final_live_synapses"`
	MeanTickMicros    float64 `json:"mean_tick_micros"`
}

func Summarize(history []model.TickStats) ActivitySummary {
	s := ActivitySummary{Ticks: len(history)}
	if len(history) == 0 {
		return s
	}
	var elapsed int64
	for _, st := range history {
		s.TotalSpiked += st.Spiked
		s.TotalReceived += st.Received
		s.TotalTransmitted += st.Transmitted
		s.MaxSpiked = max(s.MaxSpiked, st.Spiked)
		elapsed += st.ElapsedMicros
	}
	n := float64(len(history))
	s.MeanSpiked = float64(s.TotalSpiked) / n
	s.MeanTickMicros = float64(elapsed) / n

	variance := 0.0
	for _, st := range history {
		d := float64(st.Spiked) - s.MeanSpiked
		variance += d * d
	}
	s.StdSpiked = math.Sqrt(variance / n)

	last := history[len(history)-1]
	s.FinalDeadNeurons = last.DeadNeurons
	s.FinalLiveSynapses = last.LiveSynapses
	return s
}
