package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one simulation run over a deployed network.
type RunRecord struct {
	VersionedRecord
	ID           string   `json:"id"`
	CreatedAtUTC string   `json:"created_at_utc"`
	Domains      []string `json:"domains"`
	Device       string   `json:"device"`
	Seed         int64    `json:"seed"`
	Ticks        int64    `json:"ticks"`
	Neurons      int      `json:"neurons"`
	Synapses     int      `json:"synapses"`
}

// NeuronState is a columnar copy of a domain's neuron vector.
type NeuronState struct {
	Levels   []float32 `json:"levels"`
	Flags    []Flags   `json:"flags"`
	Ticks    []int64   `json:"ticks"`
	Vitality []float32 `json:"vitality"`
}

// SynapseState is a columnar copy of a domain's synapse vector.
type SynapseState struct {
	Pre    []int32   `json:"pre"`
	Post   []int32   `json:"post"`
	Levels []float32 `json:"levels"`
}

type DomainSnapshot struct {
	VersionedRecord
	RunID    string       `json:"run_id"`
	Domain   string       `json:"domain"`
	Index    int          `json:"index"`
	Ticks    int64        `json:"ticks"`
	Neurons  NeuronState  `json:"neurons"`
	Synapses SynapseState `json:"synapses"`
	Stats    DomainStats  `json:"stats"`
}

// DomainStats are the cumulative counters of one domain.
type DomainStats struct {
	LocalSynapses         int64 `json:"local_synapses"`
	RemoteSynapsesSent    int64 `json:"remote_synapses_sent"`
	RemoteSynapsesAdded   int64 `json:"remote_synapses_added"`
	ReceiverIndexAgain    int64 `json:"receiver_index_again"`
	TransmitterIndexAgain int64 `json:"transmitter_index_again"`
	SpikesSent            int64 `json:"spikes_sent"`
	SpikesReceived        int64 `json:"spikes_received"`
	SpikesUnknown         int64 `json:"spikes_unknown"`
	SkippedWindows        int64 `json:"skipped_windows"`
}

// TickStats summarises a single tick of one domain.
type TickStats struct {
	Tick          int64 `json:"tick"`
	Spiked        int   `json:"spiked"`
	Received      int   `json:"received"`
	Transmitted   int   `json:"transmitted"`
	DeadNeurons   int   `json:"dead_neurons"`
	LiveSynapses  int   `json:"live_synapses"`
	ElapsedMicros int64 `json:"elapsed_micros"`
}
