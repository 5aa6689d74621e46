package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"spikenet/internal/device"
	"spikenet/internal/index"
	"spikenet/internal/layer"
	"spikenet/internal/metrics"
	"spikenet/internal/model"
	"spikenet/internal/packet"
	"spikenet/internal/vector"
)

// DefaultYieldInterval is the wall time connect work runs between two
// cooperative checkpoints.
const DefaultYieldInterval = 100 * time.Millisecond

// DefaultLevel is the initial level of synapses whose connect rule leaves
// it unset.
const DefaultLevel float32 = 1

var (
	ErrStage    = errors.New("domain stage out of order")
	ErrProtocol = errors.New("domain protocol violation")
)

// Transport ships serialized packets to other domains of the network. Calls
// must not block on the receiving domain's simulation loop.
type Transport interface {
	SendSynapsePack(ctx context.Context, to int32, data []byte) error
	SendReceiverIndexPack(ctx context.Context, to int32, data []byte) error
	RegisterSpikePack(ctx context.Context, to int32, data []byte) error
}

// Progress is reported at every connect checkpoint. Row rows of Width
// pre-layer neurons are connected; Rows is the pre-layer height.
type Progress struct {
	Domain string
	Layer  string
	Rule   string
	Row    int
	Width  int
	Rows   int
}

type ProgressFunc func(Progress)

// Domain is one partition of the network. All methods except the peer
// facing ones (SendSynapse, SendReceiverIndex, RegisterSpike and their pack
// variants, Pending, Status) must be called from a single goroutine.
type Domain struct {
	name    string
	index   int32
	spec    model.DomainSpec
	network model.NetworkSpec
	atlas   *layer.Atlas

	device        device.Device
	transport     Transport
	logger        *slog.Logger
	metrics       *metrics.Metrics
	random        *rand.Rand
	progress      ProgressFunc
	yieldInterval time.Duration
	now           func() time.Time

	stage  Stage
	ticks  int64
	layers []*layer.Layer
	byName map[string]*layer.Layer
	rules  []connectRule

	neurons     *vector.Neurons
	layerParams *vector.Layers
	synapses    *vector.Synapses
	preIndex    *index.Synapses
	postIndex   *index.Synapses
	transmitter *index.Transmitter
	receiver    *index.Receiver
	policy      device.LearnPolicy
	state       device.State
	dirty       bool

	inbox      inbox
	synapseOut map[int32]*packet.TransmitterVector
	replyOut   map[int32]*packet.ReceiverVector
	stats      model.DomainStats
	history    []model.TickStats

	statusMu sync.RWMutex
	status   Status
}

type Option func(d *Domain)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Domain) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Domain) {
		d.metrics = m
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(d *Domain) {
		d.progress = fn
	}
}

// WithYieldInterval overrides DefaultYieldInterval. Zero checkpoints after
// every pre-layer row.
func WithYieldInterval(interval time.Duration) Option {
	return func(d *Domain) {
		d.yieldInterval = interval
	}
}

// WithRand replaces the PRNG seeded from the network seed and domain index.
func WithRand(r *rand.Rand) Option {
	return func(d *Domain) {
		d.random = r
	}
}

// New creates the domain at position idx of network. Nothing is allocated
// before DeployLayers.
func New(idx int, network model.NetworkSpec, atlas *layer.Atlas, dev device.Device, transport Transport, opts ...Option) (*Domain, error) {
	if idx < 0 || idx >= len(network.Domains) {
		return nil, fmt.Errorf("domain index %d outside [0, %d)", idx, len(network.Domains))
	}
	if atlas == nil || dev == nil || transport == nil {
		return nil, fmt.Errorf("domain %s: atlas, device and transport are required", network.Domains[idx].Name)
	}
	spec := network.Domains[idx]
	d := &Domain{
		name:          spec.Name,
		index:         int32(idx),
		spec:          spec,
		network:       network,
		atlas:         atlas,
		device:        dev,
		transport:     transport,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		random:        rand.New(rand.NewSource(network.Seed + int64(idx))),
		yieldInterval: DefaultYieldInterval,
		now:           time.Now,
		byName:        make(map[string]*layer.Layer),
		synapseOut:    make(map[int32]*packet.TransmitterVector),
		replyOut:      make(map[int32]*packet.ReceiverVector),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("domain", d.name)
	d.publishStatus()
	return d, nil
}

func (d *Domain) Name() string {
	return d.name
}

func (d *Domain) Index() int32 {
	return d.index
}

func (d *Domain) Ticks() int64 {
	return d.ticks
}

func (d *Domain) Stage() Stage {
	return d.stage
}

func (d *Domain) Neurons() *vector.Neurons {
	return d.neurons
}

func (d *Domain) Synapses() *vector.Synapses {
	return d.synapses
}

func (d *Domain) Transmitter() *index.Transmitter {
	return d.transmitter
}

func (d *Domain) Receiver() *index.Receiver {
	return d.receiver
}

func (d *Domain) PreIndex() *index.Synapses {
	return d.preIndex
}

func (d *Domain) PostIndex() *index.Synapses {
	return d.postIndex
}

func (d *Domain) Layer(name string) (*layer.Layer, bool) {
	l, ok := d.byName[name]
	return l, ok
}

func (d *Domain) Stats() model.DomainStats {
	return d.stats
}

func (d *Domain) TickHistory() []model.TickStats {
	return append([]model.TickStats(nil), d.history...)
}

// Status is a copy of the domain counters safe to read from any goroutine.
type Status struct {
	Name         string            `json:"name"`
	Index        int32             `json:"index"`
	Stage        string            `json:"stage"`
	Ticks        int64             `json:"ticks"`
	Neurons      int               `json:"neurons"`
	Receivers    int               `json:"receivers"`
	Transmitters int               `json:"transmitters"`
	Synapses     int               `json:"synapses"`
	Peers        []int32           `json:"peers"`
	Stats        model.DomainStats `json:"stats"`
}

func (d *Domain) Status() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.status
}

func (d *Domain) publishStatus() {
	st := Status{
		Name:  d.name,
		Index: d.index,
		Stage: d.stage.String(),
		Ticks: d.ticks,
		Stats: d.stats,
	}
	if d.neurons != nil {
		st.Neurons = d.neurons.Len()
	}
	if d.synapses != nil {
		st.Synapses = d.synapses.Len()
	}
	if d.receiver != nil {
		st.Receivers = d.receiver.Len()
	}
	if d.transmitter != nil {
		st.Transmitters = d.transmitter.Len()
		st.Peers = d.transmitter.Domains()
	}
	d.statusMu.Lock()
	d.status = st
	d.statusMu.Unlock()
}

// SizeReport lists the footprint of every vector owned by the domain.
func (d *Domain) SizeReport() string {
	if d.neurons == nil {
		return ""
	}
	return vector.SizeReport(d.neurons.Vector, d.layerParams.Vector, d.synapses.Vector)
}

// Snapshot copies the persistent state of the domain.
func (d *Domain) Snapshot(runID string) model.DomainSnapshot {
	snap := model.DomainSnapshot{
		RunID:  runID,
		Domain: d.name,
		Index:  int(d.index),
		Ticks:  d.ticks,
		Stats:  d.stats,
	}
	if d.neurons != nil {
		snap.Neurons = d.neurons.State()
	}
	if d.synapses != nil {
		snap.Synapses = d.synapses.State()
	}
	return snap
}
