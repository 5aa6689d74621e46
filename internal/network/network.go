package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spikenet/internal/device"
	"spikenet/internal/domain"
	"spikenet/internal/layer"
	"spikenet/internal/metrics"
	"spikenet/internal/model"
)

// maxSettleRounds bounds the message exchange after connect. Each round
// turns requests into replies, so a healthy network settles in two or three.
const maxSettleRounds = 32

var ErrUnknownDomain = errors.New("unknown domain")

// Network is the domain table. It is the only owner of the domains; peers
// address each other by index through it.
type Network struct {
	spec    model.NetworkSpec
	atlas   *layer.Atlas
	domains []*domain.Domain
	local   *local
	logger  *slog.Logger
	metrics *metrics.Metrics

	progress      domain.ProgressFunc
	yieldInterval time.Duration
}

type Option func(n *Network)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		n.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Network) {
		n.metrics = m
	}
}

// WithProgress receives connect progress of every domain. It is called
// concurrently from the deploying goroutines.
func WithProgress(fn domain.ProgressFunc) Option {
	return func(n *Network) {
		n.progress = fn
	}
}

func WithYieldInterval(interval time.Duration) Option {
	return func(n *Network) {
		n.yieldInterval = interval
	}
}

// New builds the atlas and one domain per DomainSpec, each with its own
// device handle.
func New(spec model.NetworkSpec, opts ...Option) (*Network, error) {
	if len(spec.Domains) == 0 {
		return nil, errors.New("network has no domains")
	}
	n := &Network{
		spec:          spec,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		yieldInterval: domain.DefaultYieldInterval,
	}
	for _, opt := range opts {
		opt(n)
	}
	atlas, err := layer.NewAtlas(spec)
	if err != nil {
		return nil, err
	}
	n.atlas = atlas

	n.local = &local{network: n}
	for i := range spec.Domains {
		dev, err := device.New(spec.Device)
		if err != nil {
			return nil, err
		}
		domainOpts := []domain.Option{
			domain.WithLogger(n.logger),
			domain.WithYieldInterval(n.yieldInterval),
		}
		if n.metrics != nil {
			domainOpts = append(domainOpts, domain.WithMetrics(n.metrics))
		}
		if n.progress != nil {
			domainOpts = append(domainOpts, domain.WithProgress(n.progress))
		}
		d, err := domain.New(i, spec, atlas, dev, n.local, domainOpts...)
		if err != nil {
			return nil, err
		}
		n.domains = append(n.domains, d)
	}
	return n, nil
}

func (n *Network) Spec() model.NetworkSpec {
	return n.spec
}

func (n *Network) Atlas() *layer.Atlas {
	return n.atlas
}

func (n *Network) Domains() []*domain.Domain {
	return append([]*domain.Domain(nil), n.domains...)
}

// Domain resolves a domain index through the table.
func (n *Network) Domain(idx int32) (*domain.Domain, error) {
	if idx < 0 || int(idx) >= len(n.domains) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDomain, idx)
	}
	return n.domains[idx], nil
}

// DomainByName resolves a domain by its unique name.
func (n *Network) DomainByName(name string) (*domain.Domain, error) {
	idx, ok := n.spec.DomainIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, name)
	}
	return n.domains[idx], nil
}

// Statuses returns the status of every domain. Safe while running.
func (n *Network) Statuses() []domain.Status {
	out := make([]domain.Status, 0, len(n.domains))
	for _, d := range n.domains {
		out = append(out, d.Status())
	}
	return out
}

// each runs fn for every domain on its own goroutine and waits for all of
// them. The first error cancels the others.
func (n *Network) each(ctx context.Context, fn func(ctx context.Context, d *domain.Domain) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range n.domains {
		g.Go(func() error {
			return fn(gctx, d)
		})
	}
	return g.Wait()
}

// Deploy runs the deployment pipeline of all domains. Stages that exchange
// messages are separated by barriers: every domain finishes connecting
// before any builds its indexes.
func (n *Network) Deploy(ctx context.Context) error {
	start := time.Now()
	err := n.each(ctx, func(ctx context.Context, d *domain.Domain) error {
		if err := d.DeployLayers(); err != nil {
			return err
		}
		if err := d.DeployNeurons(); err != nil {
			return err
		}
		if err := d.PreDeploySynapses(); err != nil {
			return err
		}
		return d.DeploySynapses(ctx)
	})
	if err != nil {
		return fmt.Errorf("deploy synapses: %w", err)
	}
	if err := n.settle(ctx); err != nil {
		return err
	}
	err = n.each(ctx, func(ctx context.Context, d *domain.Domain) error {
		if err := d.DeployIndexes(); err != nil {
			return err
		}
		return d.DeployDevice()
	})
	if err != nil {
		return fmt.Errorf("deploy device: %w", err)
	}
	n.logger.Info("network deployed", "domains", len(n.domains), "elapsed", time.Since(start).String())
	return nil
}

// settle exchanges synapse requests and receiver index replies until no
// domain has pending messages.
func (n *Network) settle(ctx context.Context) error {
	for round := 1; round <= maxSettleRounds; round++ {
		err := n.each(ctx, func(ctx context.Context, d *domain.Domain) error {
			return d.PostDeploySynapses(ctx)
		})
		if err != nil {
			return fmt.Errorf("post deploy synapses round %d: %w", round, err)
		}
		if n.pending() == 0 {
			n.logger.Debug("network settled", "rounds", round)
			return nil
		}
	}
	return fmt.Errorf("post deploy synapses: %d messages still pending after %d rounds", n.pending(), maxSettleRounds)
}

func (n *Network) pending() int {
	total := 0
	for _, d := range n.domains {
		total += d.Pending()
	}
	return total
}

// TickFunc observes the per-domain statistics of one completed tick.
type TickFunc func(tick int64, stats []model.TickStats) error

// Run ticks every domain count times in lockstep. Spikes sent during tick
// t are held by the transport and delivered at the barrier, so receivers
// apply them on their next tick, t+1, whatever the goroutine schedule.
// after, when set, runs at each barrier once the spikes are delivered.
func (n *Network) Run(ctx context.Context, count int, after TickFunc) error {
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats := make([]model.TickStats, len(n.domains))
		err := n.each(ctx, func(ctx context.Context, d *domain.Domain) error {
			st, err := d.Tick(ctx)
			stats[d.Index()] = st
			return err
		})
		if err != nil {
			return err
		}
		if err := n.local.deliverSpikes(); err != nil {
			return err
		}
		if after != nil {
			if err := after(stats[0].Tick, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// local is the in-process transport: packets are handed to the inbox of
// the target domain resolved through the domain table. Spike packets wait
// for the next barrier.
type local struct {
	network *Network

	mu     sync.Mutex
	spikes []spikePack
}

type spikePack struct {
	to   int32
	data []byte
}

func (l *local) SendSynapsePack(ctx context.Context, to int32, data []byte) error {
	d, err := l.target(ctx, to)
	if err != nil {
		return err
	}
	return d.SendSynapsePack(data)
}

func (l *local) SendReceiverIndexPack(ctx context.Context, to int32, data []byte) error {
	d, err := l.target(ctx, to)
	if err != nil {
		return err
	}
	return d.SendReceiverIndexPack(data)
}

func (l *local) RegisterSpikePack(ctx context.Context, to int32, data []byte) error {
	if _, err := l.target(ctx, to); err != nil {
		return err
	}
	l.mu.Lock()
	l.spikes = append(l.spikes, spikePack{to: to, data: data})
	l.mu.Unlock()
	return nil
}

// deliverSpikes hands the held spike packets to their targets in domain
// order.
func (l *local) deliverSpikes() error {
	l.mu.Lock()
	held := l.spikes
	l.spikes = nil
	l.mu.Unlock()

	slices.SortStableFunc(held, func(a, b spikePack) int {
		return int(a.to - b.to)
	})
	for _, p := range held {
		if err := l.network.domains[p.to].RegisterSpikePack(p.data); err != nil {
			return err
		}
	}
	return nil
}

// heldSpikes counts spike packets waiting for the barrier.
func (l *local) heldSpikes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.spikes)
}

func (l *local) target(ctx context.Context, to int32) (*domain.Domain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.network.Domain(to)
}
