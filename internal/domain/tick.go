package domain

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"spikenet/internal/model"
	"spikenet/internal/packet"
	"spikenet/internal/vector"
)

// Tick advances the domain by one step:
//
//  1. the device fires and decays neurons
//  2. spikes other domains sent up to this tick mark receiver slots
//  3. the device copies receiver slot flags onto receiver neurons
//  4. the device flags transmitter entries of spiking neurons
//  5. spikes are forwarded to the domains owning the receivers
//  6. the device propagates spikes through synapses and learns
//
// Queued synapse requests and receiver index replies are applied first. Any
// error leaves the domain in an undefined state.
func (d *Domain) Tick(ctx context.Context) (model.TickStats, error) {
	if err := d.expect(StageDevice, "Tick"); err != nil {
		return model.TickStats{}, err
	}
	start := d.now()
	d.ticks++
	d.state.Tick = d.ticks

	if _, err := d.ProcessInbox(ctx); err != nil {
		return model.TickStats{}, err
	}
	if err := d.upload(); err != nil {
		return model.TickStats{}, err
	}

	if err := d.device.TickNeurons(&d.state); err != nil {
		return model.TickStats{}, d.tickError("tick neurons", err)
	}
	spiked := 0
	for _, f := range d.neurons.Flags.Data[:d.neurons.Local()] {
		if f.Has(model.FlagSpiked) {
			spiked++
		}
	}

	received := d.receiveSpikes()

	if err := d.device.TickReceiverIndex(&d.state); err != nil {
		return model.TickStats{}, d.tickError("tick receiver index", err)
	}
	d.receiver.ClearFlags()

	if err := d.device.TickTransmitterIndex(&d.state); err != nil {
		return model.TickStats{}, d.tickError("tick transmitter index", err)
	}

	sent, err := d.sendSpikes(ctx)
	if err != nil {
		return model.TickStats{}, d.tickError("send spikes", err)
	}

	if err := d.device.TickSynapses(&d.state); err != nil {
		return model.TickStats{}, d.tickError("tick synapses", err)
	}
	for _, address := range d.state.Died {
		d.logDeath(address)
	}
	for _, v := range []*vector.Vector{d.neurons.Vector, d.synapses.Vector} {
		if err := d.device.FromDevice(v); err != nil {
			return model.TickStats{}, d.tickError("download "+v.Name(), err)
		}
	}

	st := model.TickStats{
		Tick:          d.ticks,
		Spiked:        spiked,
		Received:      received,
		Transmitted:   sent,
		DeadNeurons:   d.neurons.CountFlag(model.FlagDead),
		LiveSynapses:  d.synapses.Live(),
		ElapsedMicros: d.now().Sub(start).Microseconds(),
	}
	d.history = append(d.history, st)
	if d.metrics != nil {
		d.metrics.ObserveTick(d.name, st)
	}
	d.publishStatus()
	return st, nil
}

func (d *Domain) tickError(phase string, err error) error {
	return fmt.Errorf("domain %s tick %d: %s: %w", d.name, d.ticks, phase, err)
}

// upload compacts the adjacency indexes and copies host vectors to the
// device after the host changed them.
func (d *Domain) upload() error {
	if !d.dirty {
		return nil
	}
	d.preIndex.Shrink()
	d.postIndex.Shrink()
	for _, v := range d.vectors() {
		if err := d.device.ToDevice(v); err != nil {
			return d.tickError("upload "+v.Name(), err)
		}
	}
	d.dirty = false
	return nil
}

// logDeath logs where a neuron that ran out of vitality sits.
func (d *Domain) logDeath(address int32) {
	for _, l := range d.layers {
		if l.Owns(address) {
			x, y := l.Coordinates(address)
			d.logger.Debug("neuron died", "tick", d.ticks, "layer", l.Name(), "x", x, "y", y)
			return
		}
	}
	d.logger.Debug("neuron died", "tick", d.ticks, "address", address)
}

func (d *Domain) receiveSpikes() int {
	received := 0
	for _, p := range d.inbox.takeSpikes(d.ticks) {
		for _, slot := range p.Slots {
			if slot < 0 || int(slot) >= d.receiver.Len() || d.receiver.OriginDomain[slot] != p.Origin {
				d.stats.SpikesUnknown++
				continue
			}
			d.receiver.Mark(slot)
			received++
		}
	}
	d.stats.SpikesReceived += int64(received)
	return received
}

func (d *Domain) sendSpikes(ctx context.Context) (int, error) {
	x := d.transmitter
	batches := make(map[int32]*packet.SpikeVector)
	sent := 0
	for i, f := range x.Flags {
		if !f.Has(model.FlagSpiked) || f.Has(model.FlagDead) {
			continue
		}
		to := x.RemoteDomain[i]
		batch, ok := batches[to]
		if !ok {
			batch = &packet.SpikeVector{Origin: d.index, Tick: d.ticks}
			batches[to] = batch
		}
		batch.Append(x.RemoteSlot[i])
		sent++
	}
	for _, to := range slices.Sorted(maps.Keys(batches)) {
		data, err := batches[to].MarshalBinary()
		if err != nil {
			return 0, err
		}
		if err := d.transport.RegisterSpikePack(ctx, to, data); err != nil {
			return 0, fmt.Errorf("register spikes on domain %d: %w", to, err)
		}
	}
	d.stats.SpikesSent += int64(sent)
	return sent, nil
}

// Stimulate adds amount to the level of the neuron at (x, y) of a local
// layer. Dead neurons ignore stimuli.
func (d *Domain) Stimulate(layerName string, x, y int, amount float32) error {
	if d.neurons == nil {
		return fmt.Errorf("%w: %s Stimulate before DeployNeurons", ErrStage, d.name)
	}
	l, ok := d.byName[layerName]
	if !ok {
		return fmt.Errorf("domain %s: unknown layer %s", d.name, layerName)
	}
	if !l.Contains(x, y) {
		return fmt.Errorf("domain %s: (%d,%d) outside layer %s", d.name, x, y, layerName)
	}
	address := l.Address(x, y)
	if d.neurons.Flags.Data[address].Has(model.FlagDead) {
		return nil
	}
	d.neurons.Level.Data[address] += amount
	d.dirty = true
	return nil
}
