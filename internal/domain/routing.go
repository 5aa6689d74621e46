package domain

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"spikenet/internal/index"
	"spikenet/internal/model"
	"spikenet/internal/packet"
)

// inbox queues messages from other domains until the owning goroutine
// applies them.
type inbox struct {
	mu       sync.Mutex
	synapses []packet.SynapseRequest
	replies  []packet.ReceiverReply
	spikes   []packet.SpikeVector
}

func (b *inbox) take() ([]packet.SynapseRequest, []packet.ReceiverReply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	synapses, replies := b.synapses, b.replies
	b.synapses, b.replies = nil, nil
	return synapses, replies
}

// takeSpikes removes the spike packets sent at or before tick. Packets of
// peers that are already ahead stay queued.
func (b *inbox) takeSpikes(tick int64) []packet.SpikeVector {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ready []packet.SpikeVector
	kept := b.spikes[:0]
	for _, p := range b.spikes {
		if p.Tick <= tick {
			ready = append(ready, p)
		} else {
			kept = append(kept, p)
		}
	}
	clear(b.spikes[len(kept):])
	b.spikes = kept
	return ready
}

// SendSynapse queues a request from another domain to connect one of its
// neurons to a local neuron.
func (d *Domain) SendSynapse(r packet.SynapseRequest) {
	d.inbox.mu.Lock()
	d.inbox.synapses = append(d.inbox.synapses, r)
	d.inbox.mu.Unlock()
}

func (d *Domain) SendSynapsePack(data []byte) error {
	var v packet.TransmitterVector
	if err := v.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%w: %s synapse pack: %w", ErrProtocol, d.name, err)
	}
	d.inbox.mu.Lock()
	d.inbox.synapses = append(d.inbox.synapses, v.Records...)
	d.inbox.mu.Unlock()
	return nil
}

// SendReceiverIndex queues the reply of a post domain telling which of its
// receiver slots stands in for a local transmitter neuron.
func (d *Domain) SendReceiverIndex(r packet.ReceiverReply) {
	d.inbox.mu.Lock()
	d.inbox.replies = append(d.inbox.replies, r)
	d.inbox.mu.Unlock()
}

func (d *Domain) SendReceiverIndexPack(data []byte) error {
	var v packet.ReceiverVector
	if err := v.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%w: %s receiver index pack: %w", ErrProtocol, d.name, err)
	}
	d.inbox.mu.Lock()
	d.inbox.replies = append(d.inbox.replies, v.Records...)
	d.inbox.mu.Unlock()
	return nil
}

// RegisterSpike queues a spike of origin, fired at tick, for a receiver slot.
func (d *Domain) RegisterSpike(origin int32, tick int64, slot int32) {
	d.inbox.mu.Lock()
	d.inbox.spikes = append(d.inbox.spikes, packet.SpikeVector{Origin: origin, Tick: tick, Slots: []int32{slot}})
	d.inbox.mu.Unlock()
}

func (d *Domain) RegisterSpikePack(data []byte) error {
	var v packet.SpikeVector
	if err := v.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%w: %s spike pack: %w", ErrProtocol, d.name, err)
	}
	d.inbox.mu.Lock()
	d.inbox.spikes = append(d.inbox.spikes, v)
	d.inbox.mu.Unlock()
	return nil
}

// Pending counts queued synapse requests and receiver index replies.
func (d *Domain) Pending() int {
	d.inbox.mu.Lock()
	defer d.inbox.mu.Unlock()
	return len(d.inbox.synapses) + len(d.inbox.replies)
}

// ProcessInbox applies queued synapse requests and receiver index replies,
// then flushes every buffered outbound packet. It returns the number of
// messages applied.
func (d *Domain) ProcessInbox(ctx context.Context) (int, error) {
	if d.synapses == nil {
		return 0, fmt.Errorf("%w: %s ProcessInbox before PreDeploySynapses", ErrStage, d.name)
	}
	synapses, replies := d.inbox.take()
	for _, r := range synapses {
		if err := d.applySynapse(r); err != nil {
			return 0, err
		}
	}
	for _, r := range replies {
		if err := d.applyReply(r); err != nil {
			return 0, err
		}
	}
	if err := d.flush(ctx); err != nil {
		return 0, err
	}
	if n := len(synapses) + len(replies); n > 0 {
		d.publishStatus()
		return n, nil
	}
	return 0, nil
}

func (d *Domain) applySynapse(r packet.SynapseRequest) error {
	if r.PreDomain == d.index || r.PreDomain < 0 {
		return fmt.Errorf("%w: %s got synapse request from domain %d", ErrProtocol, d.name, r.PreDomain)
	}
	l, err := d.localLayer(r.PostLayer)
	if err != nil {
		return err
	}
	if !l.Contains(int(r.PostX), int(r.PostY)) {
		return fmt.Errorf("%w: %s layer %s has no neuron (%d,%d)", ErrProtocol, d.name, l.Name(), r.PostX, r.PostY)
	}

	receiver, _ := d.receiver.Lookup(r.PreDomain, r.PreNeuron)
	if receiver == index.NotFound {
		receiver, err = d.neurons.AllocateRemote(r.PreFlags & model.FlagInhibitory)
		if err != nil {
			return fmt.Errorf("domain %s: allocate receiver: %w", d.name, err)
		}
		slot, _ := d.receiver.Add(r.PreDomain, r.PreNeuron, receiver)
		d.reply(r.PreDomain, packet.ReceiverReply{
			PostDomain:      d.index,
			PreNeuron:       r.PreNeuron,
			ReceiverAddress: receiver,
			ReceiverSlot:    slot,
		})
		d.dirty = true
	} else {
		d.stats.ReceiverIndexAgain++
		if d.metrics != nil {
			d.metrics.IncrementIndexAgain(d.name, "receiver")
		}
	}

	level := r.Level
	if level == 0 {
		level = DefaultLevel
	}
	if err := d.appendSynapse(receiver, l.Address(int(r.PostX), int(r.PostY)), level); err != nil {
		return err
	}
	d.stats.RemoteSynapsesAdded++
	return nil
}

func (d *Domain) reply(to int32, r packet.ReceiverReply) {
	batch, ok := d.replyOut[to]
	if !ok {
		batch = &packet.ReceiverVector{Origin: d.index}
		d.replyOut[to] = batch
	}
	batch.Append(r)
}

func (d *Domain) applyReply(r packet.ReceiverReply) error {
	if r.PostDomain == d.index || r.PostDomain < 0 {
		return fmt.Errorf("%w: %s got receiver index from domain %d", ErrProtocol, d.name, r.PostDomain)
	}
	if !d.neurons.Valid(r.PreNeuron) || !d.neurons.Flags.Data[r.PreNeuron].Has(model.FlagTransmitter) {
		return fmt.Errorf("%w: %s neuron %d is not a transmitter", ErrProtocol, d.name, r.PreNeuron)
	}
	if !d.transmitter.Add(r.PreNeuron, r.PostDomain, r.ReceiverAddress, r.ReceiverSlot) {
		d.stats.TransmitterIndexAgain++
		d.logger.Debug("transmitter index again", "neuron", r.PreNeuron, "peer", r.PostDomain, "receiver", r.ReceiverAddress)
		if d.metrics != nil {
			d.metrics.IncrementIndexAgain(d.name, "transmitter")
		}
	}
	return nil
}

// flush sends every buffered synapse request and receiver index reply.
func (d *Domain) flush(ctx context.Context) error {
	for _, to := range slices.Sorted(maps.Keys(d.synapseOut)) {
		if err := d.flushSynapses(ctx, to); err != nil {
			return err
		}
	}
	for _, to := range slices.Sorted(maps.Keys(d.replyOut)) {
		batch := d.replyOut[to]
		if batch.Len() == 0 {
			continue
		}
		batch.Tick = d.ticks
		data, err := batch.MarshalBinary()
		if err != nil {
			return fmt.Errorf("domain %s: encode receiver index pack: %w", d.name, err)
		}
		if err := d.transport.SendReceiverIndexPack(ctx, to, data); err != nil {
			return fmt.Errorf("domain %s: send receiver index pack to %d: %w", d.name, to, err)
		}
		batch.Reset()
	}
	return nil
}

func (d *Domain) flushSynapses(ctx context.Context, to int32) error {
	batch := d.synapseOut[to]
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	batch.Tick = d.ticks
	data, err := batch.MarshalBinary()
	if err != nil {
		return fmt.Errorf("domain %s: encode synapse pack: %w", d.name, err)
	}
	if err := d.transport.SendSynapsePack(ctx, to, data); err != nil {
		return fmt.Errorf("domain %s: send synapse pack to %d: %w", d.name, to, err)
	}
	if d.metrics != nil {
		d.metrics.AddSynapsesSent(d.name, batch.Len())
	}
	batch.Reset()
	return nil
}
