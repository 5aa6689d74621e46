package domain

import (
	"context"
	"fmt"

	"spikenet/internal/device"
	"spikenet/internal/index"
	"spikenet/internal/layer"
	"spikenet/internal/vector"
)

// Stage is the last completed deployment step of a domain.
type Stage int

const (
	StageNew Stage = iota
	StageLayers
	StageNeurons
	StagePreSynapses
	StageSynapses
	StagePostSynapses
	StageIndexes
	StageDevice
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageLayers:
		return "layers"
	case StageNeurons:
		return "neurons"
	case StagePreSynapses:
		return "pre_synapses"
	case StageSynapses:
		return "synapses"
	case StagePostSynapses:
		return "post_synapses"
	case StageIndexes:
		return "indexes"
	case StageDevice:
		return "device"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (d *Domain) expect(from Stage, op string) error {
	if d.stage != from {
		return fmt.Errorf("%w: %s %s needs stage %s, at %s", ErrStage, d.name, op, from, d.stage)
	}
	return nil
}

func (d *Domain) advance(to Stage) {
	d.stage = to
	d.logger.Info("deploy stage completed", "stage", to.String())
	if d.metrics != nil {
		d.metrics.SetDeployStage(d.name, int(to))
	}
	d.publishStatus()
}

// DeployLayers creates the local layers and their parameter rows.
func (d *Domain) DeployLayers() error {
	if err := d.expect(StageNew, "DeployLayers"); err != nil {
		return err
	}
	d.layerParams = vector.NewLayers()
	d.layers = make([]*layer.Layer, 0, len(d.spec.Layers))
	for i, spec := range d.spec.Layers {
		if _, exists := d.byName[spec.Name]; exists {
			return fmt.Errorf("domain %s: duplicate layer %s", d.name, spec.Name)
		}
		l := layer.New(int32(i), spec)
		if err := l.Register(d.layerParams); err != nil {
			return fmt.Errorf("domain %s: %w", d.name, err)
		}
		d.layers = append(d.layers, l)
		d.byName[spec.Name] = l
	}
	d.advance(StageLayers)
	return nil
}

// DeployNeurons reserves the neurons of every local layer and seals the
// local region. Later rows are receiver slots.
func (d *Domain) DeployNeurons() error {
	if err := d.expect(StageLayers, "DeployNeurons"); err != nil {
		return err
	}
	d.neurons = vector.NewNeurons(d.spec.Capacity)
	for _, l := range d.layers {
		if err := l.CreateNeurons(d.neurons, d.layerParams); err != nil {
			return fmt.Errorf("domain %s: %w", d.name, err)
		}
	}
	d.neurons.Seal()
	d.advance(StageNeurons)
	return nil
}

// PreDeploySynapses resolves the connect rules against the atlas and
// allocates the synapse vector and routing indexes.
func (d *Domain) PreDeploySynapses() error {
	if err := d.expect(StageNeurons, "PreDeploySynapses"); err != nil {
		return err
	}
	rules, err := d.resolveRules()
	if err != nil {
		return err
	}
	d.rules = rules
	d.synapses = vector.NewSynapses(d.spec.Capacity)
	d.transmitter = index.NewTransmitter()
	d.receiver = index.NewReceiver()
	d.preIndex = index.NewSynapses("pre")
	d.postIndex = index.NewSynapses("post")
	d.advance(StagePreSynapses)
	return nil
}

// DeploySynapses runs ConnectLayers and flushes the outbound synapse
// requests.
func (d *Domain) DeploySynapses(ctx context.Context) error {
	if err := d.expect(StagePreSynapses, "DeploySynapses"); err != nil {
		return err
	}
	if err := d.ConnectLayers(ctx); err != nil {
		return err
	}
	if err := d.flush(ctx); err != nil {
		return err
	}
	d.advance(StageSynapses)
	return nil
}

// PostDeploySynapses applies the synapse requests and receiver index
// replies received so far. It may be called repeatedly until the network
// is quiescent.
func (d *Domain) PostDeploySynapses(ctx context.Context) error {
	if d.stage != StagePostSynapses {
		if err := d.expect(StageSynapses, "PostDeploySynapses"); err != nil {
			return err
		}
	}
	if _, err := d.ProcessInbox(ctx); err != nil {
		return err
	}
	if d.stage != StagePostSynapses {
		d.advance(StagePostSynapses)
	}
	return nil
}

// DeployIndexes builds the pre and post synapse adjacency indexes. Synapses
// added afterwards are inserted incrementally.
func (d *Domain) DeployIndexes() error {
	if err := d.expect(StagePostSynapses, "DeployIndexes"); err != nil {
		return err
	}
	n := d.neurons.Len()
	if err := d.preIndex.Build(d.synapses.Pre.Data, n); err != nil {
		return fmt.Errorf("domain %s: %w", d.name, err)
	}
	if err := d.postIndex.Build(d.synapses.Post.Data, n); err != nil {
		return fmt.Errorf("domain %s: %w", d.name, err)
	}
	d.advance(StageIndexes)
	return nil
}

// DeployDevice creates the device buffers and uploads every vector.
func (d *Domain) DeployDevice() error {
	if err := d.expect(StageIndexes, "DeployDevice"); err != nil {
		return err
	}
	policy, err := device.ResolvePolicy(d.network.Learn.Policy)
	if err != nil {
		return fmt.Errorf("domain %s: %w", d.name, err)
	}
	d.policy = policy
	for _, v := range d.vectors() {
		if err := d.device.CreateDeviceDataPointer(v); err != nil {
			return fmt.Errorf("domain %s: create device buffer %s: %w", d.name, v.Name(), err)
		}
		if err := d.device.ToDevice(v); err != nil {
			return fmt.Errorf("domain %s: upload %s: %w", d.name, v.Name(), err)
		}
	}
	d.state = device.State{
		Neurons:     d.neurons,
		Layers:      d.layerParams,
		Synapses:    d.synapses,
		PreIndex:    d.preIndex,
		PostIndex:   d.postIndex,
		Transmitter: d.transmitter,
		Receiver:    d.receiver,
		Learn:       d.network.Learn,
		Policy:      d.policy,
	}
	d.logger.Info("domain deployed",
		"device", d.device.Name(),
		"neurons", d.neurons.Len(),
		"receivers", d.receiver.Len(),
		"transmitters", d.transmitter.Len(),
		"synapses", d.synapses.Len())
	d.advance(StageDevice)
	return nil
}

// Deploy runs every stage of a domain that has no peers. Multi-domain
// networks are deployed by the network driver, which interleaves the
// stages of all domains.
func (d *Domain) Deploy(ctx context.Context) error {
	steps := []func() error{
		d.DeployLayers,
		d.DeployNeurons,
		d.PreDeploySynapses,
		func() error { return d.DeploySynapses(ctx) },
		func() error { return d.PostDeploySynapses(ctx) },
		d.DeployIndexes,
		d.DeployDevice,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Domain) vectors() []*vector.Vector {
	return []*vector.Vector{d.neurons.Vector, d.layerParams.Vector, d.synapses.Vector}
}

func (d *Domain) localLayer(idx int32) (*layer.Layer, error) {
	if idx < 0 || int(idx) >= len(d.layers) {
		return nil, fmt.Errorf("%w: %s has no layer %d", ErrProtocol, d.name, idx)
	}
	return d.layers[idx], nil
}
