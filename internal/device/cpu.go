package device

import (
	"fmt"
	"sync/atomic"

	"github.com/chewxy/math32"

	"spikenet/internal/model"
	"spikenet/internal/vector"
)

const cpuName = "cpu"

type hostBuffer struct{}

func (hostBuffer) DeviceName() string { return cpuName }

// CPU runs the kernels on the host. Device buffers alias the host vectors,
// so transfers only account for the bytes that would cross the boundary.
type CPU struct {
	toDevice   atomic.Int64
	fromDevice atomic.Int64
}

func NewCPU() *CPU {
	return &CPU{}
}

func (c *CPU) Name() string {
	return cpuName
}

func (c *CPU) CreateDeviceDataPointer(v *vector.Vector) error {
	v.SetDeviceBuffer(hostBuffer{})
	return nil
}

func (c *CPU) ToDevice(v *vector.Vector) error {
	if v.DeviceBuffer() == nil {
		return fmt.Errorf("%w: %s", ErrNoDevicePointer, v.Name())
	}
	c.toDevice.Add(v.ByteSize())
	return nil
}

func (c *CPU) FromDevice(v *vector.Vector) error {
	if v.DeviceBuffer() == nil {
		return fmt.Errorf("%w: %s", ErrNoDevicePointer, v.Name())
	}
	c.fromDevice.Add(v.ByteSize())
	return nil
}

// Transferred reports the bytes copied to and from the device so far.
func (c *CPU) Transferred() (to, from int64) {
	return c.toDevice.Load(), c.fromDevice.Load()
}

func (c *CPU) TickNeurons(s *State) error {
	n := s.Neurons
	levels, flags, ticks := n.Level.Data, n.Flags.Data, n.Tick.Data
	owners, vitality := n.Layer.Data, n.Vitality.Data
	l := s.Layers
	s.Died = s.Died[:0]

	for i := range levels {
		f := flags[i]
		if f.Has(model.FlagDead) || f.Has(model.FlagReceiver) {
			continue
		}
		owner := owners[i]
		if owner < 0 || int(owner) >= l.Len() {
			return fmt.Errorf("neuron %d references layer %d outside [0, %d)", i, owner, l.Len())
		}
		cost := l.SpikeCost.Data[owner]
		f.Clear(model.FlagSpiked)

		if levels[i] >= l.Threshold.Data[owner] {
			f.Set(model.FlagSpiked)
			levels[i] = 0
			ticks[i] = s.Tick
			if cost > 0 {
				vitality[i] -= cost
				if vitality[i] <= 0 {
					vitality[i] = 0
					f.Clear(model.FlagSpiked)
					f.Set(model.FlagDead)
					s.Died = append(s.Died, int32(i))
				}
			}
		} else {
			levels[i] = math32.Max(0, levels[i]-l.Relaxation.Data[owner])
			if cost > 0 {
				vitality[i] = math32.Min(l.MaxVitality.Data[owner], vitality[i]+1)
			}
		}
		flags[i] = f
	}
	return nil
}

func (c *CPU) TickReceiverIndex(s *State) error {
	flags, ticks := s.Neurons.Flags.Data, s.Neurons.Tick.Data
	r := s.Receiver
	for slot, local := range r.LocalAddress {
		if int(local) >= len(flags) {
			return fmt.Errorf("receiver slot %d references neuron %d outside [0, %d)", slot, local, len(flags))
		}
		if flags[local].Has(model.FlagDead) {
			continue
		}
		if r.Flags[slot].Has(model.FlagSpiked) {
			flags[local].Set(model.FlagSpiked)
			ticks[local] = s.Tick
		} else {
			flags[local].Clear(model.FlagSpiked)
		}
	}
	return nil
}

func (c *CPU) TickTransmitterIndex(s *State) error {
	flags := s.Neurons.Flags.Data
	x := s.Transmitter
	for i, local := range x.Local {
		if int(local) >= len(flags) {
			return fmt.Errorf("transmitter entry %d references neuron %d outside [0, %d)", i, local, len(flags))
		}
		nf := flags[local]
		if nf.Has(model.FlagDead) {
			x.Flags[i].Set(model.FlagDead)
		}
		if nf.Has(model.FlagSpiked) && !nf.Has(model.FlagDead) {
			x.Flags[i].Set(model.FlagSpiked)
		} else {
			x.Flags[i].Clear(model.FlagSpiked)
		}
	}
	return nil
}

func (c *CPU) TickSynapses(s *State) error {
	n := s.Neurons
	levels, flags, ticks := n.Level.Data, n.Flags.Data, n.Tick.Data
	syn := s.Synapses
	weights, posts := syn.Level.Data, syn.Post.Data
	learn := s.Learn.LearnRate != 0 && s.Policy != nil

	for _, dead := range s.Died {
		tombstone(weights, s.PreIndex.Lookup(dead))
		tombstone(weights, s.PostIndex.Lookup(dead))
	}

	for pre := range flags {
		pf := flags[pre]
		if !pf.Has(model.FlagSpiked) || pf.Has(model.FlagDead) {
			continue
		}
		for _, address := range s.PreIndex.Lookup(int32(pre)) {
			weight := weights[address]
			if weight == 0 {
				continue
			}
			post := posts[address]
			if flags[post].Has(model.FlagDead) {
				weights[address] = 0
				continue
			}
			// Input stays signed here. TickNeurons clamps at zero.
			if pf.Has(model.FlagInhibitory) {
				levels[post] -= weight
			} else {
				levels[post] += weight
			}
			if !learn || ticks[post] == vector.NeverSpiked {
				continue
			}
			delta := ticks[pre] - ticks[post]
			if delta < 0 {
				delta = -delta
			}
			weights[address] = settle(s.Policy.Update(weight, delta, s.Learn), s.Learn)
		}
	}
	return nil
}

func tombstone(weights []float32, addresses []int32) {
	for _, address := range addresses {
		weights[address] = 0
	}
}
