package vector

import (
	"fmt"

	"spikenet/internal/model"
)

// NeverSpiked is the tick recorded for neurons that have not fired yet.
const NeverSpiked int64 = -1

// RemoteLayer is the layer back-reference of receiver slots allocated for
// neurons owned by another domain.
const RemoteLayer int32 = -1

// Neurons is the neuron metadata of one domain. Rows below Local() belong
// to local layers; rows above form the extendable receiver region.
type Neurons struct {
	*Vector
	Level    *Column[float32]
	Flags    *Column[model.Flags]
	Tick     *Column[int64]
	Layer    *Column[int32]
	Vitality *Column[float32]

	local  int
	sealed bool
}

func NewNeurons(limit int) *Neurons {
	v := New("neurons", limit)
	return &Neurons{
		Vector:   v,
		Level:    mustColumn[float32](v, "level"),
		Flags:    mustColumn[model.Flags](v, "flags"),
		Tick:     mustColumn[int64](v, "tick"),
		Layer:    mustColumn[int32](v, "layer"),
		Vitality: mustColumn[float32](v, "vitality"),
	}
}

// Reserve appends count neurons owned by layer and returns the first address.
func (n *Neurons) Reserve(layer int32, count int, vitality float32) (int32, error) {
	if n.sealed {
		return 0, fmt.Errorf("reserve %d neurons for layer %d: local region is sealed", count, layer)
	}
	start, err := n.Extend(count)
	if err != nil {
		return 0, err
	}
	end := start + count
	n.Layer.Fill(start, end, layer)
	n.Tick.Fill(start, end, NeverSpiked)
	n.Vitality.Fill(start, end, vitality)
	n.local = end
	return int32(start), nil
}

// Seal closes the local region; later rows are remote receiver slots.
func (n *Neurons) Seal() {
	n.sealed = true
	n.local = n.Len()
}

func (n *Neurons) Local() int {
	return n.local
}

func (n *Neurons) Remote() int {
	return n.Len() - n.local
}

// AllocateRemote appends one receiver slot in the extendable region.
func (n *Neurons) AllocateRemote(flags model.Flags) (int32, error) {
	if !n.sealed {
		n.Seal()
	}
	start, err := n.Extend(1)
	if err != nil {
		return 0, err
	}
	n.Layer.Data[start] = RemoteLayer
	n.Tick.Data[start] = NeverSpiked
	n.Flags.Data[start] = flags | model.FlagReceiver
	return int32(start), nil
}

func (n *Neurons) Valid(address int32) bool {
	return address >= 0 && int(address) < n.Len()
}

// CountFlag returns how many neurons carry flag.
func (n *Neurons) CountFlag(flag model.Flags) int {
	count := 0
	for _, f := range n.Flags.Data {
		if f.Has(flag) {
			count++
		}
	}
	return count
}

// State copies the neuron columns for persistence.
func (n *Neurons) State() model.NeuronState {
	return model.NeuronState{
		Levels:   append([]float32(nil), n.Level.Data...),
		Flags:    append([]model.Flags(nil), n.Flags.Data...),
		Ticks:    append([]int64(nil), n.Tick.Data...),
		Vitality: append([]float32(nil), n.Vitality.Data...),
	}
}
