package vector

import "spikenet/internal/model"

// Synapses holds directed weighted edges between local neuron addresses.
// The row index is the synapse address; a zero level is a tombstone.
type Synapses struct {
	*Vector
	Pre   *Column[int32]
	Post  *Column[int32]
	Level *Column[float32]
}

func NewSynapses(limit int) *Synapses {
	v := New("synapses", limit)
	return &Synapses{
		Vector: v,
		Pre:    mustColumn[int32](v, "pre"),
		Post:   mustColumn[int32](v, "post"),
		Level:  mustColumn[float32](v, "level"),
	}
}

func (s *Synapses) Append(pre, post int32, level float32) (int32, error) {
	address, err := s.Extend(1)
	if err != nil {
		return 0, err
	}
	s.Pre.Data[address] = pre
	s.Post.Data[address] = post
	s.Level.Data[address] = level
	return int32(address), nil
}

// Live counts synapses that are not tombstoned.
func (s *Synapses) Live() int {
	live := 0
	for _, level := range s.Level.Data {
		if level != 0 {
			live++
		}
	}
	return live
}

func (s *Synapses) State() model.SynapseState {
	return model.SynapseState{
		Pre:    append([]int32(nil), s.Pre.Data...),
		Post:   append([]int32(nil), s.Post.Data...),
		Levels: append([]float32(nil), s.Level.Data...),
	}
}
