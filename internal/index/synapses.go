package index

import "fmt"

// Synapses maps a neuron address to the addresses of the synapses whose key
// column (pre or post) equals it. The compacted part is stored CSR-style;
// entries added since the last Shrink live in an overflow map and are
// merged by the next Shrink.
type Synapses struct {
	name     string
	offsets  []int32
	synapses []int32
	pending  map[int32][]int32
	entries  int
}

func NewSynapses(name string) *Synapses {
	return &Synapses{name: name, pending: make(map[int32][]int32)}
}

// Build replaces the index with the adjacency of keys, where keys[s] is the
// key neuron of synapse s.
func (x *Synapses) Build(keys []int32, neurons int) error {
	counts := make([]int32, neurons+1)
	for s, key := range keys {
		if key < 0 || int(key) >= neurons {
			return fmt.Errorf("%s index: synapse %d references neuron %d outside [0, %d)", x.name, s, key, neurons)
		}
		counts[key+1]++
	}
	for i := 1; i <= neurons; i++ {
		counts[i] += counts[i-1]
	}
	out := make([]int32, len(keys))
	cursor := append([]int32(nil), counts[:neurons]...)
	for s, key := range keys {
		out[cursor[key]] = int32(s)
		cursor[key]++
	}
	x.offsets = counts
	x.synapses = out
	x.pending = make(map[int32][]int32)
	x.entries = len(keys)
	return nil
}

// Add records synapse under key without rebuilding the compacted part.
func (x *Synapses) Add(key, synapse int32) {
	x.pending[key] = append(x.pending[key], synapse)
	x.entries++
}

// Shrink merges pending entries into the compacted arrays.
func (x *Synapses) Shrink() {
	if len(x.pending) == 0 {
		return
	}
	neurons := len(x.offsets) - 1
	for key := range x.pending {
		neurons = max(neurons, int(key)+1)
	}
	neurons = max(neurons, 0)
	offsets := make([]int32, neurons+1)
	out := make([]int32, 0, x.entries)
	for key := 0; key < neurons; key++ {
		offsets[key] = int32(len(out))
		out = append(out, x.compacted(int32(key))...)
		out = append(out, x.pending[int32(key)]...)
	}
	offsets[neurons] = int32(len(out))
	x.offsets = offsets
	x.synapses = out
	x.pending = make(map[int32][]int32)
}

func (x *Synapses) compacted(key int32) []int32 {
	if key < 0 || int(key) >= len(x.offsets)-1 {
		return nil
	}
	return x.synapses[x.offsets[key]:x.offsets[key+1]]
}

// Lookup returns the synapse addresses indexed under key. The returned
// slice must not be modified.
func (x *Synapses) Lookup(key int32) []int32 {
	base := x.compacted(key)
	extra := x.pending[key]
	if len(extra) == 0 {
		return base
	}
	out := make([]int32, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// Len is the number of indexed synapses.
func (x *Synapses) Len() int {
	return x.entries
}

func (x *Synapses) Pending() int {
	n := 0
	for _, list := range x.pending {
		n += len(list)
	}
	return n
}
