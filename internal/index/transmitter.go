package index

import (
	"slices"

	"spikenet/internal/model"
)

type transmitterKey struct {
	local         int32
	remoteDomain  int32
	remoteAddress int32
}

// Transmitter routes spikes of local transmitter neurons to receiver slots
// in other domains. One local neuron may own many entries, one per remote
// receiver it feeds.
type Transmitter struct {
	Local         []int32
	RemoteDomain  []int32
	RemoteAddress []int32
	RemoteSlot    []int32
	Flags         []model.Flags

	keys map[transmitterKey]int32
}

func NewTransmitter() *Transmitter {
	return &Transmitter{keys: make(map[transmitterKey]int32)}
}

// Add registers a route and reports false when the same route already exists.
func (x *Transmitter) Add(local, remoteDomain, remoteAddress, remoteSlot int32) bool {
	key := transmitterKey{local: local, remoteDomain: remoteDomain, remoteAddress: remoteAddress}
	if _, exists := x.keys[key]; exists {
		return false
	}
	x.keys[key] = int32(len(x.Local))
	x.Local = append(x.Local, local)
	x.RemoteDomain = append(x.RemoteDomain, remoteDomain)
	x.RemoteAddress = append(x.RemoteAddress, remoteAddress)
	x.RemoteSlot = append(x.RemoteSlot, remoteSlot)
	x.Flags = append(x.Flags, 0)
	return true
}

func (x *Transmitter) Len() int {
	return len(x.Local)
}

// Domains returns the distinct remote domains this index routes to, in
// ascending order.
func (x *Transmitter) Domains() []int32 {
	out := slices.Clone(x.RemoteDomain)
	slices.Sort(out)
	return slices.Compact(out)
}
