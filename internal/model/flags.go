package model

import "strings"

// Flags are bit-flags encoding the binary state of neurons and index entries.
type Flags uint32

const (
	// FlagTransmitter marks a neuron with at least one synapse into another domain.
	FlagTransmitter Flags = 1 << iota

	// FlagReceiver marks a local proxy slot for a neuron owned by another domain.
	FlagReceiver

	// FlagSpiked is set for the tick in which the neuron fired.
	FlagSpiked

	// FlagDead marks a neuron (or index entry) that no longer takes part in the simulation.
	FlagDead

	// FlagInhibitory makes outgoing synapses subtract their level from the post neuron.
	FlagInhibitory
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagTransmitter, "transmitter"},
	{FlagReceiver, "receiver"},
	{FlagSpiked, "spiked"},
	{FlagDead, "dead"},
	{FlagInhibitory, "inhibitory"},
}

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

func (f *Flags) Set(flag Flags) {
	*f |= flag
}

func (f *Flags) Clear(flag Flags) {
	*f &^= flag
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	parts := make([]string, 0, len(flagNames))
	for _, item := range flagNames {
		if f.Has(item.flag) {
			parts = append(parts, item.name)
		}
	}
	return strings.Join(parts, "|")
}
