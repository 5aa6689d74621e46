package index

import "spikenet/internal/model"

// NotFound is returned by lookups for origins that have no receiver yet.
const NotFound int32 = -1

type receiverKey struct {
	originDomain  int32
	originAddress int32
}

// Receiver maps (origin domain, origin neuron) pairs to local receiver
// neurons. There is at most one slot per origin pair.
type Receiver struct {
	OriginDomain  []int32
	OriginAddress []int32
	LocalAddress  []int32
	Flags         []model.Flags

	slots map[receiverKey]int32
}

func NewReceiver() *Receiver {
	return &Receiver{slots: make(map[receiverKey]int32)}
}

// Lookup returns the local receiver address and slot for an origin pair,
// or NotFound for both.
func (x *Receiver) Lookup(originDomain, originAddress int32) (address, slot int32) {
	slot, ok := x.slots[receiverKey{originDomain: originDomain, originAddress: originAddress}]
	if !ok {
		return NotFound, NotFound
	}
	return x.LocalAddress[slot], slot
}

func (x *Receiver) GetLocalAddress(originDomain, originAddress int32) int32 {
	address, _ := x.Lookup(originDomain, originAddress)
	return address
}

// Add registers a receiver and returns its slot. The second result is false
// when the origin pair was already registered; the existing slot is returned.
func (x *Receiver) Add(originDomain, originAddress, local int32) (int32, bool) {
	key := receiverKey{originDomain: originDomain, originAddress: originAddress}
	if slot, exists := x.slots[key]; exists {
		return slot, false
	}
	slot := int32(len(x.LocalAddress))
	x.slots[key] = slot
	x.OriginDomain = append(x.OriginDomain, originDomain)
	x.OriginAddress = append(x.OriginAddress, originAddress)
	x.LocalAddress = append(x.LocalAddress, local)
	x.Flags = append(x.Flags, 0)
	return slot, true
}

func (x *Receiver) Len() int {
	return len(x.LocalAddress)
}

// Mark flags a slot as spiked. Out of range slots report false.
func (x *Receiver) Mark(slot int32) bool {
	if slot < 0 || int(slot) >= len(x.Flags) {
		return false
	}
	x.Flags[slot].Set(model.FlagSpiked)
	return true
}

func (x *Receiver) ClearFlags() {
	for i := range x.Flags {
		x.Flags[i].Clear(model.FlagSpiked)
	}
}
