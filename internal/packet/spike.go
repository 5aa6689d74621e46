package packet

const spikeColumns = 1

// SpikeVector carries the receiver slots of one peer that fired at Tick in
// the origin domain.
type SpikeVector struct {
	Origin int32
	Tick   int64
	Slots  []int32
}

func (v *SpikeVector) Append(slot int32) {
	v.Slots = append(v.Slots, slot)
}

func (v *SpikeVector) Len() int {
	return len(v.Slots)
}

func (v *SpikeVector) Reset() {
	v.Slots = v.Slots[:0]
}

func (v *SpikeVector) MarshalBinary() ([]byte, error) {
	n := len(v.Slots)
	w := columnWriter{buf: make([]byte, 0, headerSize+n*4)}
	w.buf = appendHeader(w.buf, Header{Kind: KindSpike, Origin: v.Origin, Tick: v.Tick, Length: uint32(n)})
	w.uint32s(n, func(i int) uint32 { return uint32(v.Slots[i]) })
	return w.buf, nil
}

func (v *SpikeVector) UnmarshalBinary(data []byte) error {
	h, body, err := readHeader(data, KindSpike, spikeColumns)
	if err != nil {
		return err
	}
	slots := make([]int32, h.Length)
	r := columnReader{body: body, n: int(h.Length)}
	r.uint32s(func(i int, x uint32) { slots[i] = int32(x) })
	v.Origin = h.Origin
	v.Tick = h.Tick
	v.Slots = slots
	return nil
}
