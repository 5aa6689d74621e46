package packet

import "spikenet/internal/model"

// SynapseRequest asks the post domain to connect a local neuron to a
// neuron owned by the requesting (pre) domain.
type SynapseRequest struct {
	PreDomain int32
	PreLayer  int32
	PreNeuron int32
	PostLayer int32
	PostX     int32
	PostY     int32
	Level     float32
	PreFlags  model.Flags
}

const transmitterColumns = 8

// TransmitterVector is a batch of synapse requests sent by a transmitting
// domain to one peer.
type TransmitterVector struct {
	Origin  int32
	Tick    int64
	Records []SynapseRequest
}

func (v *TransmitterVector) Append(r SynapseRequest) {
	v.Records = append(v.Records, r)
}

func (v *TransmitterVector) Len() int {
	return len(v.Records)
}

func (v *TransmitterVector) Reset() {
	v.Records = v.Records[:0]
}

func (v *TransmitterVector) MarshalBinary() ([]byte, error) {
	n := len(v.Records)
	w := columnWriter{buf: make([]byte, 0, headerSize+n*transmitterColumns*4)}
	w.buf = appendHeader(w.buf, Header{Kind: KindTransmitter, Origin: v.Origin, Tick: v.Tick, Length: uint32(n)})
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PreDomain) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PreLayer) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PreNeuron) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PostLayer) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PostX) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PostY) })
	w.uint32s(n, func(i int) uint32 { return f32bits(v.Records[i].Level) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PreFlags) })
	return w.buf, nil
}

func (v *TransmitterVector) UnmarshalBinary(data []byte) error {
	h, body, err := readHeader(data, KindTransmitter, transmitterColumns)
	if err != nil {
		return err
	}
	n := int(h.Length)
	records := make([]SynapseRequest, n)
	r := columnReader{body: body, n: n}
	r.uint32s(func(i int, x uint32) { records[i].PreDomain = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].PreLayer = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].PreNeuron = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].PostLayer = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].PostX = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].PostY = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].Level = f32frombits(x) })
	r.uint32s(func(i int, x uint32) { records[i].PreFlags = model.Flags(x) })
	v.Origin = h.Origin
	v.Tick = h.Tick
	v.Records = records
	return nil
}
