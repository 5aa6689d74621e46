package packet

// ReceiverReply tells the pre domain which receiver slot of the post domain
// stands in for one of its neurons.
type ReceiverReply struct {
	PostDomain      int32
	PreNeuron       int32
	ReceiverAddress int32
	ReceiverSlot    int32
}

const receiverColumns = 4

// ReceiverVector is a batch of receiver index replies.
type ReceiverVector struct {
	Origin  int32
	Tick    int64
	Records []ReceiverReply
}

func (v *ReceiverVector) Append(r ReceiverReply) {
	v.Records = append(v.Records, r)
}

func (v *ReceiverVector) Len() int {
	return len(v.Records)
}

func (v *ReceiverVector) Reset() {
	v.Records = v.Records[:0]
}

func (v *ReceiverVector) MarshalBinary() ([]byte, error) {
	n := len(v.Records)
	w := columnWriter{buf: make([]byte, 0, headerSize+n*receiverColumns*4)}
	w.buf = appendHeader(w.buf, Header{Kind: KindReceiver, Origin: v.Origin, Tick: v.Tick, Length: uint32(n)})
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PostDomain) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].PreNeuron) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].ReceiverAddress) })
	w.uint32s(n, func(i int) uint32 { return uint32(v.Records[i].ReceiverSlot) })
	return w.buf, nil
}

func (v *ReceiverVector) UnmarshalBinary(data []byte) error {
	h, body, err := readHeader(data, KindReceiver, receiverColumns)
	if err != nil {
		return err
	}
	n := int(h.Length)
	records := make([]ReceiverReply, n)
	r := columnReader{body: body, n: n}
	r.uint32s(func(i int, x uint32) { records[i].PostDomain = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].PreNeuron = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].ReceiverAddress = int32(x) })
	r.uint32s(func(i int, x uint32) { records[i].ReceiverSlot = int32(x) })
	v.Origin = h.Origin
	v.Tick = h.Tick
	v.Records = records
	return nil
}
