package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	Magic   uint16 = 0x5350
	Version uint8  = 1

	headerSize = 20
)

type Kind uint8

const (
	KindTransmitter Kind = iota + 1
	KindReceiver
	KindSpike
)

func (k Kind) String() string {
	switch k {
	case KindTransmitter:
		return "transmitter"
	case KindReceiver:
		return "receiver"
	case KindSpike:
		return "spike"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrShortPacket = errors.New("packet too short")
	ErrBadMagic    = errors.New("packet magic mismatch")
	ErrBadVersion  = errors.New("packet version mismatch")
	ErrWrongKind   = errors.New("packet kind mismatch")
)

// Header precedes every packet. Length is the number of records that follow
// as column-major little endian 32-bit arrays.
//
//	magic:u16 kind:u8 version:u8 origin:i32 tick:i64 length:u32
type Header struct {
	Kind   Kind
	Origin int32
	Tick   int64
	Length uint32
}

func appendHeader(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, Magic)
	dst = append(dst, byte(h.Kind), Version)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Origin))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(h.Tick))
	return binary.LittleEndian.AppendUint32(dst, h.Length)
}

// PeekHeader decodes the header of a packet without touching the body.
func PeekHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	if magic := binary.LittleEndian.Uint16(data[0:2]); magic != Magic {
		return Header{}, fmt.Errorf("%w: %#04x", ErrBadMagic, magic)
	}
	if data[3] != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrBadVersion, data[3])
	}
	return Header{
		Kind:   Kind(data[2]),
		Origin: int32(binary.LittleEndian.Uint32(data[4:8])),
		Tick:   int64(binary.LittleEndian.Uint64(data[8:16])),
		Length: binary.LittleEndian.Uint32(data[16:20]),
	}, nil
}

func readHeader(data []byte, kind Kind, columns int) (Header, []byte, error) {
	h, err := PeekHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	if h.Kind != kind {
		return Header{}, nil, fmt.Errorf("%w: want %s got %s", ErrWrongKind, kind, h.Kind)
	}
	body := data[headerSize:]
	if want := int(h.Length) * columns * 4; len(body) != want {
		return Header{}, nil, fmt.Errorf("%w: %s body has %d bytes, want %d", ErrShortPacket, kind, len(body), want)
	}
	return h, body, nil
}

type columnWriter struct {
	buf []byte
}

func (w *columnWriter) uint32s(n int, at func(i int) uint32) {
	for i := 0; i < n; i++ {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, at(i))
	}
}

type columnReader struct {
	body []byte
	n    int
}

func (r *columnReader) uint32s(set func(i int, v uint32)) {
	for i := 0; i < r.n; i++ {
		set(i, binary.LittleEndian.Uint32(r.body[i*4:]))
	}
	r.body = r.body[r.n*4:]
}

func f32bits(v float32) uint32 {
	return math.Float32bits(v)
}

func f32frombits(v uint32) float32 {
	return math.Float32frombits(v)
}
