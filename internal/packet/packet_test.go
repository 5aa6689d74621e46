package packet

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spikenet/internal/model"
)

func TestTransmitterVectorRoundTrip(t *testing.T) {
	in := TransmitterVector{Origin: 2, Tick: 41}
	in.Append(SynapseRequest{PreDomain: 2, PreLayer: 0, PreNeuron: 17, PostLayer: 1, PostX: 3, PostY: 4, Level: 0.25})
	in.Append(SynapseRequest{PreDomain: 2, PreLayer: 1, PreNeuron: -1, PostLayer: 0, PostX: 0, PostY: 9, Level: -1.5, PreFlags: model.FlagInhibitory})

	data, err := in.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, headerSize+2*transmitterColumns*4)

	var out TransmitterVector
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, in, out)
}

func TestReceiverVectorRoundTrip(t *testing.T) {
	in := ReceiverVector{Origin: 1}
	for i := int32(0); i < 5; i++ {
		in.Append(ReceiverReply{PostDomain: 1, PreNeuron: i * 3, ReceiverAddress: 100 + i, ReceiverSlot: i})
	}
	data, err := in.MarshalBinary()
	require.NoError(t, err)

	var out ReceiverVector
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, in, out)
}

func TestSpikeVectorRoundTrip(t *testing.T) {
	in := SpikeVector{Origin: 0, Tick: 1 << 40, Slots: []int32{0, 5, 2}}
	data, err := in.MarshalBinary()
	require.NoError(t, err)

	var out SpikeVector
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, in, out)
}

func TestEmptyVectorRoundTrip(t *testing.T) {
	in := SpikeVector{Origin: 3, Tick: 7}
	data, err := in.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, headerSize)

	var out SpikeVector
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, int32(3), out.Origin)
	assert.Empty(t, out.Slots)
}

func TestUnmarshalRejectsMalformedPackets(t *testing.T) {
	in := SpikeVector{Origin: 0, Slots: []int32{1, 2}}
	data, err := in.MarshalBinary()
	require.NoError(t, err)

	var spikes SpikeVector
	assert.ErrorIs(t, spikes.UnmarshalBinary(data[:10]), ErrShortPacket)
	assert.ErrorIs(t, spikes.UnmarshalBinary(data[:len(data)-1]), ErrShortPacket)

	var receivers ReceiverVector
	assert.ErrorIs(t, receivers.UnmarshalBinary(data), ErrWrongKind)

	bad := append([]byte(nil), data...)
	binary.LittleEndian.PutUint16(bad, 0xffff)
	assert.ErrorIs(t, spikes.UnmarshalBinary(bad), ErrBadMagic)

	bad = append([]byte(nil), data...)
	bad[3] = Version + 1
	assert.ErrorIs(t, spikes.UnmarshalBinary(bad), ErrBadVersion)
}

func TestPeekHeader(t *testing.T) {
	in := ReceiverVector{Origin: 4, Tick: 9}
	in.Append(ReceiverReply{})
	data, err := in.MarshalBinary()
	require.NoError(t, err)

	h, err := PeekHeader(data)
	require.NoError(t, err)
	assert.Equal(t, Header{Kind: KindReceiver, Origin: 4, Tick: 9, Length: 1}, h)
}
