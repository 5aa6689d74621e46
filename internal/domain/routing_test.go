package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"spikenet/internal/device"
	"spikenet/internal/domain/mocks"
	"spikenet/internal/index"
	"spikenet/internal/layer"
	"spikenet/internal/model"
	"spikenet/internal/packet"
	"spikenet/internal/vector"
)

// fanSpec has one single-neuron layer per domain and no connect rules.
func fanSpec() model.NetworkSpec {
	return model.NetworkSpec{Domains: []model.DomainSpec{
		{Name: "a", Layers: []model.LayerSpec{{Name: "in", Width: 1, Height: 1, Threshold: 1}}},
		{Name: "b", Layers: []model.LayerSpec{{Name: "out", Width: 2, Height: 2, Threshold: 10}}},
		{Name: "c", Layers: []model.LayerSpec{{Name: "side", Width: 1, Height: 1, Threshold: 1}}},
	}}
}

func newMocked(t *testing.T, spec model.NetworkSpec, idx int) (*Domain, *mocks.MockTransport) {
	t.Helper()
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	atlas, err := layer.NewAtlas(spec)
	require.NoError(t, err)
	d, err := New(idx, spec, atlas, device.NewCPU(), tr)
	require.NoError(t, err)
	require.NoError(t, d.DeployLayers())
	require.NoError(t, d.DeployNeurons())
	require.NoError(t, d.PreDeploySynapses())
	require.NoError(t, d.DeploySynapses(context.Background()))
	return d, tr
}

func TestReceiverDedup(t *testing.T) {
	ctx := context.Background()
	b, tr := newMocked(t, fanSpec(), 1)

	var replies []packet.ReceiverReply
	capture := func(_ context.Context, _ int32, data []byte) error {
		var v packet.ReceiverVector
		require.NoError(t, v.UnmarshalBinary(data))
		assert.Equal(t, int32(1), v.Origin)
		replies = append(replies, v.Records...)
		return nil
	}
	tr.EXPECT().SendReceiverIndexPack(gomock.Any(), int32(0), gomock.Any()).DoAndReturn(capture).Times(1)

	b.SendSynapse(packet.SynapseRequest{PreDomain: 0, PreNeuron: 3, PostLayer: 0, PostX: 0, PostY: 0, Level: 1})
	b.SendSynapse(packet.SynapseRequest{PreDomain: 0, PreNeuron: 3, PostLayer: 0, PostX: 1, PostY: 0, Level: 1})
	n, err := b.ProcessInbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, replies, 1)
	receiver := b.Receiver().GetLocalAddress(0, 3)
	require.NotEqual(t, index.NotFound, receiver)
	assert.Equal(t, packet.ReceiverReply{PostDomain: 1, PreNeuron: 3, ReceiverAddress: receiver, ReceiverSlot: 0}, replies[0])
	assert.True(t, b.Neurons().Flags.Data[receiver].Has(model.FlagReceiver))
	assert.Equal(t, vector.RemoteLayer, b.Neurons().Layer.Data[receiver])

	// A later request for the same origin neuron reuses the receiver and
	// does not reply again.
	b.SendSynapse(packet.SynapseRequest{PreDomain: 0, PreNeuron: 3, PostLayer: 0, PostX: 1, PostY: 1, Level: 1})
	_, err = b.ProcessInbox(ctx)
	require.NoError(t, err)

	assert.Equal(t, receiver, b.Receiver().GetLocalAddress(0, 3))
	assert.Equal(t, 1, b.Receiver().Len())
	assert.Equal(t, 1, b.Neurons().Remote())
	assert.Equal(t, 3, b.Synapses().Len())
	for s := 0; s < b.Synapses().Len(); s++ {
		assert.Equal(t, receiver, b.Synapses().Pre.Data[s])
	}
	assert.Equal(t, int64(2), b.Stats().ReceiverIndexAgain)
	assert.Equal(t, int64(3), b.Stats().RemoteSynapsesAdded)

	// Another origin neuron gets its own receiver and one more reply.
	tr.EXPECT().SendReceiverIndexPack(gomock.Any(), int32(2), gomock.Any()).DoAndReturn(capture).Times(1)
	b.SendSynapse(packet.SynapseRequest{PreDomain: 2, PreNeuron: 3, PostLayer: 0, PostX: 0, PostY: 1, Level: 1})
	_, err = b.ProcessInbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Receiver().Len())
	assert.NotEqual(t, receiver, b.Receiver().GetLocalAddress(2, 3))
	requireConsistent(t, b)
}

func TestReceiverKeepsInhibitorySign(t *testing.T) {
	b, tr := newMocked(t, fanSpec(), 1)
	tr.EXPECT().SendReceiverIndexPack(gomock.Any(), int32(0), gomock.Any()).Return(nil)

	b.SendSynapse(packet.SynapseRequest{PreDomain: 0, PreNeuron: 0, PostLayer: 0, PreFlags: model.FlagInhibitory | model.FlagSpiked})
	_, err := b.ProcessInbox(context.Background())
	require.NoError(t, err)

	receiver := b.Receiver().GetLocalAddress(0, 0)
	flags := b.Neurons().Flags.Data[receiver]
	assert.True(t, flags.Has(model.FlagInhibitory))
	assert.False(t, flags.Has(model.FlagSpiked))
	assert.Equal(t, DefaultLevel, b.Synapses().Level.Data[0])
}

func TestSynapsePackRoundTrip(t *testing.T) {
	b, tr := newMocked(t, fanSpec(), 1)
	tr.EXPECT().SendReceiverIndexPack(gomock.Any(), int32(0), gomock.Any()).Return(nil).Times(1)

	pack := packet.TransmitterVector{Origin: 0}
	for y := int32(0); y < 2; y++ {
		for x := int32(0); x < 2; x++ {
			pack.Append(packet.SynapseRequest{PreDomain: 0, PreNeuron: 0, PostLayer: 0, PostX: x, PostY: y, Level: 2})
		}
	}
	data, err := pack.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, b.SendSynapsePack(data))
	assert.Equal(t, 4, b.Pending())

	require.NoError(t, b.PostDeploySynapses(context.Background()))
	assert.Zero(t, b.Pending())
	assert.Equal(t, 4, b.Synapses().Len())
	assert.Equal(t, 1, b.Receiver().Len())
}

func TestTransmitterFanOut(t *testing.T) {
	a, _ := newMocked(t, fanSpec(), 0)
	a.Neurons().Flags.Data[0].Set(model.FlagTransmitter)

	a.SendReceiverIndex(packet.ReceiverReply{PostDomain: 1, PreNeuron: 0, ReceiverAddress: 4, ReceiverSlot: 0})
	a.SendReceiverIndex(packet.ReceiverReply{PostDomain: 1, PreNeuron: 0, ReceiverAddress: 5, ReceiverSlot: 1})
	a.SendReceiverIndex(packet.ReceiverReply{PostDomain: 2, PreNeuron: 0, ReceiverAddress: 4, ReceiverSlot: 0})
	a.SendReceiverIndex(packet.ReceiverReply{PostDomain: 1, PreNeuron: 0, ReceiverAddress: 4, ReceiverSlot: 0})
	_, err := a.ProcessInbox(context.Background())
	require.NoError(t, err)

	x := a.Transmitter()
	assert.Equal(t, 3, x.Len())
	assert.Equal(t, []int32{0, 0, 0}, x.Local)
	assert.Equal(t, []int32{1, 2}, x.Domains())
	assert.Equal(t, []int32{1, 2}, a.Status().Peers)
	assert.Equal(t, []int32{1, 1, 2}, x.RemoteDomain)
	assert.Equal(t, []int32{4, 5, 4}, x.RemoteAddress)
	assert.Equal(t, int64(1), a.Stats().TransmitterIndexAgain)
}

func TestProtocolViolations(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		apply func(d *Domain)
	}{
		{name: "unknown post layer", apply: func(d *Domain) {
			d.SendSynapse(packet.SynapseRequest{PreDomain: 0, PostLayer: 9})
		}},
		{name: "post outside layer", apply: func(d *Domain) {
			d.SendSynapse(packet.SynapseRequest{PreDomain: 0, PostLayer: 0, PostX: 2})
		}},
		{name: "request from itself", apply: func(d *Domain) {
			d.SendSynapse(packet.SynapseRequest{PreDomain: 1, PostLayer: 0})
		}},
		{name: "reply for non transmitter", apply: func(d *Domain) {
			d.SendReceiverIndex(packet.ReceiverReply{PostDomain: 0, PreNeuron: 0})
		}},
		{name: "reply for unknown neuron", apply: func(d *Domain) {
			d.SendReceiverIndex(packet.ReceiverReply{PostDomain: 0, PreNeuron: 99})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, _ := newMocked(t, fanSpec(), 1)
			tc.apply(b)
			_, err := b.ProcessInbox(ctx)
			assert.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestMalformedPacks(t *testing.T) {
	b, _ := newMocked(t, fanSpec(), 1)
	spikes := packet.SpikeVector{Origin: 0, Tick: 1, Slots: []int32{0}}
	data, err := spikes.MarshalBinary()
	require.NoError(t, err)

	assert.ErrorIs(t, b.SendSynapsePack(data), ErrProtocol)
	assert.ErrorIs(t, b.SendReceiverIndexPack(data), ErrProtocol)
	assert.ErrorIs(t, b.RegisterSpikePack(data[:5]), ErrProtocol)
	assert.NoError(t, b.RegisterSpikePack(data))
	assert.Zero(t, b.Pending(), "spikes are not counted as pending topology")
}
