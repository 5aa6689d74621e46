package vector

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spikenet/internal/model"
)

func TestVectorExtendKeepsColumnsAligned(t *testing.T) {
	v := New("test", 0)
	a, err := AddColumn[int32](v, "a")
	require.NoError(t, err)
	b, err := AddColumn[float32](v, "b")
	require.NoError(t, err)

	start, err := v.Extend(3)
	require.NoError(t, err)
	assert.Equal(t, 0, start)
	a.Data[2] = 7
	b.Data[2] = 1.5

	start, err = v.Extend(40)
	require.NoError(t, err)
	assert.Equal(t, 3, start)
	assert.Equal(t, 43, v.Len())
	assert.Len(t, a.Data, 43)
	assert.Len(t, b.Data, 43)
	assert.GreaterOrEqual(t, v.Cap(), 43)
	assert.Equal(t, int32(7), a.Data[2])
	assert.Equal(t, float32(1.5), b.Data[2])
}

func TestVectorLateColumnMatchesLength(t *testing.T) {
	v := New("test", 0)
	_, err := AddColumn[int32](v, "a")
	require.NoError(t, err)
	_, err = v.Extend(5)
	require.NoError(t, err)

	late, err := AddColumn[int64](v, "late")
	require.NoError(t, err)
	assert.Len(t, late.Data, 5)
}

func TestVectorRejectsDuplicateColumn(t *testing.T) {
	v := New("test", 0)
	_, err := AddColumn[int32](v, "a")
	require.NoError(t, err)
	_, err = AddColumn[float32](v, "a")
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestVectorResizeDoubles(t *testing.T) {
	v := New("test", 0)
	_, err := AddColumn[uint8](v, "a")
	require.NoError(t, err)
	_, err = v.Extend(minCapacity)
	require.NoError(t, err)
	assert.Equal(t, minCapacity, v.Cap())
	_, err = v.Extend(1)
	require.NoError(t, err)
	assert.Equal(t, 2*minCapacity, v.Cap())
}

func TestVectorLimit(t *testing.T) {
	v := New("test", 20)
	_, err := AddColumn[int32](v, "a")
	require.NoError(t, err)
	_, err = v.Extend(20)
	require.NoError(t, err)
	assert.Equal(t, 20, v.Cap())

	_, err = v.Extend(1)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	assert.Equal(t, 20, v.Len())
}

func TestSyncLength(t *testing.T) {
	a := New("a", 0)
	b := New("b", 0)
	ca, err := AddColumn[int32](a, "x")
	require.NoError(t, err)
	cb, err := AddColumn[int32](b, "x")
	require.NoError(t, err)
	_, err = a.Extend(4)
	require.NoError(t, err)

	require.NoError(t, SyncLength(a, b))
	assert.Equal(t, 4, b.Len())
	assert.Len(t, ca.Data, 4)
	assert.Len(t, cb.Data, 4)
}

func TestNeuronsReserveAndRemoteRegion(t *testing.T) {
	n := NewNeurons(0)
	first, err := n.Reserve(0, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(0), first)
	second, err := n.Reserve(1, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(4), second)
	assert.Equal(t, NeverSpiked, n.Tick.Data[5])
	assert.Equal(t, float32(5), n.Vitality.Data[5])

	remote, err := n.AllocateRemote(model.FlagInhibitory)
	require.NoError(t, err)
	assert.Equal(t, int32(6), remote)
	assert.Equal(t, 6, n.Local())
	assert.Equal(t, 1, n.Remote())
	assert.True(t, n.Flags.Data[remote].Has(model.FlagReceiver))
	assert.True(t, n.Flags.Data[remote].Has(model.FlagInhibitory))
	assert.Equal(t, RemoteLayer, n.Layer.Data[remote])

	_, err = n.Reserve(2, 1, 1)
	assert.Error(t, err)
}

func TestSynapsesAppendAndLive(t *testing.T) {
	s := NewSynapses(0)
	for i := int32(0); i < 3; i++ {
		address, err := s.Append(i, i+1, 0.5)
		require.NoError(t, err)
		assert.Equal(t, i, address)
	}
	s.Level.Data[1] = 0
	assert.Equal(t, 2, s.Live())
	state := s.State()
	assert.Equal(t, []int32{0, 1, 2}, state.Pre)
	assert.Equal(t, []int32{1, 2, 3}, state.Post)
}

func TestSizeReport(t *testing.T) {
	n := NewNeurons(0)
	_, err := n.Reserve(0, 100, 1)
	require.NoError(t, err)
	report := SizeReport(n.Vector, NewSynapses(0).Vector)
	assert.Contains(t, report, "neurons")
	assert.Contains(t, report, "synapses")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(report), "B"), report)
}
