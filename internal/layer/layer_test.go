package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spikenet/internal/model"
	"spikenet/internal/vector"
)

func TestCreateNeuronsRowMajor(t *testing.T) {
	neurons := vector.NewNeurons(0)
	layers := vector.NewLayers()

	first := New(0, model.LayerSpec{Name: "a", Width: 3, Height: 2, MaxVitality: 4})
	second := New(1, model.LayerSpec{Name: "b", Width: 2, Height: 2, Inhibitory: true})
	for _, l := range []*Layer{first, second} {
		require.NoError(t, l.Register(layers))
	}
	for _, l := range []*Layer{first, second} {
		require.NoError(t, l.CreateNeurons(neurons, layers))
	}

	assert.Equal(t, 10, neurons.Len())
	assert.Equal(t, int32(0), first.Offset)
	assert.Equal(t, int32(6), second.Offset)
	assert.Equal(t, int32(6), layers.Offset.Data[1])
	assert.Equal(t, int32(5), first.Address(2, 1))
	assert.Equal(t, int32(9), second.Address(1, 1))

	x, y := first.Coordinates(4)
	assert.Equal(t, 1, x)
	assert.Equal(t, 1, y)

	assert.Equal(t, int32(1), neurons.Layer.Data[7])
	assert.Equal(t, float32(4), neurons.Vitality.Data[0])
	assert.False(t, neurons.Flags.Data[0].Has(model.FlagInhibitory))
	assert.True(t, neurons.Flags.Data[7].Has(model.FlagInhibitory))
	assert.True(t, second.Owns(9))
	assert.False(t, second.Owns(5))

	assert.Error(t, first.CreateNeurons(neurons, layers), "neurons are created once")
}

func TestAtlasLocatesTiles(t *testing.T) {
	spec := model.NetworkSpec{Domains: []model.DomainSpec{
		{Name: "left", Layers: []model.LayerSpec{{Name: "v1", Width: 2, Height: 3, X: 10, Y: 5}}},
		{Name: "right", Layers: []model.LayerSpec{
			{Name: "out", Width: 1, Height: 1},
			{Name: "v1", Width: 2, Height: 3, X: 12, Y: 5},
		}},
	}}
	atlas, err := NewAtlas(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"out", "v1"}, atlas.Names())

	v1, ok := atlas.Logical("v1")
	require.True(t, ok)
	assert.Equal(t, 4, v1.Width)
	assert.Equal(t, 3, v1.Height)

	loc, ok := v1.Locate(1, 2)
	require.True(t, ok)
	assert.Equal(t, Location{Domain: 0, Layer: 0, X: 1, Y: 2}, loc)

	loc, ok = v1.Locate(3, 0)
	require.True(t, ok)
	assert.Equal(t, Location{Domain: 1, Layer: 1, X: 1, Y: 0}, loc)

	_, ok = v1.Locate(4, 0)
	assert.False(t, ok)
	_, ok = v1.Locate(-1, 0)
	assert.False(t, ok)

	x, y, ok := v1.Origin(1, 1)
	require.True(t, ok)
	assert.Equal(t, 2, x)
	assert.Equal(t, 0, y)
}

func TestAtlasRejectsOverlap(t *testing.T) {
	spec := model.NetworkSpec{Domains: []model.DomainSpec{
		{Name: "a", Layers: []model.LayerSpec{{Name: "v1", Width: 2, Height: 2}}},
		{Name: "b", Layers: []model.LayerSpec{{Name: "v1", Width: 2, Height: 2, X: 1}}},
	}}
	_, err := NewAtlas(spec)
	assert.Error(t, err)
}

func TestAtlasHoleIsNotLocated(t *testing.T) {
	spec := model.NetworkSpec{Domains: []model.DomainSpec{
		{Name: "a", Layers: []model.LayerSpec{{Name: "v1", Width: 1, Height: 1}}},
		{Name: "b", Layers: []model.LayerSpec{{Name: "v1", Width: 1, Height: 1, X: 2}}},
	}}
	atlas, err := NewAtlas(spec)
	require.NoError(t, err)
	v1, _ := atlas.Logical("v1")
	_, ok := v1.Locate(1, 0)
	assert.False(t, ok)
}
