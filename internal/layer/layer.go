package layer

import (
	"fmt"

	"spikenet/internal/model"
	"spikenet/internal/vector"
)

// Layer is one rectangular neuron grid owned by a domain. Its neurons occupy
// the contiguous addresses [Offset, Offset+Width*Height).
type Layer struct {
	Index  int32
	Spec   model.LayerSpec
	Offset int32

	created bool
}

func New(index int32, spec model.LayerSpec) *Layer {
	return &Layer{Index: index, Spec: spec}
}

func (l *Layer) Name() string {
	return l.Spec.Name
}

func (l *Layer) Width() int {
	return l.Spec.Width
}

func (l *Layer) Height() int {
	return l.Spec.Height
}

func (l *Layer) Size() int {
	return l.Spec.Size()
}

// Register appends the layer parameters to the per-layer vector read by the
// neuron kernel.
func (l *Layer) Register(layers *vector.Layers) error {
	row, err := layers.Extend(1)
	if err != nil {
		return err
	}
	if int32(row) != l.Index {
		return fmt.Errorf("layer %s registered at row %d, want %d", l.Spec.Name, row, l.Index)
	}
	layers.Threshold.Data[row] = l.Spec.Threshold
	layers.Relaxation.Data[row] = l.Spec.Relaxation
	layers.SpikeCost.Data[row] = l.Spec.SpikeCost
	layers.MaxVitality.Data[row] = l.Spec.MaxVitality
	layers.Width.Data[row] = int32(l.Spec.Width)
	layers.Height.Data[row] = int32(l.Spec.Height)
	return nil
}

// CreateNeurons reserves the layer's neuron slots and writes the layer
// back-reference for each of them.
func (l *Layer) CreateNeurons(neurons *vector.Neurons, layers *vector.Layers) error {
	if l.created {
		return fmt.Errorf("layer %s neurons already created", l.Spec.Name)
	}
	offset, err := neurons.Reserve(l.Index, l.Size(), l.Spec.MaxVitality)
	if err != nil {
		return fmt.Errorf("create neurons for layer %s: %w", l.Spec.Name, err)
	}
	l.Offset = offset
	l.created = true
	if l.Spec.Inhibitory {
		for y := 0; y < l.Spec.Height; y++ {
			for x := 0; x < l.Spec.Width; x++ {
				neurons.Flags.Data[l.Address(x, y)].Set(model.FlagInhibitory)
			}
		}
	}
	if layers != nil && int(l.Index) < layers.Len() {
		layers.Offset.Data[l.Index] = offset
	}
	return nil
}

// Address maps local grid coordinates to a neuron address.
func (l *Layer) Address(x, y int) int32 {
	return l.Offset + int32(y*l.Spec.Width+x)
}

// Coordinates is the inverse of Address.
func (l *Layer) Coordinates(address int32) (x, y int) {
	local := int(address - l.Offset)
	return local % l.Spec.Width, local / l.Spec.Width
}

func (l *Layer) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.Spec.Width && y < l.Spec.Height
}

func (l *Layer) Owns(address int32) bool {
	return address >= l.Offset && int(address-l.Offset) < l.Size()
}
