package vector

// Layers holds per-layer parameters read by the neuron kernel.
type Layers struct {
	*Vector
	Threshold   *Column[float32]
	Relaxation  *Column[float32]
	SpikeCost   *Column[float32]
	MaxVitality *Column[float32]
	Offset      *Column[int32]
	Width       *Column[int32]
	Height      *Column[int32]
}

func NewLayers() *Layers {
	v := New("layers", 0)
	return &Layers{
		Vector:      v,
		Threshold:   mustColumn[float32](v, "threshold"),
		Relaxation:  mustColumn[float32](v, "relaxation"),
		SpikeCost:   mustColumn[float32](v, "spike_cost"),
		MaxVitality: mustColumn[float32](v, "max_vitality"),
		Offset:      mustColumn[int32](v, "offset"),
		Width:       mustColumn[int32](v, "width"),
		Height:      mustColumn[int32](v, "height"),
	}
}
