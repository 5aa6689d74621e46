package model

const (
	ShapeSquare  = "square"
	ShapeDiamond = "diamond"
)

// NetworkSpec describes every domain of a partitioned network together with
// the parameters shared across all of them.
type NetworkSpec struct {
	Name    string       `yaml:"name" json:"name"`
	Device  string       `yaml:"device" json:"device"`
	Seed    int64        `yaml:"seed" json:"seed"`
	Learn   LearnParams  `yaml:"learn" json:"learn"`
	Domains []DomainSpec `yaml:"domains" json:"domains"`
}

type DomainSpec struct {
	Name   string      `yaml:"name" json:"name"`
	Layers []LayerSpec `yaml:"layers" json:"layers"`
	// Capacity caps the number of rows any vector of the domain may hold.
	// Zero means unbounded.
	Capacity int `yaml:"capacity" json:"capacity"`
}

// LayerSpec is one rectangular tile of a logical layer. Tiles sharing a
// name form a single logical layer placed in the global layer space.
type LayerSpec struct {
	Name        string        `yaml:"name" json:"name"`
	Width       int           `yaml:"width" json:"width"`
	Height      int           `yaml:"height" json:"height"`
	X           int           `yaml:"x" json:"x"`
	Y           int           `yaml:"y" json:"y"`
	Threshold   float32       `yaml:"threshold" json:"threshold"`
	Relaxation  float32       `yaml:"relaxation" json:"relaxation"`
	SpikeCost   float32       `yaml:"spike_cost" json:"spike_cost"`
	MaxVitality float32       `yaml:"max_vitality" json:"max_vitality"`
	Inhibitory  bool          `yaml:"inhibitory" json:"inhibitory"`
	Connect     []ConnectSpec `yaml:"connect" json:"connect"`
}

// ConnectSpec links every neuron of the owning layer to a window of the
// named logical layer.
type ConnectSpec struct {
	Name   string    `yaml:"name" json:"name"`
	Radius int       `yaml:"radius" json:"radius"`
	Shape  string    `yaml:"shape" json:"shape"`
	Shift  ShiftSpec `yaml:"shift" json:"shift"`
	Level  float32   `yaml:"level" json:"level"`
}

// ShiftSpec offsets the central post coordinate. Jitter adds a uniform
// random offset in [-Jitter, Jitter] per pre neuron.
type ShiftSpec struct {
	X       int `yaml:"x" json:"x"`
	Y       int `yaml:"y" json:"y"`
	JitterX int `yaml:"jitter_x" json:"jitter_x"`
	JitterY int `yaml:"jitter_y" json:"jitter_y"`
}

type LearnParams struct {
	SpikeLearnThreshold  int64   `yaml:"spike_learn_threshold" json:"spike_learn_threshold"`
	SpikeForgetThreshold int64   `yaml:"spike_forget_threshold" json:"spike_forget_threshold"`
	LearnRate            float32 `yaml:"learn_rate" json:"learn_rate"`
	LearnThreshold       float32 `yaml:"learn_threshold" json:"learn_threshold"`
	MaxLevel             float32 `yaml:"max_level" json:"max_level"`
	Policy               string  `yaml:"policy" json:"policy"`
}

func (l LayerSpec) Size() int {
	return l.Width * l.Height
}

func (n NetworkSpec) DomainIndex(name string) (int, bool) {
	for i, d := range n.Domains {
		if d.Name == name {
			return i, true
		}
	}
	return 0, false
}
