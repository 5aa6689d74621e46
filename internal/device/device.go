package device

import (
	"errors"
	"fmt"
	"strings"

	"spikenet/internal/index"
	"spikenet/internal/model"
	"spikenet/internal/vector"
)

var (
	ErrUnknownDevice   = errors.New("unknown device")
	ErrNoDevicePointer = errors.New("vector has no device pointer")
)

// Device runs the per-tick kernels of a domain and owns the transfer
// boundary between host vectors and their device copies.
type Device interface {
	Name() string
	CreateDeviceDataPointer(v *vector.Vector) error
	ToDevice(v *vector.Vector) error
	FromDevice(v *vector.Vector) error

	// TickNeurons fires neurons at or above threshold and decays the rest.
	TickNeurons(s *State) error
	// TickReceiverIndex copies receiver index flags onto receiver neurons.
	TickReceiverIndex(s *State) error
	// TickTransmitterIndex flags transmitter entries whose neuron fired.
	TickTransmitterIndex(s *State) error
	// TickSynapses propagates spikes, applies learning and tombstones
	// synapses touching dead neurons.
	TickSynapses(s *State) error
}

// State is the view of one domain handed to the kernels.
type State struct {
	Tick        int64
	Neurons     *vector.Neurons
	Layers      *vector.Layers
	Synapses    *vector.Synapses
	PreIndex    *index.Synapses
	PostIndex   *index.Synapses
	Transmitter *index.Transmitter
	Receiver    *index.Receiver
	Learn       model.LearnParams
	Policy      LearnPolicy

	// Died lists neurons flagged dead by the last TickNeurons call.
	Died []int32
}

// New resolves a device backend by name.
func New(name string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return NewCPU(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
}
