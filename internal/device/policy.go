package device

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"

	"spikenet/internal/model"
)

const (
	PolicyFixed = "fixed"
	PolicyDecay = "decay"
)

// LearnPolicy computes the new level of a synapse from the distance in
// ticks between the last spikes of its pre and post neurons.
type LearnPolicy interface {
	Name() string
	Update(level float32, delta int64, p model.LearnParams) float32
}

// FixedPolicy moves the level by LearnRate in either direction.
type FixedPolicy struct{}

func (FixedPolicy) Name() string { return PolicyFixed }

func (FixedPolicy) Update(level float32, delta int64, p model.LearnParams) float32 {
	switch {
	case delta < p.SpikeLearnThreshold:
		return level + p.LearnRate
	case delta >= p.SpikeForgetThreshold:
		return level - p.LearnRate
	default:
		return level
	}
}

// DecayPolicy strengthens by LearnRate scaled down with the tick distance
// and forgets proportionally to the current level.
type DecayPolicy struct{}

func (DecayPolicy) Name() string { return PolicyDecay }

func (DecayPolicy) Update(level float32, delta int64, p model.LearnParams) float32 {
	switch {
	case delta < p.SpikeLearnThreshold:
		return level + p.LearnRate/float32(1+delta)
	case delta >= p.SpikeForgetThreshold:
		return level - math32.Abs(level)*p.LearnRate
	default:
		return level
	}
}

func ResolvePolicy(name string) (LearnPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyFixed:
		return FixedPolicy{}, nil
	case PolicyDecay:
		return DecayPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown learn policy: %s", name)
	}
}

// settle clamps a learned level to MaxLevel and tombstones levels that fell
// to or below LearnThreshold.
func settle(level float32, p model.LearnParams) float32 {
	if p.MaxLevel > 0 {
		level = math32.Min(level, p.MaxLevel)
	}
	if level <= 0 || level <= p.LearnThreshold {
		return 0
	}
	return level
}
