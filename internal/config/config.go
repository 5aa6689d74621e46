package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"spikenet/internal/device"
	"spikenet/internal/layer"
	"spikenet/internal/model"
)

var ErrInvalid = errors.New("invalid config")

// Config is a network description plus the parameters of one run. The
// network fields sit at the top level of the file.
type Config struct {
	model.NetworkSpec `yaml:",inline"`
	Run               RunConfig `yaml:"run" json:"run"`
}

type RunConfig struct {
	Ticks         int        `yaml:"ticks" json:"ticks"`
	SnapshotEvery int        `yaml:"snapshot_every" json:"snapshot_every"`
	Stimuli       []Stimulus `yaml:"stimuli" json:"stimuli"`
}

// Stimulus injects potential into one neuron before the first tick.
type Stimulus struct {
	Domain string  `yaml:"domain" json:"domain"`
	Layer  string  `yaml:"layer" json:"layer"`
	X      int     `yaml:"x" json:"x"`
	Y      int     `yaml:"y" json:"y"`
	Amount float32 `yaml:"amount" json:"amount"`
}

func Defaults() Config {
	return Config{
		NetworkSpec: model.NetworkSpec{
			Name:   "spikenet",
			Device: "cpu",
			Learn: model.LearnParams{
				SpikeLearnThreshold:  2,
				SpikeForgetThreshold: 8,
				Policy:               device.PolicyFixed,
			},
		},
		Run: RunConfig{Ticks: 100},
	}
}

// Load reads a YAML (or JSON) config file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks what deployment would otherwise reject late, after the
// other domains already started connecting.
func (c Config) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("%w: no domains", ErrInvalid)
	}
	if _, err := device.New(c.Device); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := device.ResolvePolicy(c.Learn.Policy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Learn.SpikeForgetThreshold < c.Learn.SpikeLearnThreshold {
		return fmt.Errorf("%w: spike_forget_threshold %d below spike_learn_threshold %d", ErrInvalid, c.Learn.SpikeForgetThreshold, c.Learn.SpikeLearnThreshold)
	}
	if c.Run.Ticks < 0 || c.Run.SnapshotEvery < 0 {
		return fmt.Errorf("%w: negative run ticks or snapshot interval", ErrInvalid)
	}

	domains := make(map[string]bool, len(c.Domains))
	for _, d := range c.Domains {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: domain without a name", ErrInvalid)
		}
		if domains[d.Name] {
			return fmt.Errorf("%w: duplicate domain %s", ErrInvalid, d.Name)
		}
		domains[d.Name] = true
		if d.Capacity < 0 {
			return fmt.Errorf("%w: domain %s has negative capacity", ErrInvalid, d.Name)
		}
		if err := validateLayers(d); err != nil {
			return err
		}
	}

	atlas, err := layer.NewAtlas(c.NetworkSpec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for _, d := range c.Domains {
		for _, ls := range d.Layers {
			for _, conn := range ls.Connect {
				if _, ok := atlas.Logical(conn.Name); !ok {
					return fmt.Errorf("%w: layer %s in domain %s connects to unknown layer %s", ErrInvalid, ls.Name, d.Name, conn.Name)
				}
			}
		}
	}

	for i, s := range c.Run.Stimuli {
		if err := c.validateStimulus(s); err != nil {
			return fmt.Errorf("%w: stimulus %d: %w", ErrInvalid, i, err)
		}
	}
	return nil
}

func validateLayers(d model.DomainSpec) error {
	names := make(map[string]bool, len(d.Layers))
	for _, ls := range d.Layers {
		if ls.Name == "" {
			return fmt.Errorf("%w: domain %s has a layer without a name", ErrInvalid, d.Name)
		}
		if names[ls.Name] {
			return fmt.Errorf("%w: domain %s declares layer %s twice", ErrInvalid, d.Name, ls.Name)
		}
		names[ls.Name] = true
		if ls.Width <= 0 || ls.Height <= 0 {
			return fmt.Errorf("%w: layer %s in domain %s has size %dx%d", ErrInvalid, ls.Name, d.Name, ls.Width, ls.Height)
		}
		if ls.Threshold <= 0 {
			return fmt.Errorf("%w: layer %s in domain %s needs a positive threshold", ErrInvalid, ls.Name, d.Name)
		}
		if ls.Relaxation < 0 || ls.SpikeCost < 0 || ls.MaxVitality < 0 {
			return fmt.Errorf("%w: layer %s in domain %s has negative neuron parameters", ErrInvalid, ls.Name, d.Name)
		}
		for _, conn := range ls.Connect {
			if conn.Radius < 0 {
				return fmt.Errorf("%w: %s -> %s has negative radius", ErrInvalid, ls.Name, conn.Name)
			}
			if conn.Level < 0 {
				return fmt.Errorf("%w: %s -> %s has negative level", ErrInvalid, ls.Name, conn.Name)
			}
			switch conn.Shape {
			case "", model.ShapeSquare, model.ShapeDiamond:
			default:
				return fmt.Errorf("%w: %s -> %s has unknown shape %q", ErrInvalid, ls.Name, conn.Name, conn.Shape)
			}
		}
	}
	return nil
}

func (c Config) validateStimulus(s Stimulus) error {
	idx, ok := c.DomainIndex(s.Domain)
	if !ok {
		return fmt.Errorf("unknown domain %s", s.Domain)
	}
	for _, ls := range c.Domains[idx].Layers {
		if ls.Name != s.Layer {
			continue
		}
		if s.X < 0 || s.Y < 0 || s.X >= ls.Width || s.Y >= ls.Height {
			return fmt.Errorf("(%d,%d) outside layer %s", s.X, s.Y, s.Layer)
		}
		return nil
	}
	return fmt.Errorf("domain %s has no layer %s", s.Domain, s.Layer)
}

// ParseStimulus reads the command line form domain/layer:x,y=amount. The
// amount defaults to 1.
func ParseStimulus(raw string) (Stimulus, error) {
	var s Stimulus
	where, amount, hasAmount := strings.Cut(raw, "=")
	s.Amount = 1
	if hasAmount {
		v, err := strconv.ParseFloat(strings.TrimSpace(amount), 32)
		if err != nil {
			return Stimulus{}, fmt.Errorf("stimulus %q: bad amount: %w", raw, err)
		}
		s.Amount = float32(v)
	}
	target, coords, ok := strings.Cut(where, ":")
	if !ok {
		return Stimulus{}, fmt.Errorf("stimulus %q: want domain/layer:x,y[=amount]", raw)
	}
	s.Domain, s.Layer, ok = strings.Cut(target, "/")
	if !ok || s.Domain == "" || s.Layer == "" {
		return Stimulus{}, fmt.Errorf("stimulus %q: want domain/layer:x,y[=amount]", raw)
	}
	xs, ys, ok := strings.Cut(coords, ",")
	if !ok {
		return Stimulus{}, fmt.Errorf("stimulus %q: want x,y coordinates", raw)
	}
	var err error
	if s.X, err = strconv.Atoi(strings.TrimSpace(xs)); err != nil {
		return Stimulus{}, fmt.Errorf("stimulus %q: bad x: %w", raw, err)
	}
	if s.Y, err = strconv.Atoi(strings.TrimSpace(ys)); err != nil {
		return Stimulus{}, fmt.Errorf("stimulus %q: bad y: %w", raw, err)
	}
	return s, nil
}
