package layer

import (
	"fmt"
	"sort"

	"spikenet/internal/model"
)

// Part is one tile of a logical layer: a LayerSpec placed in some domain.
type Part struct {
	Domain int32
	Layer  int32
	X, Y   int
	Width  int
	Height int
}

// Location resolves a logical coordinate to the owning tile and the
// coordinate inside it.
type Location struct {
	Domain int32
	Layer  int32
	X, Y   int
}

// Logical is the union of every tile sharing a layer name.
type Logical struct {
	Name   string
	X, Y   int
	Width  int
	Height int

	parts []Part
	cells []int32
}

// Atlas is the global layer coordinate space shared by every domain. It
// precomputes, for each logical layer, a dense coordinate to tile cache.
type Atlas struct {
	layers map[string]*Logical
}

func NewAtlas(spec model.NetworkSpec) (*Atlas, error) {
	byName := make(map[string][]Part)
	for d, domain := range spec.Domains {
		for l, ls := range domain.Layers {
			if ls.Width <= 0 || ls.Height <= 0 {
				return nil, fmt.Errorf("layer %s in domain %s has empty size %dx%d", ls.Name, domain.Name, ls.Width, ls.Height)
			}
			byName[ls.Name] = append(byName[ls.Name], Part{
				Domain: int32(d),
				Layer:  int32(l),
				X:      ls.X,
				Y:      ls.Y,
				Width:  ls.Width,
				Height: ls.Height,
			})
		}
	}

	atlas := &Atlas{layers: make(map[string]*Logical, len(byName))}
	for name, parts := range byName {
		logical, err := newLogical(name, parts)
		if err != nil {
			return nil, err
		}
		atlas.layers[name] = logical
	}
	return atlas, nil
}

func newLogical(name string, parts []Part) (*Logical, error) {
	minX, minY := parts[0].X, parts[0].Y
	maxX, maxY := parts[0].X+parts[0].Width, parts[0].Y+parts[0].Height
	for _, p := range parts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X+p.Width)
		maxY = max(maxY, p.Y+p.Height)
	}
	g := &Logical{
		Name:   name,
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
		parts:  parts,
	}
	g.cells = make([]int32, g.Width*g.Height)
	for i := range g.cells {
		g.cells[i] = -1
	}
	for i, p := range parts {
		for y := p.Y - minY; y < p.Y-minY+p.Height; y++ {
			for x := p.X - minX; x < p.X-minX+p.Width; x++ {
				cell := y*g.Width + x
				if g.cells[cell] >= 0 {
					other := parts[g.cells[cell]]
					return nil, fmt.Errorf("layer %s: tiles of domains %d and %d overlap at (%d,%d)", name, other.Domain, p.Domain, x+minX, y+minY)
				}
				g.cells[cell] = int32(i)
			}
		}
	}
	return g, nil
}

func (a *Atlas) Logical(name string) (*Logical, bool) {
	g, ok := a.layers[name]
	return g, ok
}

func (a *Atlas) Names() []string {
	names := make([]string, 0, len(a.layers))
	for name := range a.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Locate returns the tile owning logical coordinate (x, y). Holes between
// tiles and out of bounds coordinates report false.
func (g *Logical) Locate(x, y int) (Location, bool) {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return Location{}, false
	}
	cell := g.cells[y*g.Width+x]
	if cell < 0 {
		return Location{}, false
	}
	p := g.parts[cell]
	return Location{
		Domain: p.Domain,
		Layer:  p.Layer,
		X:      x - (p.X - g.X),
		Y:      y - (p.Y - g.Y),
	}, true
}

// Origin returns the logical coordinate of the top-left neuron of a tile.
func (g *Logical) Origin(domain, layer int32) (int, int, bool) {
	for _, p := range g.parts {
		if p.Domain == domain && p.Layer == layer {
			return p.X - g.X, p.Y - g.Y, true
		}
	}
	return 0, 0, false
}

func (g *Logical) Parts() []Part {
	return append([]Part(nil), g.parts...)
}
