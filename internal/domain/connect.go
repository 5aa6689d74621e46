package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/chewxy/math32"

	"spikenet/internal/layer"
	"spikenet/internal/model"
	"spikenet/internal/packet"
)

// maxSynapseBatch bounds an outbound synapse request packet.
const maxSynapseBatch = 4096

type connectRule struct {
	pre     *layer.Layer
	spec    model.ConnectSpec
	from    *layer.Logical
	to      *layer.Logical
	originX int
	originY int
	radius  int
	diamond bool
	level   float32
}

func (d *Domain) resolveRules() ([]connectRule, error) {
	var rules []connectRule
	for _, l := range d.layers {
		from, ok := d.atlas.Logical(l.Name())
		if !ok {
			return nil, fmt.Errorf("domain %s: layer %s missing from atlas", d.name, l.Name())
		}
		originX, originY, ok := from.Origin(d.index, l.Index)
		if !ok {
			return nil, fmt.Errorf("domain %s: layer %s has no tile in atlas", d.name, l.Name())
		}
		for _, spec := range l.Spec.Connect {
			to, ok := d.atlas.Logical(spec.Name)
			if !ok {
				return nil, fmt.Errorf("domain %s: layer %s connects to unknown layer %s", d.name, l.Name(), spec.Name)
			}
			rule := connectRule{
				pre:     l,
				spec:    spec,
				from:    from,
				to:      to,
				originX: originX,
				originY: originY,
				radius:  spec.Radius,
				level:   spec.Level,
			}
			switch strings.ToLower(spec.Shape) {
			case "", model.ShapeSquare:
			case model.ShapeDiamond:
				rule.diamond = true
			default:
				return nil, fmt.Errorf("domain %s: layer %s: unknown connect shape %q", d.name, l.Name(), spec.Shape)
			}
			if rule.radius <= 0 {
				rule.radius = DefaultRadius(from.Width, from.Height, to.Width, to.Height)
			}
			if rule.level == 0 {
				rule.level = DefaultLevel
			}
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// DefaultRadius is the window radius used when a connect rule sets none:
// large enough that every pre neuron reaches at least one post neuron.
func DefaultRadius(preWidth, preHeight, postWidth, postHeight int) int {
	rx := math32.Ceil(float32(preWidth) / float32(postWidth) / 2)
	ry := math32.Ceil(float32(preHeight) / float32(postHeight) / 2)
	return int(math32.Max(rx, ry)) + 1
}

// CentralPost maps a pre coordinate proportionally onto the post axis.
func CentralPost(pre, preSize, postSize int) int {
	scaled := float32(pre)/float32(preSize)*float32(postSize) + float32(postSize)/float32(preSize)/2
	return int(math32.Floor(scaled))
}

// ConnectLayers creates the synapses of every connect rule. Targets in this
// domain become local synapses; targets in other domains become synapse
// requests. Every YieldInterval of wall time it checkpoints: progress is
// reported, queued packets are exchanged and ctx is checked. A cancelled
// pass cannot be resumed.
func (d *Domain) ConnectLayers(ctx context.Context) error {
	if d.synapses == nil {
		return fmt.Errorf("%w: %s ConnectLayers before PreDeploySynapses", ErrStage, d.name)
	}
	last := d.now()
	for _, rule := range d.rules {
		rows := rule.pre.Height()
		for y := 0; y < rows; y++ {
			if d.now().Sub(last) >= d.yieldInterval {
				if err := d.checkpoint(ctx, rule, y); err != nil {
					return err
				}
				last = d.now()
			}
			for x := 0; x < rule.pre.Width(); x++ {
				if err := d.connectNeuron(ctx, rule, x, y); err != nil {
					return err
				}
			}
		}
		d.report(rule, rows)
	}
	return nil
}

func (d *Domain) checkpoint(ctx context.Context, rule connectRule, row int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("domain %s: connect %s -> %s interrupted at row %d: %w", d.name, rule.pre.Name(), rule.spec.Name, row, err)
	}
	d.report(rule, row)
	_, err := d.ProcessInbox(ctx)
	return err
}

func (d *Domain) report(rule connectRule, row int) {
	p := Progress{Domain: d.name, Layer: rule.pre.Name(), Rule: rule.spec.Name, Row: row, Width: rule.pre.Width(), Rows: rule.pre.Height()}
	d.logger.Debug("connect progress", "layer", p.Layer, "rule", p.Rule, "row", p.Row, "width", p.Width, "rows", p.Rows)
	if d.progress != nil {
		d.progress(p)
	}
}

func (d *Domain) jitter(amount int) int {
	if amount <= 0 {
		return 0
	}
	return d.random.Intn(2*amount+1) - amount
}

func (d *Domain) connectNeuron(ctx context.Context, rule connectRule, x, y int) error {
	pre := rule.pre.Address(x, y)
	shift := rule.spec.Shift
	cx := CentralPost(rule.originX+x, rule.from.Width, rule.to.Width) + shift.X + d.jitter(shift.JitterX)
	cy := CentralPost(rule.originY+y, rule.from.Height, rule.to.Height) + shift.Y + d.jitter(shift.JitterY)

	reach := rule.radius - 1
	if cx+reach < 0 || cy+reach < 0 || cx-reach >= rule.to.Width || cy-reach >= rule.to.Height {
		d.stats.SkippedWindows++
		return nil
	}
	for py := max(0, cy-reach); py <= min(rule.to.Height-1, cy+reach); py++ {
		for px := max(0, cx-reach); px <= min(rule.to.Width-1, cx+reach); px++ {
			if rule.diamond && abs(px-cx)+abs(py-cy) > reach {
				continue
			}
			loc, ok := rule.to.Locate(px, py)
			if !ok {
				continue
			}
			if loc.Domain != d.index {
				if err := d.connectRemoteNeurons(ctx, rule.pre, pre, loc, rule.level); err != nil {
					return err
				}
				continue
			}
			post := d.layers[loc.Layer].Address(loc.X, loc.Y)
			if post == pre {
				continue
			}
			if err := d.connectNeurons(pre, post, rule.level); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Domain) connectNeurons(pre, post int32, level float32) error {
	if err := d.appendSynapse(pre, post, level); err != nil {
		return err
	}
	d.stats.LocalSynapses++
	return nil
}

// appendSynapse adds a synapse, indexing it right away once the indexes
// are built.
func (d *Domain) appendSynapse(pre, post int32, level float32) error {
	address, err := d.synapses.Append(pre, post, level)
	if err != nil {
		return fmt.Errorf("domain %s: %w", d.name, err)
	}
	if d.stage >= StageIndexes {
		d.preIndex.Add(pre, address)
		d.postIndex.Add(post, address)
		d.dirty = true
	}
	return nil
}

// connectRemoteNeurons marks pre as a transmitter and queues a synapse
// request for the domain owning loc.
func (d *Domain) connectRemoteNeurons(ctx context.Context, l *layer.Layer, pre int32, loc layer.Location, level float32) error {
	flags := &d.neurons.Flags.Data[pre]
	flags.Set(model.FlagTransmitter)
	batch, ok := d.synapseOut[loc.Domain]
	if !ok {
		batch = &packet.TransmitterVector{Origin: d.index}
		d.synapseOut[loc.Domain] = batch
	}
	batch.Append(packet.SynapseRequest{
		PreDomain: d.index,
		PreLayer:  l.Index,
		PreNeuron: pre,
		PostLayer: loc.Layer,
		PostX:     int32(loc.X),
		PostY:     int32(loc.Y),
		Level:     level,
		PreFlags:  *flags & model.FlagInhibitory,
	})
	d.stats.RemoteSynapsesSent++
	if batch.Len() >= maxSynapseBatch {
		return d.flushSynapses(ctx, loc.Domain)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
