package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spikenet/internal/model"
)

func localSpec() model.NetworkSpec {
	return model.NetworkSpec{
		Domains: []model.DomainSpec{{Name: "solo", Layers: []model.LayerSpec{
			{Name: "in", Width: 3, Height: 3, Threshold: 1, Connect: []model.ConnectSpec{{Name: "out", Radius: 1, Level: 0.5}}},
			{Name: "out", Width: 3, Height: 3, Threshold: 1},
		}}},
	}
}

func TestStagesRunInOrder(t *testing.T) {
	domains, _ := newDomains(t, localSpec())
	d := domains[0]
	ctx := context.Background()

	assert.ErrorIs(t, d.DeployNeurons(), ErrStage)
	_, err := d.Tick(ctx)
	assert.ErrorIs(t, err, ErrStage)
	_, err = d.ProcessInbox(ctx)
	assert.ErrorIs(t, err, ErrStage)

	require.NoError(t, d.DeployLayers())
	assert.ErrorIs(t, d.DeployLayers(), ErrStage)
	require.NoError(t, d.DeployNeurons())
	assert.ErrorIs(t, d.DeployIndexes(), ErrStage)
	require.NoError(t, d.PreDeploySynapses())
	require.NoError(t, d.DeploySynapses(ctx))
	require.NoError(t, d.PostDeploySynapses(ctx))
	require.NoError(t, d.PostDeploySynapses(ctx), "post deploy repeats until quiescent")
	require.NoError(t, d.DeployIndexes())
	require.NoError(t, d.DeployDevice())
	assert.Equal(t, StageDevice, d.Stage())
}

func TestDeployLocalTopology(t *testing.T) {
	domains, tr := newDomains(t, localSpec())
	d := domains[0]
	require.NoError(t, d.Deploy(context.Background()))

	assert.Equal(t, 18, d.Neurons().Len())
	assert.Equal(t, 0, d.Neurons().Remote())
	assert.Equal(t, 9, d.Synapses().Len(), "radius 1 maps each neuron to one post neuron")
	assert.Equal(t, int64(9), d.Stats().LocalSynapses)
	assert.Zero(t, tr.synapsePacks)
	requireConsistent(t, d)

	in, _ := d.Layer("in")
	out, _ := d.Layer("out")
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			synapses := d.PreIndex().Lookup(in.Address(x, y))
			require.Len(t, synapses, 1)
			assert.Equal(t, out.Address(x, y), d.Synapses().Post.Data[synapses[0]])
			assert.Equal(t, float32(0.5), d.Synapses().Level.Data[synapses[0]])
			assert.Equal(t, synapses, d.PostIndex().Lookup(out.Address(x, y)))
		}
	}
}

func TestDeployRejectsUnknownTarget(t *testing.T) {
	spec := localSpec()
	spec.Domains[0].Layers[0].Connect[0].Name = "missing"
	domains, _ := newDomains(t, spec)
	d := domains[0]
	require.NoError(t, d.DeployLayers())
	require.NoError(t, d.DeployNeurons())
	assert.Error(t, d.PreDeploySynapses())
}

func TestDeployRejectsUnknownShape(t *testing.T) {
	spec := localSpec()
	spec.Domains[0].Layers[0].Connect[0].Shape = "hexagon"
	domains, _ := newDomains(t, spec)
	assert.Error(t, domains[0].Deploy(context.Background()))
}

func TestDeployCapacity(t *testing.T) {
	spec := localSpec()
	spec.Domains[0].Capacity = 10
	domains, _ := newDomains(t, spec)
	err := domains[0].Deploy(context.Background())
	require.Error(t, err)
}
