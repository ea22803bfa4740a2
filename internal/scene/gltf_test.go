package scene

import (
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func morphMesh(name string, targets []string, weights []float64) *gltf.Mesh {
	prim := &gltf.Primitive{}
	for range targets {
		prim.Targets = append(prim.Targets, gltf.PrimitiveAttributes{})
	}

	rawNames := make([]interface{}, len(targets))
	for i, n := range targets {
		rawNames[i] = n
	}

	return &gltf.Mesh{
		Name:       name,
		Primitives: []*gltf.Primitive{prim},
		Weights:    weights,
		Extras:     map[string]interface{}{"targetNames": rawNames},
	}
}

func TestPartsFromDocument(t *testing.T) {
	doc := &gltf.Document{
		Meshes: []*gltf.Mesh{
			morphMesh("head", []string{"jawOpen", "mouthClose"}, nil),
			morphMesh("teeth", []string{"jawOpen"}, []float64{0.1}),
			// A mesh without morph targets is skipped.
			{Name: "eyes", Primitives: []*gltf.Primitive{{}}},
		},
	}

	parts, err := PartsFromDocument(doc)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	head := parts[0]
	assert.Equal(t, "head", head.Name())
	assert.Equal(t, 2, head.ChannelCount())

	idx, ok := head.ChannelIndex("mouthClose")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = head.ChannelIndex("browInnerUp")
	assert.False(t, ok)

	// Authored rest weights are carried over.
	teeth := parts[1]
	jaw, ok := teeth.ChannelIndex("jawOpen")
	require.True(t, ok)
	assert.InDelta(t, 0.1, teeth.Weight(jaw), 1e-6)
}

func TestPartsFromDocument_EmptyDocument(t *testing.T) {
	_, err := PartsFromDocument(&gltf.Document{})
	assert.Error(t, err)
}

func TestPartsFromDocument_MissingTargetNames(t *testing.T) {
	mesh := &gltf.Mesh{
		Name: "head",
		Primitives: []*gltf.Primitive{
			{Targets: []gltf.PrimitiveAttributes{{}, {}}},
		},
	}
	parts, err := PartsFromDocument(&gltf.Document{Meshes: []*gltf.Mesh{mesh}})
	require.NoError(t, err)
	require.Len(t, parts, 1)

	// Targets exist but are unnamed: the part is inert, not an error.
	assert.Equal(t, 2, parts[0].ChannelCount())
	_, ok := parts[0].ChannelIndex("jawOpen")
	assert.False(t, ok)
}

func TestGLTFPart_WeightBounds(t *testing.T) {
	parts, err := PartsFromDocument(&gltf.Document{
		Meshes: []*gltf.Mesh{morphMesh("head", []string{"jawOpen"}, nil)},
	})
	require.NoError(t, err)
	p := parts[0]

	p.SetWeight(0, 0.4)
	assert.InDelta(t, 0.4, p.Weights()[0], 1e-6)

	// Out-of-range access must not panic.
	p.SetWeight(5, 1)
	assert.Zero(t, p.Weight(5))
}
