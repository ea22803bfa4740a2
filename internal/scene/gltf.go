package scene

import (
	"fmt"

	"github.com/qmuntal/gltf"
)

// GLTFPart adapts one glTF mesh into a Part. Morph-channel names come from
// the mesh extras "targetNames" table (the convention Blender and Ready
// Player Me exporters use); the live weight array mirrors the mesh weights.
// Geometry and materials are never touched.
type GLTFPart struct {
	name    string
	index   map[string]int
	weights []float32
}

// LoadParts opens a glTF/GLB file and returns a part per mesh that declares
// morph targets. Meshes without targets are skipped.
func LoadParts(path string) ([]*GLTFPart, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	return PartsFromDocument(doc)
}

// PartsFromDocument builds parts from an already-parsed document.
func PartsFromDocument(doc *gltf.Document) ([]*GLTFPart, error) {
	if len(doc.Meshes) == 0 {
		return nil, fmt.Errorf("no meshes in document")
	}

	var parts []*GLTFPart
	for mi, mesh := range doc.Meshes {
		targetCount := 0
		if len(mesh.Primitives) > 0 {
			targetCount = len(mesh.Primitives[0].Targets)
		}
		if targetCount == 0 {
			continue
		}

		names := targetNames(mesh)

		part := &GLTFPart{
			name:    mesh.Name,
			index:   make(map[string]int, targetCount),
			weights: make([]float32, targetCount),
		}
		if part.name == "" {
			part.name = fmt.Sprintf("mesh_%d", mi)
		}

		for i := 0; i < targetCount; i++ {
			if i < len(names) {
				part.index[names[i]] = i
			}
		}

		// Seed from authored rest weights when present. Document weights are
		// float64; the live array stays float32 like every other channel.
		for i := 0; i < targetCount && i < len(mesh.Weights); i++ {
			part.weights[i] = float32(mesh.Weights[i])
		}

		parts = append(parts, part)
	}

	return parts, nil
}

// targetNames reads the morph target name table from mesh extras.
func targetNames(mesh *gltf.Mesh) []string {
	extras, ok := mesh.Extras.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := extras["targetNames"].([]interface{})
	if !ok {
		return nil
	}

	names := make([]string, 0, len(raw))
	for _, v := range raw {
		name, _ := v.(string)
		names = append(names, name)
	}
	return names
}

func (p *GLTFPart) Name() string { return p.name }

func (p *GLTFPart) ChannelIndex(name string) (int, bool) {
	i, ok := p.index[name]
	return i, ok
}

func (p *GLTFPart) ChannelCount() int { return len(p.weights) }

func (p *GLTFPart) Weight(idx int) float32 {
	if idx < 0 || idx >= len(p.weights) {
		return 0
	}
	return p.weights[idx]
}

func (p *GLTFPart) SetWeight(idx int, value float32) {
	if idx < 0 || idx >= len(p.weights) {
		return
	}
	p.weights[idx] = value
}

// Weights exposes the live weight array for a renderer to upload each frame.
func (p *GLTFPart) Weights() []float32 { return p.weights }
