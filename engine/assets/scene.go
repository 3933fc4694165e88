package assets

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/math"
)

// Names accepted by MeshDefinition.Primitive.
const (
	PrimitiveTriangle = "triangle"
	PrimitiveQuad     = "quad"
	PrimitiveCube     = "cube"
)

/**
 * @brief A mesh declared by a scene file. Either Primitive is set, and Size
 * scales the generated shape, or Vertices and Indices carry the data.
 */
type MeshDefinition struct {
	Name      string     `toml:"name"`
	Primitive string     `toml:"primitive"`
	Size      [3]float32 `toml:"size"`
	Vertices  []float32  `toml:"vertices"`
	Indices   []uint32   `toml:"indices"`
}

// Geometry returns the packed positions and the triangle list of the mesh.
func (m *MeshDefinition) Geometry() ([]float32, []uint32, error) {
	size := m.Size
	for i := range size {
		if size[i] == 0 {
			size[i] = 1
		}
	}
	switch m.Primitive {
	case "":
		if len(m.Vertices) == 0 {
			return nil, nil, fmt.Errorf("mesh '%s' has neither a primitive nor vertices", m.Name)
		}
		return m.Vertices, m.Indices, nil
	case PrimitiveTriangle:
		v, i := math.GenerateTriangle(size[0])
		return v, i, nil
	case PrimitiveQuad:
		v, i := math.GenerateQuad(size[0], size[1])
		return v, i, nil
	case PrimitiveCube:
		v, i := math.GenerateCube(size[0], size[1], size[2])
		return v, i, nil
	default:
		return nil, nil, fmt.Errorf("mesh '%s' has unknown primitive '%s'", m.Name, m.Primitive)
	}
}

type ObjectDefinition struct {
	Mesh     string     `toml:"mesh"`
	Position [3]float32 `toml:"position"`
	// Euler angles in degrees.
	Rotation [3]float32 `toml:"rotation"`
	Scale    [3]float32 `toml:"scale"`
	// Degrees per second around each axis.
	Spin [3]float32 `toml:"spin"`
}

/**
 * @brief A block of identical objects laid out on a regular lattice centred
 * on Origin.
 */
type GridDefinition struct {
	Mesh    string     `toml:"mesh"`
	Count   [3]uint32  `toml:"count"`
	Spacing float32    `toml:"spacing"`
	Origin  [3]float32 `toml:"origin"`
	Scale   [3]float32 `toml:"scale"`
	Spin    [3]float32 `toml:"spin"`
}

type Scene struct {
	Meshes  []MeshDefinition   `toml:"mesh"`
	Objects []ObjectDefinition `toml:"object"`
	Grids   []GridDefinition   `toml:"grid"`
}

/**
 * @brief One placed object after grid expansion. The world matrix at time
 * t is scale, then rotation plus t times spin, then translation.
 */
type SceneObject struct {
	Mesh     string
	Position math.Vec3
	Rotation math.Vec3
	Scale    math.Vec3
	Spin     math.Vec3
}

// Model returns the object's world matrix after elapsed seconds.
func (o *SceneObject) Model(elapsed float32) math.Mat4 {
	r := o.Rotation.Add(o.Spin.MulScalar(elapsed))
	rotation := math.NewQuatFromEuler(math.DegToRad(r.X), math.DegToRad(r.Y), math.DegToRad(r.Z))
	return math.TransformFromPositionRotationScale(o.Position, rotation, o.Scale).GetLocal()
}

func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene %s: %w", path, err)
	}
	scene, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return scene, nil
}

func ParseScene(data []byte) (*Scene, error) {
	scene := &Scene{}
	if err := toml.Unmarshal(data, scene); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("parse error at %d:%d: %w", row, col, err)
		}
		return nil, err
	}
	seen := make(map[string]bool, len(scene.Meshes))
	for _, m := range scene.Meshes {
		if m.Name == "" {
			return nil, fmt.Errorf("mesh without a name")
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("mesh '%s' declared twice", m.Name)
		}
		seen[m.Name] = true
	}
	return scene, nil
}

// Instances expands objects and grids into a flat list, objects first.
func (s *Scene) Instances() []SceneObject {
	var out []SceneObject
	for _, o := range s.Objects {
		out = append(out, SceneObject{
			Mesh:     o.Mesh,
			Position: vec3(o.Position),
			Rotation: vec3(o.Rotation),
			Scale:    scaleOrOne(o.Scale),
			Spin:     vec3(o.Spin),
		})
	}
	for _, g := range s.Grids {
		var count [3]uint32
		for i, c := range g.Count {
			count[i] = max(c, 1)
		}
		spacing := g.Spacing
		if spacing == 0 {
			spacing = 1
		}
		origin := vec3(g.Origin)
		// centre the lattice on origin
		start := origin.Sub(math.NewVec3(
			float32(count[0]-1)*spacing*0.5,
			float32(count[1]-1)*spacing*0.5,
			float32(count[2]-1)*spacing*0.5,
		))
		for z := uint32(0); z < count[2]; z++ {
			for y := uint32(0); y < count[1]; y++ {
				for x := uint32(0); x < count[0]; x++ {
					out = append(out, SceneObject{
						Mesh:     g.Mesh,
						Position: start.Add(math.NewVec3(float32(x)*spacing, float32(y)*spacing, float32(z)*spacing)),
						Scale:    scaleOrOne(g.Scale),
						Spin:     vec3(g.Spin),
					})
				}
			}
		}
	}
	if len(out) == 0 {
		core.LogWarn("scene has no objects")
	}
	return out
}

func vec3(v [3]float32) math.Vec3 {
	return math.NewVec3(v[0], v[1], v[2])
}

func scaleOrOne(v [3]float32) math.Vec3 {
	if v == [3]float32{} {
		return math.NewVec3One()
	}
	return vec3(v)
}
