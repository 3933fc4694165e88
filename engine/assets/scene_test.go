package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/strata/engine/math"
)

const demoScene = `
[[mesh]]
name = "triangle"
vertices = [0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 1.0, 0.0]
indices = [0, 1, 2]

[[mesh]]
name = "cube"
primitive = "cube"
size = [2.0, 2.0, 2.0]

[[object]]
mesh = "triangle"
position = [1.0, 2.0, 3.0]

[[object]]
mesh = "cube"
rotation = [0.0, 45.0, 0.0]
scale = [2.0, 2.0, 2.0]
spin = [0.0, 90.0, 0.0]

[[grid]]
mesh = "cube"
count = [3, 1, 2]
spacing = 2.0
origin = [0.0, 10.0, 0.0]
`

func TestParseScene(t *testing.T) {
	scene, err := ParseScene([]byte(demoScene))
	require.NoError(t, err)
	require.Len(t, scene.Meshes, 2)
	assert.Equal(t, "triangle", scene.Meshes[0].Name)
	assert.Equal(t, []uint32{0, 1, 2}, scene.Meshes[0].Indices)
	assert.Equal(t, PrimitiveCube, scene.Meshes[1].Primitive)
	require.Len(t, scene.Objects, 2)
	require.Len(t, scene.Grids, 1)
	assert.Equal(t, [3]uint32{3, 1, 2}, scene.Grids[0].Count)
}

func TestParseSceneErrors(t *testing.T) {
	_, err := ParseScene([]byte("[[mesh]]\nname = \n"))
	assert.ErrorContains(t, err, "parse error at")

	_, err = ParseScene([]byte("[[mesh]]\nprimitive = \"cube\"\n"))
	assert.ErrorContains(t, err, "without a name")

	_, err = ParseScene([]byte("[[mesh]]\nname = \"a\"\n[[mesh]]\nname = \"a\"\n"))
	assert.ErrorContains(t, err, "declared twice")
}

func TestMeshGeometry(t *testing.T) {
	scene, err := ParseScene([]byte(demoScene))
	require.NoError(t, err)

	v, i, err := scene.Meshes[0].Geometry()
	require.NoError(t, err)
	assert.Len(t, v, 9)
	assert.Equal(t, []uint32{0, 1, 2}, i)

	v, i, err = scene.Meshes[1].Geometry()
	require.NoError(t, err)
	assert.Len(t, v, 24*3)
	assert.Len(t, i, 36)

	_, _, err = (&MeshDefinition{Name: "x", Primitive: "torus"}).Geometry()
	assert.Error(t, err)
	_, _, err = (&MeshDefinition{Name: "empty"}).Geometry()
	assert.Error(t, err)
}

func TestInstancesExpandsGrids(t *testing.T) {
	scene, err := ParseScene([]byte(demoScene))
	require.NoError(t, err)

	objects := scene.Instances()
	require.Len(t, objects, 2+6)

	assert.Equal(t, "triangle", objects[0].Mesh)
	assert.Equal(t, math.NewVec3One(), objects[0].Scale)
	assert.Equal(t, math.NewVec3(2, 2, 2), objects[1].Scale)

	grid := objects[2:]
	for _, o := range grid {
		assert.Equal(t, "cube", o.Mesh)
		assert.Equal(t, float32(10), o.Position.Y)
	}
	assert.Equal(t, math.NewVec3(-2, 10, -1), grid[0].Position)
	assert.Equal(t, math.NewVec3(2, 10, 1), grid[5].Position)
}

func TestSceneObjectModel(t *testing.T) {
	o := SceneObject{Position: math.NewVec3(1, 2, 3), Scale: math.NewVec3One()}
	m := o.Model(0)
	assert.Equal(t, float32(1), m.Data[12])
	assert.Equal(t, float32(2), m.Data[13])
	assert.Equal(t, float32(3), m.Data[14])

	spinning := SceneObject{Scale: math.NewVec3One(), Spin: math.NewVec3(0, 90, 0)}
	rotated := SceneObject{Scale: math.NewVec3One(), Rotation: math.NewVec3(0, 90, 0)}
	a, b := spinning.Model(1), rotated.Model(0)
	for k := range a.Data {
		assert.InDelta(t, b.Data[k], a.Data[k], 1e-5)
	}
}

func TestLoadScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(demoScene), 0o644))
	scene, err := LoadScene(path)
	require.NoError(t, err)
	assert.Len(t, scene.Meshes, 2)

	_, err = LoadScene(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
