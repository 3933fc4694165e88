package math

import "github.com/spaghettifunk/strata/engine/core"

// Position-only primitives. Vertices are packed float triples and indices
// are counter-clockwise u32 triangles.

// GenerateTriangle returns a triangle in the XY plane centred on the origin.
func GenerateTriangle(size float32) ([]float32, []uint32) {
	if size == 0 {
		core.LogWarn("Triangle size must be nonzero. Defaulting to one.")
		size = 1.0
	}
	h := size * 0.5
	vertices := []float32{
		-h, -h, 0,
		h, -h, 0,
		0, h, 0,
	}
	return vertices, []uint32{0, 1, 2}
}

// GenerateQuad returns a width x height rectangle in the XY plane.
func GenerateQuad(width, height float32) ([]float32, []uint32) {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	hw, hh := width*0.5, height*0.5
	vertices := []float32{
		-hw, -hh, 0,
		hw, -hh, 0,
		hw, hh, 0,
		-hw, hh, 0,
	}
	return vertices, []uint32{0, 1, 2, 2, 3, 0}
}

// GenerateCube returns an axis-aligned box centred on the origin with
// 4 vertices per face so faces do not share corners.
func GenerateCube(width, height, depth float32) ([]float32, []uint32) {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1.0
	}
	min_x, max_x := -width*0.5, width*0.5
	min_y, max_y := -height*0.5, height*0.5
	min_z, max_z := -depth*0.5, depth*0.5

	faces := [6][4]Vec3{
		// Front
		{{min_x, min_y, max_z}, {max_x, min_y, max_z}, {max_x, max_y, max_z}, {min_x, max_y, max_z}},
		// Back
		{{max_x, min_y, min_z}, {min_x, min_y, min_z}, {min_x, max_y, min_z}, {max_x, max_y, min_z}},
		// Left
		{{min_x, min_y, min_z}, {min_x, min_y, max_z}, {min_x, max_y, max_z}, {min_x, max_y, min_z}},
		// Right
		{{max_x, min_y, max_z}, {max_x, min_y, min_z}, {max_x, max_y, min_z}, {max_x, max_y, max_z}},
		// Bottom
		{{min_x, min_y, min_z}, {max_x, min_y, min_z}, {max_x, min_y, max_z}, {min_x, min_y, max_z}},
		// Top
		{{min_x, max_y, max_z}, {max_x, max_y, max_z}, {max_x, max_y, min_z}, {min_x, max_y, min_z}},
	}

	vertices := make([]float32, 0, 6*4*3)
	indices := make([]uint32, 0, 6*6)
	for i, face := range faces {
		for _, p := range face {
			vertices = append(vertices, p.X, p.Y, p.Z)
		}
		base := uint32(i * 4)
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, indices
}
