package systems

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer/headless"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

func TestUploadAssignsSequentialPlacements(t *testing.T) {
	arena, _ := newTestArena(t, 1024, 1024)

	v, i := triangle()
	tri, err := arena.Upload("triangle", v, i)
	require.NoError(t, err)
	v, i = square()
	sq, err := arena.Upload("square", v, i)
	require.NoError(t, err)

	assert.Equal(t, metadata.MeshHandle(1), tri)
	assert.Equal(t, metadata.MeshHandle(2), sq)

	p, err := arena.GetPlacement(tri)
	require.NoError(t, err)
	assert.Equal(t, metadata.MeshPlacement{IndexCount: 3, FirstIndex: 0, BaseVertex: 0, VertexCount: 3}, p)

	p, err = arena.GetPlacement(sq)
	require.NoError(t, err)
	assert.Equal(t, metadata.MeshPlacement{IndexCount: 6, FirstIndex: 3, BaseVertex: 3, VertexCount: 4}, p)

	stats := arena.Stats()
	assert.Equal(t, uint32(2), stats.MeshCount)
	assert.Equal(t, uint64(7*12), stats.VertexBytes)
	assert.Equal(t, uint64(9*4), stats.IndexBytes)
}

func TestUploadCopiesIntoSharedBuffers(t *testing.T) {
	arena, _ := newTestArena(t, 1024, 1024)
	v, i := triangle()
	_, err := arena.Upload("triangle", v, i)
	require.NoError(t, err)
	sv, si := square()
	sq, err := arena.Upload("square", sv, si)
	require.NoError(t, err)

	// the caller's slices can be reused right away
	sv[0] = 42
	si[0] = 3

	p, _ := arena.GetPlacement(sq)
	vr, ir := p.VertexRange(), p.IndexRange()
	vertexBytes := arena.VertexBuffer().(*headless.Buffer).Bytes()
	indexBytes := arena.IndexBuffer().(*headless.Buffer).Bytes()

	wantV, wantI := square()
	assert.Equal(t, metadata.EncodeFloat32s(wantV), vertexBytes[vr.Offset:vr.End()])
	assert.Equal(t, metadata.EncodeUint32s(wantI), indexBytes[ir.Offset:ir.End()])
}

func TestLookup(t *testing.T) {
	arena, _ := newTestArena(t, 1024, 1024)
	v, i := triangle()
	h, err := arena.Upload("triangle", v, i)
	require.NoError(t, err)

	assert.Equal(t, h, arena.Lookup("triangle"))
	assert.Equal(t, metadata.InvalidMeshHandle, arena.Lookup("missing"))
	assert.Equal(t, metadata.InvalidMeshHandle, arena.Lookup(""))
}

func TestUploadDuplicateName(t *testing.T) {
	arena, _ := newTestArena(t, 1024, 1024)
	v, i := triangle()
	_, err := arena.Upload("mesh", v, i)
	require.NoError(t, err)
	before := arena.Stats()

	v, i = square()
	h, err := arena.Upload("mesh", v, i)
	assert.Equal(t, metadata.InvalidMeshHandle, h)
	assert.ErrorIs(t, err, core.ErrDuplicateName)
	var dup *core.DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "mesh", dup.Name)
	assert.Equal(t, uint32(1), dup.Handle)
	assert.Equal(t, before, arena.Stats())
}

func TestUploadCapacityBoundary(t *testing.T) {
	// room for five vertices and nine indices
	arena, _ := newTestArena(t, 5*metadata.VertexStride, 9*metadata.IndexSize)
	v, i := triangle()
	_, err := arena.Upload("triangle", v, i)
	require.NoError(t, err)
	before := arena.Stats()

	v, i = square()
	h, err := arena.Upload("square", v, i)
	assert.Equal(t, metadata.InvalidMeshHandle, h)
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
	var capErr *core.CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "vertex buffer", capErr.Resource)
	assert.Equal(t, uint64(48), capErr.Requested)
	assert.Equal(t, uint64(24), capErr.Available)

	// nothing moved, the name stays free
	assert.Equal(t, before, arena.Stats())
	assert.Equal(t, metadata.InvalidMeshHandle, arena.Lookup("square"))

	// a mesh that fits exactly lands right after the triangle
	h, err = arena.Upload("sliver", []float32{0, 0, 0, 1, 1, 1}, []uint32{0, 1, 0, 1, 0, 1})
	require.NoError(t, err)
	p, _ := arena.GetPlacement(h)
	assert.Equal(t, int32(3), p.BaseVertex)
	assert.Equal(t, uint32(3), p.FirstIndex)
	assert.Equal(t, arena.Stats().VertexCapacity, arena.Stats().VertexBytes)

	// the index buffer is full too now
	_, err = arena.Upload("one-more", []float32{0, 0, 0}, []uint32{0, 0, 0})
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
}

func TestUploadIndexCapacity(t *testing.T) {
	arena, _ := newTestArena(t, 1024, 4*metadata.IndexSize)
	v, i := square()
	_, err := arena.Upload("square", v, i)
	var capErr *core.CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, "index buffer", capErr.Resource)
	assert.Zero(t, arena.Stats().VertexBytes)
}

func TestUploadRejectsInvalidGeometry(t *testing.T) {
	arena, _ := newTestArena(t, 1024, 1024)
	cases := map[string]struct {
		name     string
		vertices []float32
		indices  []uint32
	}{
		"empty name":        {"", []float32{0, 0, 0}, []uint32{0, 0, 0}},
		"partial vertex":    {"a", []float32{0, 0}, []uint32{0, 0, 0}},
		"no vertices":       {"b", nil, []uint32{0, 0, 0}},
		"partial triangle":  {"c", []float32{0, 0, 0}, []uint32{0, 0}},
		"index out of mesh": {"d", []float32{0, 0, 0, 1, 1, 1, 2, 2, 2}, []uint32{0, 1, 3}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := arena.Upload(tc.name, tc.vertices, tc.indices)
			assert.ErrorIs(t, err, core.ErrInvalidGeometry)
		})
	}
	assert.Zero(t, arena.Stats().MeshCount)
}

func TestGetPlacementUnknownHandle(t *testing.T) {
	arena, _ := newTestArena(t, 1024, 1024)
	v, i := triangle()
	_, err := arena.Upload("triangle", v, i)
	require.NoError(t, err)

	for _, h := range []metadata.MeshHandle{metadata.InvalidMeshHandle, 2, 99} {
		_, err := arena.GetPlacement(h)
		assert.ErrorIs(t, err, core.ErrUnknownMeshHandle, "handle %d", h)
	}
}

func TestPlacementsNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		vertexCap := uint64(rng.Intn(200)+1) * metadata.VertexStride
		indexCap := uint64(rng.Intn(600)+3) * metadata.IndexSize
		arena, _ := newTestArena(t, vertexCap, indexCap)

		var handles []metadata.MeshHandle
		for n := 0; n < 40; n++ {
			vc := rng.Intn(12) + 1
			tris := rng.Intn(8) + 1
			vertices := make([]float32, vc*3)
			indices := make([]uint32, tris*3)
			for k := range indices {
				indices[k] = uint32(rng.Intn(vc))
			}
			h, err := arena.Upload(string(rune('A'+n)), vertices, indices)
			if err != nil {
				require.ErrorIs(t, err, core.ErrCapacityExceeded)
				continue
			}
			handles = append(handles, h)
		}

		var prev metadata.MeshPlacement
		for k, h := range handles {
			p, err := arena.GetPlacement(h)
			require.NoError(t, err)
			require.LessOrEqual(t, p.VertexRange().End(), vertexCap)
			require.LessOrEqual(t, p.IndexRange().End(), indexCap)
			if k > 0 {
				require.GreaterOrEqual(t, p.BaseVertex, prev.BaseVertex)
				require.GreaterOrEqual(t, p.FirstIndex, prev.FirstIndex)
			}
			for _, other := range handles[:k] {
				q, _ := arena.GetPlacement(other)
				require.False(t, p.VertexRange().Overlaps(q.VertexRange()), "vertex ranges of %d and %d overlap", h, other)
				require.False(t, p.IndexRange().Overlaps(q.IndexRange()), "index ranges of %d and %d overlap", h, other)
			}
			prev = p
		}
	}
}
