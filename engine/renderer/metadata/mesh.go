package metadata

import (
	"github.com/spaghettifunk/strata/engine/math"
)

/**
 * @brief One draw request: a mesh placed in the world. Built by the caller
 * every frame and consumed by the batcher on submit.
 */
type Renderable struct {
	Mesh      MeshHandle
	Transform math.Mat4
}

/**
 * @brief All instances of one mesh for the current frame, in submission order.
 */
type DrawBatch struct {
	Mesh       MeshHandle
	Transforms []math.Mat4
}

func (b *DrawBatch) InstanceCount() uint32 {
	return uint32(len(b.Transforms))
}
