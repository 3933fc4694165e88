package metadata

type VertexInputRate int

const (
	VERTEX_INPUT_RATE_VERTEX VertexInputRate = iota
	VERTEX_INPUT_RATE_INSTANCE
)

type VertexAttributeFormat int

const (
	VERTEX_ATTRIBUTE_FORMAT_FLOAT32X3 VertexAttributeFormat = iota
	VERTEX_ATTRIBUTE_FORMAT_FLOAT32X4
)

type VertexBinding struct {
	Binding   uint32
	Stride    uint32
	InputRate VertexInputRate
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   VertexAttributeFormat
	Offset   uint32
}

/**
 * @brief Describes how the shared vertex buffer and the instance stream
 * feed the vertex stage.
 */
type VertexLayout struct {
	Bindings   []VertexBinding
	Attributes []VertexAttribute
}

const (
	VertexBindingPosition uint32 = 0
	VertexBindingInstance uint32 = 1
)

/**
 * @brief The instanced layout: location 0 is the position (binding 0, per
 * vertex); locations 1-4 are the four columns of the model matrix (binding
 * 1, advanced once per instance).
 */
func NewInstancedVertexLayout() *VertexLayout {
	layout := &VertexLayout{
		Bindings: []VertexBinding{
			{Binding: VertexBindingPosition, Stride: uint32(VertexStride), InputRate: VERTEX_INPUT_RATE_VERTEX},
			{Binding: VertexBindingInstance, Stride: uint32(InstanceStride), InputRate: VERTEX_INPUT_RATE_INSTANCE},
		},
		Attributes: []VertexAttribute{
			{Location: 0, Binding: VertexBindingPosition, Format: VERTEX_ATTRIBUTE_FORMAT_FLOAT32X3, Offset: 0},
		},
	}
	for col := uint32(0); col < 4; col++ {
		layout.Attributes = append(layout.Attributes, VertexAttribute{
			Location: 1 + col,
			Binding:  VertexBindingInstance,
			Format:   VERTEX_ATTRIBUTE_FORMAT_FLOAT32X4,
			Offset:   col * 16,
		})
	}
	return layout
}
