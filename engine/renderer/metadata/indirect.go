package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/strata/engine/math"
)

const (
	// IndirectCommandStride matches VkDrawIndexedIndirectCommand.
	IndirectCommandStride uint64 = 5 * 4
	// Mat4Size is one column-major float32 4x4 matrix.
	Mat4Size uint64 = 16 * 4
	// InstanceStride is the size of one per-instance record.
	InstanceStride = Mat4Size
)

/**
 * @brief One indexed draw inside a multi-draw-indirect call. Field order is
 * the GPU layout.
 */
type IndirectDrawCommand struct {
	/** @brief Number of indices to draw (elementCount). */
	IndexCount uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	/** @brief Index of this command's first record in the instance stream. */
	BaseInstance uint32
}

// Encode writes the command into dst, which must hold IndirectCommandStride bytes.
func (c IndirectDrawCommand) Encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], c.IndexCount)
	binary.LittleEndian.PutUint32(dst[4:], c.InstanceCount)
	binary.LittleEndian.PutUint32(dst[8:], c.FirstIndex)
	binary.LittleEndian.PutUint32(dst[12:], uint32(c.BaseVertex))
	binary.LittleEndian.PutUint32(dst[16:], c.BaseInstance)
}

func DecodeIndirectDrawCommand(src []byte) IndirectDrawCommand {
	return IndirectDrawCommand{
		IndexCount:    binary.LittleEndian.Uint32(src[0:]),
		InstanceCount: binary.LittleEndian.Uint32(src[4:]),
		FirstIndex:    binary.LittleEndian.Uint32(src[8:]),
		BaseVertex:    int32(binary.LittleEndian.Uint32(src[12:])),
		BaseInstance:  binary.LittleEndian.Uint32(src[16:]),
	}
}

// EncodeIndirectCommands packs a command table.
func EncodeIndirectCommands(commands []IndirectDrawCommand) []byte {
	out := make([]byte, uint64(len(commands))*IndirectCommandStride)
	for i, c := range commands {
		c.Encode(out[uint64(i)*IndirectCommandStride:])
	}
	return out
}

// DecodeIndirectCommands unpacks count commands from src.
func DecodeIndirectCommands(src []byte, count uint32) []IndirectDrawCommand {
	out := make([]IndirectDrawCommand, count)
	for i := range out {
		out[i] = DecodeIndirectDrawCommand(src[uint64(i)*IndirectCommandStride:])
	}
	return out
}

// EncodeMat4 writes m into dst, which must hold Mat4Size bytes.
func EncodeMat4(dst []byte, m math.Mat4) {
	for i, f := range m.Data {
		binary.LittleEndian.PutUint32(dst[i*4:], gomath.Float32bits(f))
	}
}

func DecodeMat4(src []byte) math.Mat4 {
	var m math.Mat4
	for i := range m.Data {
		m.Data[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return m
}

// EncodeInstances packs transforms back to back, InstanceStride apart.
func EncodeInstances(transforms []math.Mat4) []byte {
	out := make([]byte, uint64(len(transforms))*InstanceStride)
	for i, m := range transforms {
		EncodeMat4(out[uint64(i)*InstanceStride:], m)
	}
	return out
}

func DecodeInstances(src []byte, count uint32) []math.Mat4 {
	out := make([]math.Mat4, count)
	for i := range out {
		out[i] = DecodeMat4(src[uint64(i)*InstanceStride:])
	}
	return out
}

// EncodeFloat32s packs vertex positions.
func EncodeFloat32s(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, f := range values {
		binary.LittleEndian.PutUint32(out[i*4:], gomath.Float32bits(f))
	}
	return out
}

// EncodeUint32s packs indices.
func EncodeUint32s(values []uint32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// EncodeFrameUniforms packs the push constant block.
func EncodeFrameUniforms(u FrameUniforms) []byte {
	out := make([]byte, FrameUniformsSize)
	EncodeMat4(out, u.View)
	EncodeMat4(out[Mat4Size:], u.Projection)
	return out
}
