package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

/**
 * @brief A buffer in host visible, host coherent memory that stays mapped
 * until it is destroyed. Writes land directly in device memory.
 */
type VulkanBuffer struct {
	Handle     vk.Buffer
	Memory     vk.DeviceMemory
	Usage      vk.BufferUsageFlags
	bufferType metadata.RenderBufferType
	totalSize  uint64
	// Host view of the whole allocation.
	mapped []byte
}

func bufferUsage(renderbufferType metadata.RenderBufferType) (vk.BufferUsageFlags, error) {
	switch renderbufferType {
	case metadata.RENDERBUFFER_TYPE_VERTEX, metadata.RENDERBUFFER_TYPE_INSTANCE:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), nil
	case metadata.RENDERBUFFER_TYPE_INDEX:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), nil
	case metadata.RENDERBUFFER_TYPE_INDIRECT:
		return vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit), nil
	default:
		return 0, fmt.Errorf("unsupported render buffer type %s", renderbufferType)
	}
}

func BufferCreate(context *VulkanContext, renderbufferType metadata.RenderBufferType, totalSize uint64) (*VulkanBuffer, error) {
	usage, err := bufferUsage(renderbufferType)
	if err != nil {
		return nil, err
	}
	outBuffer := &VulkanBuffer{
		Usage:      usage,
		bufferType: renderbufferType,
		totalSize:  totalSize,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(totalSize),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive, // NOTE: Only used in one queue.
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("vkCreateBuffer (%s) failed with %s", renderbufferType, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	outBuffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, outBuffer.Handle, &requirements)
	requirements.Deref()

	memoryFlags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryFlags)
	if memoryIndex == -1 {
		outBuffer.Destroy(context)
		err := fmt.Errorf("unable to create %s buffer: no host visible coherent memory type", renderbufferType)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		outBuffer.Destroy(context)
		err := fmt.Errorf("unable to allocate %d bytes for %s buffer: %s", requirements.Size, renderbufferType, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	outBuffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, outBuffer.Handle, outBuffer.Memory, 0); res != vk.Success {
		outBuffer.Destroy(context)
		err := fmt.Errorf("vkBindBufferMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, outBuffer.Memory, 0, vk.DeviceSize(totalSize), 0, &ptr); res != vk.Success {
		outBuffer.Destroy(context)
		err := fmt.Errorf("vkMapMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	outBuffer.mapped = unsafe.Slice((*byte)(ptr), totalSize)
	clear(outBuffer.mapped)

	return outBuffer, nil
}

func (vb *VulkanBuffer) Type() metadata.RenderBufferType {
	return vb.bufferType
}

func (vb *VulkanBuffer) Size() uint64 {
	return vb.totalSize
}

func (vb *VulkanBuffer) LoadRange(offset uint64, data []byte) error {
	if vb.mapped == nil {
		return fmt.Errorf("write into an unmapped %s buffer", vb.bufferType)
	}
	end := offset + uint64(len(data))
	if end > vb.totalSize {
		return fmt.Errorf("write %d..%d past the end of a %d byte %s buffer", offset, end, vb.totalSize, vb.bufferType)
	}
	copy(vb.mapped[offset:end], data)
	return nil
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	if vb.mapped != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, vb.Memory)
		vb.mapped = nil
	}
	if vb.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vb.Memory, context.Allocator)
		vb.Memory = nil
	}
	if vb.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
		vb.Handle = nil
	}
	vb.totalSize = 0
}
