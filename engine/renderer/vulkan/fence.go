package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/strata/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := fmt.Errorf("failed to create fence: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// FenceWait reports false on timeout. A lost device is returned as core.ErrDeviceLost.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) (bool, error) {
	// If already signaled, do not wait.
	if vf.IsSignaled {
		return true, nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.Timeout:
		return false, nil
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return false, core.ErrDeviceLost
	case vk.ErrorOutOfHostMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_HOST_MEMORY.")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
	default:
		core.LogError("vk_fence_wait - An unknown error has occurred.")
	}
	return false, fmt.Errorf("vkWaitForFences failed with %s", VulkanResultString(result, true))
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			err := fmt.Errorf("failed to reset fence: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}

/**
 * @brief A fence handed out by FenceInsert. It is queued behind an empty
 * submission so it signals once every earlier submission on the graphics
 * queue has finished. Fences inserted while a frame is being recorded are
 * submitted right after that frame.
 */
type SubmissionFence struct {
	renderer  *VulkanRenderer
	fence     *VulkanFence
	submitted bool
	destroyed bool
}

func (sf *SubmissionFence) Wait(timeoutNs uint64) (bool, error) {
	if sf.destroyed {
		return false, fmt.Errorf("wait on a destroyed fence")
	}
	if !sf.submitted {
		if sf.renderer.frameOpen {
			// Goes out with the frame in EndFrame.
			return false, nil
		}
		if err := sf.renderer.submitFences([]*SubmissionFence{sf}); err != nil {
			return false, err
		}
	}
	return sf.fence.FenceWait(sf.renderer.context, timeoutNs)
}

func (sf *SubmissionFence) Destroy() {
	if sf.destroyed {
		return
	}
	sf.destroyed = true
	sf.renderer.releaseFence(sf)
}
