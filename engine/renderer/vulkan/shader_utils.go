package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/strata/engine/assets/loaders"
	"github.com/spaghettifunk/strata/engine/core"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// NewShaderStage loads a compiled SPIR-V file and wraps it in a pipeline stage.
func NewShaderStage(context *VulkanContext, path string, shaderStageFlag vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	module, err := loaders.LoadSPIRV(path)
	if err != nil {
		core.LogError("unable to read shader module %s: %s", path, err)
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: module.CodeSize,
		PCode:    module.Code,
	}

	stage := &VulkanShaderStage{}
	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("vkCreateShaderModule failed for %s with %s", path, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	stage.Handle = handle

	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageFlag,
		Module: stage.Handle,
		PName:  VulkanSafeString("main"),
	}

	core.LogDebug("Shader module %s loaded (%d bytes).", path, module.CodeSize)
	return stage, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nil {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nil
	}
}
