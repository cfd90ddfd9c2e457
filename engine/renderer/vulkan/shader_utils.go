package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

var shaderStageBits = map[metadata.ShaderStage]vk.ShaderStageFlagBits{
	metadata.ShaderStageVertex:  vk.ShaderStageVertexBit,
	metadata.ShaderStagePixel:   vk.ShaderStageFragmentBit,
	metadata.ShaderStageCompute: vk.ShaderStageComputeBit,
}

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The shader module handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// NewShaderModule wraps SPIR-V bytecode in a shader module. The module is
// only needed until the pipeline using it has been created.
func NewShaderModule(d *Device, bytecode metadata.ShaderBytecode) (*VulkanShaderStage, error) {
	words, err := spirvWords(bytecode.Code)
	if err != nil {
		return nil, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(bytecode.Code)),
		PCode:    words,
	}
	stage := &VulkanShaderStage{}
	if err := resultError("vkCreateShaderModule", vk.CreateShaderModule(d.LogicalDevice, &createInfo, d.context.Allocator, &stage.Handle)); err != nil {
		return nil, err
	}

	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageBits[bytecode.Stage],
		Module: stage.Handle,
		PName:  VulkanSafeString(bytecode.EntryPoint),
	}
	return stage, nil
}

func (s *VulkanShaderStage) Destroy(d *Device) {
	if s.Handle != nil {
		vk.DestroyShaderModule(d.LogicalDevice, s.Handle, d.context.Allocator)
		s.Handle = nil
	}
}
