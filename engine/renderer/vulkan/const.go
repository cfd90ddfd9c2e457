package vulkan

import "github.com/spaghettifunk/hawk/engine/renderer/metadata"

const spirvMagic uint32 = 0x07230203

/**
 * @brief Byte stride between descriptor handles per heap type. Handles are
 * opaque; only the spacing is observable.
 */
var descriptorIncrements = map[metadata.DescriptorHeapType]uint32{
	metadata.DescriptorHeapTypeRTV:       32,
	metadata.DescriptorHeapTypeDSV:       8,
	metadata.DescriptorHeapTypeCBVSRVUAV: 32,
}

/** @brief Descriptor sets one command list may allocate per recording. */
const VULKAN_MAX_DESCRIPTOR_SETS uint32 = 1024

/** @brief Per-type descriptor capacity of each command list's pool. */
const (
	VULKAN_MAX_UNIFORM_BUFFERS uint32 = 2048
	VULKAN_MAX_SAMPLED_IMAGES  uint32 = 4096
	VULKAN_MAX_STORAGE_IMAGES  uint32 = 1024
)

/** @brief Push constants are capped at the guaranteed minimum. */
const VULKAN_MAX_PUSH_CONSTANTS_SIZE uint32 = 128

// noTimeout waits forever. Fences have no timeout in the device model.
const noTimeout = ^uint64(0)
