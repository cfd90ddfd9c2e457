package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.Suboptimal:                "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorSurfaceLost:          "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:    "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorIncompatibleDisplay:  "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorFragmentation:        "VK_ERROR_FRAGMENTATION",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// resultError wraps a failed call in a core.APIError carrying the VkResult.
// Success yields nil.
func resultError(op string, result vk.Result) error {
	if result == vk.Success {
		return nil
	}
	err := core.NewAPIError(op, int32(result), VulkanResultString(result))
	core.LogError("%s", err)
	return err
}

func apiError(op string, format string, args ...interface{}) error {
	err := core.NewAPIError(op, int32(vk.ErrorInitializationFailed), fmt.Sprintf(format, args...))
	core.LogError("%s", err)
	return err
}

var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != endChar {
		return s + string(endChar)
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// cString turns a fixed-size, NUL padded name array into a string.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == endChar {
			return string(arr[:i])
		}
	}
	return string(arr)
}

// spirvWords repacks SPIR-V bytes as the little-endian words Vulkan consumes.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("bad SPIR-V magic %#x", words[0])
	}
	return words, nil
}

var vkFormats = map[metadata.Format]vk.Format{
	metadata.FormatR32Float:          vk.FormatR32Sfloat,
	metadata.FormatR32G32Float:       vk.FormatR32g32Sfloat,
	metadata.FormatR32G32B32Float:    vk.FormatR32g32b32Sfloat,
	metadata.FormatR32G32B32A32Float: vk.FormatR32g32b32a32Sfloat,
	metadata.FormatR32Uint:           vk.FormatR32Uint,
	metadata.FormatR32G32Uint:        vk.FormatR32g32Uint,
	metadata.FormatR32G32B32Uint:     vk.FormatR32g32b32Uint,
	metadata.FormatR32G32B32A32Uint:  vk.FormatR32g32b32a32Uint,
	metadata.FormatR32Sint:           vk.FormatR32Sint,
	metadata.FormatR32G32Sint:        vk.FormatR32g32Sint,
	metadata.FormatR32G32B32Sint:     vk.FormatR32g32b32Sint,
	metadata.FormatR32G32B32A32Sint:  vk.FormatR32g32b32a32Sint,
	metadata.FormatR8G8B8A8Unorm:     vk.FormatR8g8b8a8Unorm,
	metadata.FormatB8G8R8A8Unorm:     vk.FormatB8g8r8a8Unorm,
	metadata.FormatR16G16Float:       vk.FormatR16g16Sfloat,
	metadata.FormatD32Float:          vk.FormatD32Sfloat,
}

func vkFormat(f metadata.Format) vk.Format {
	if vf, ok := vkFormats[f]; ok {
		return vf
	}
	return vk.FormatUndefined
}

var compareOps = map[metadata.CompareFunc]vk.CompareOp{
	metadata.CompareFuncAlways:       vk.CompareOpAlways,
	metadata.CompareFuncLess:         vk.CompareOpLess,
	metadata.CompareFuncGreaterEqual: vk.CompareOpGreaterOrEqual,
}

// usage is how one resource state is expressed to a barrier.
type usage struct {
	layout vk.ImageLayout
	access vk.AccessFlags
}

func accessFlags(bits ...vk.AccessFlagBits) vk.AccessFlags {
	var f vk.AccessFlags
	for _, b := range bits {
		f |= vk.AccessFlags(b)
	}
	return f
}

// usageOf maps a resource state to the image layout and memory access it
// implies. Depth images read by shaders keep a depth read-only layout.
func usageOf(state metadata.ResourceState, depth bool) usage {
	switch state {
	case metadata.ResourceStateRenderTarget:
		return usage{vk.ImageLayoutColorAttachmentOptimal,
			accessFlags(vk.AccessColorAttachmentReadBit, vk.AccessColorAttachmentWriteBit)}
	case metadata.ResourceStatePixelShaderResource, metadata.ResourceStateNonPixelShaderResource:
		return usage{vk.ImageLayoutShaderReadOnlyOptimal, accessFlags(vk.AccessShaderReadBit)}
	case metadata.ResourceStateDepthWrite:
		return usage{vk.ImageLayoutDepthStencilAttachmentOptimal,
			accessFlags(vk.AccessDepthStencilAttachmentReadBit, vk.AccessDepthStencilAttachmentWriteBit)}
	case metadata.ResourceStateDepthRead:
		return usage{vk.ImageLayoutDepthStencilReadOnlyOptimal,
			accessFlags(vk.AccessDepthStencilAttachmentReadBit, vk.AccessShaderReadBit)}
	case metadata.ResourceStateUnorderedAccess:
		return usage{vk.ImageLayoutGeneral, accessFlags(vk.AccessShaderReadBit, vk.AccessShaderWriteBit)}
	case metadata.ResourceStateGenericRead:
		layout := vk.ImageLayoutShaderReadOnlyOptimal
		if depth {
			layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
		}
		return usage{layout, accessFlags(vk.AccessShaderReadBit, vk.AccessUniformReadBit,
			vk.AccessVertexAttributeReadBit, vk.AccessIndexReadBit, vk.AccessTransferReadBit)}
	case metadata.ResourceStateCopyDest:
		return usage{vk.ImageLayoutTransferDstOptimal, accessFlags(vk.AccessTransferWriteBit)}
	case metadata.ResourceStateCopySource:
		return usage{vk.ImageLayoutTransferSrcOptimal, accessFlags(vk.AccessTransferReadBit)}
	case metadata.ResourceStateVertexAndConstantBuffer:
		return usage{vk.ImageLayoutGeneral, accessFlags(vk.AccessVertexAttributeReadBit, vk.AccessUniformReadBit)}
	case metadata.ResourceStateIndexBuffer:
		return usage{vk.ImageLayoutGeneral, accessFlags(vk.AccessIndexReadBit)}
	case metadata.ResourceStatePresent:
		return usage{vk.ImageLayoutPresentSrc, 0}
	}
	return usage{vk.ImageLayoutGeneral, accessFlags(vk.AccessMemoryReadBit, vk.AccessMemoryWriteBit)}
}

// computeAccess is every access bit a compute-only queue may name.
var computeAccess = accessFlags(vk.AccessShaderReadBit, vk.AccessShaderWriteBit, vk.AccessUniformReadBit,
	vk.AccessTransferReadBit, vk.AccessTransferWriteBit, vk.AccessMemoryReadBit, vk.AccessMemoryWriteBit,
	vk.AccessIndirectCommandReadBit)
