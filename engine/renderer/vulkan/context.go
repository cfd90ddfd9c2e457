package vulkan

import (
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
)

// SurfaceProvider is the window the device presents to.
type SurfaceProvider interface {
	VulkanProcAddress() unsafe.Pointer
	RequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}) (uintptr, error)
}

/**
 * @brief Instance level state: the loader, the instance with its optional
 * debug report callback, and the window surface.
 */
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback
	validation     bool
}

const validationLayer = "VK_LAYER_KHRONOS_validation"

func NewVulkanContext(appName string, provider SurfaceProvider, validation bool) (*VulkanContext, error) {
	procAddr := provider.VulkanProcAddress()
	if procAddr == nil {
		return nil, apiError("vkGetInstanceProcAddr", "loader not found")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, apiError("vkInit", "%s", err)
	}

	vc := &VulkanContext{validation: validation}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Hawk"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string(nil), provider.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1 // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	}

	var layers []string
	if validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if !layerAvailable(validationLayer) {
			core.LogWarn("%s is not installed, continuing without validation", validationLayer)
			vc.validation = false
			extensions = extensions[:len(extensions)-1]
		} else {
			layers = []string{validationLayer}
		}
	}
	for _, ext := range extensions {
		core.LogDebug("instance extension: %s", ext)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := resultError("vkCreateInstance", vk.CreateInstance(&createInfo, vc.Allocator, &vc.Instance)); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(vc.Instance); err != nil {
		vc.Destroy()
		return nil, apiError("vkInitInstance", "%s", err)
	}
	core.LogInfo("Vulkan instance created.")

	if vc.validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := resultError("vkCreateDebugReportCallback", vk.CreateDebugReportCallback(vc.Instance, &debugCreateInfo, vc.Allocator, &dbg)); err != nil {
			vc.Destroy()
			return nil, err
		}
		vc.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	surface, err := provider.CreateWindowSurface(vc.Instance)
	if err != nil {
		vc.Destroy()
		return nil, apiError("glfwCreateWindowSurface", "%s", err)
	}
	vc.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")
	return vc, nil
}

func layerAvailable(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (vc *VulkanContext) Destroy() {
	if vc.Surface != vk.NullSurface {
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}
	if vc.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
		vc.debugMessenger = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
