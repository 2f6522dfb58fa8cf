package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// VulkanResultString names a result the way the Vulkan registry does.
func VulkanResultString(result vk.Result) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.EventSet:
		return "VK_EVENT_SET"
	case vk.EventReset:
		return "VK_EVENT_RESET"
	case vk.Incomplete:
		return "VK_INCOMPLETE"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED"
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL"
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	case vk.ErrorNativeWindowInUse:
		return "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR"
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	case vk.ErrorIncompatibleDisplay:
		return "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	case vk.ErrorInvalidExternalHandle:
		return "VK_ERROR_INVALID_EXTERNAL_HANDLE"
	case vk.ErrorFragmentation:
		return "VK_ERROR_FRAGMENTATION"
	case vk.ErrorUnknown:
		return "VK_ERROR_UNKNOWN"
	default:
		return fmt.Sprintf("VkResult(%d)", int32(result))
	}
}

// resultError converts a Vulkan result into a driver error. Success maps to
// nil; codes the renderer reacts to map to the matching driver sentinel.
func resultError(op string, result vk.Result) error {
	var sentinel error
	switch result {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		sentinel = driver.ErrSuboptimal
	case vk.ErrorOutOfDate:
		sentinel = driver.ErrOutOfDate
	case vk.Timeout, vk.NotReady:
		sentinel = driver.ErrTimeout
	case vk.ErrorDeviceLost, vk.ErrorSurfaceLost:
		sentinel = driver.ErrDeviceLost
	case vk.ErrorOutOfHostMemory:
		sentinel = driver.ErrNoHostMemory
	case vk.ErrorOutOfDeviceMemory, vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
		sentinel = driver.ErrNoDeviceMemory
	case vk.ErrorIncompatibleDriver, vk.ErrorLayerNotPresent, vk.ErrorExtensionNotPresent:
		sentinel = driver.ErrNotInstalled
	default:
		sentinel = driver.ErrFatal
	}
	return fmt.Errorf("%w: %s returned %s", sentinel, op, VulkanResultString(result))
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
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

// cString reads a fixed size, NUL terminated name as reported by the driver.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
