package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
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

func resultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// check wraps a failed call into one of the core errors when there is a
// matching one.
func check(result vk.Result, what string) error {
	switch result {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return fmt.Errorf("%s: %w", what, core.ErrOutdated)
	case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
		return fmt.Errorf("%s: %w", what, core.ErrPoolExhausted)
	case vk.ErrorDeviceLost:
		return fmt.Errorf("%s: %w", what, core.ErrDeviceLost)
	}
	return fmt.Errorf("%s failed with %s", what, resultString(result))
}

var end = "\x00"
var endChar byte = '\x00'

func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// cString reads a fixed size, zero terminated name reported by the driver.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}

func clamp(value, lo, hi uint32) uint32 {
	return max(lo, min(value, hi))
}

func toFormat(f gpu.ImageFormat) vk.Format {
	switch f {
	case gpu.ImageFormatR16g16b16a16Sfloat:
		return vk.FormatR16g16b16a16Sfloat
	case gpu.ImageFormatB8g8r8a8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.ImageFormatR8g8b8a8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.ImageFormatR8g8b8a8Srgb:
		return vk.FormatR8g8b8a8Srgb
	case gpu.ImageFormatD32Sfloat:
		return vk.FormatD32Sfloat
	}
	return vk.FormatUndefined
}

func fromFormat(f vk.Format) gpu.ImageFormat {
	switch f {
	case vk.FormatR16g16b16a16Sfloat:
		return gpu.ImageFormatR16g16b16a16Sfloat
	case vk.FormatR8g8b8a8Unorm:
		return gpu.ImageFormatR8g8b8a8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return gpu.ImageFormatR8g8b8a8Srgb
	case vk.FormatD32Sfloat:
		return gpu.ImageFormatD32Sfloat
	}
	return gpu.ImageFormatB8g8r8a8Unorm
}

func toLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.ImageLayoutGeneral:
		return vk.ImageLayoutGeneral
	case gpu.ImageLayoutColor:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpu.ImageLayoutDepth:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gpu.ImageLayoutShader:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.ImageLayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case gpu.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.ImageLayoutPresent:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toFilter(f gpu.SamplerFilter) vk.Filter {
	if f == gpu.SamplerFilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toStageFlags(s gpu.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	if s&gpu.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if s&gpu.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	if s&gpu.ShaderStageCompute != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	}
	return flags
}

func toDescriptorType(t gpu.BindingType) vk.DescriptorType {
	switch t {
	case gpu.BindingStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpu.BindingSampledImage:
		return vk.DescriptorTypeSampledImage
	case gpu.BindingStorageImage:
		return vk.DescriptorTypeStorageImage
	case gpu.BindingSampler:
		return vk.DescriptorTypeSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func aspectOf(format gpu.ImageFormat) vk.ImageAspectFlags {
	if format == gpu.ImageFormatD32Sfloat {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}
