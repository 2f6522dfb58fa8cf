package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func TestResultError(t *testing.T) {
	require.NoError(t, resultError("vkQueueSubmit", vk.Success))

	cases := []struct {
		result vk.Result
		want   error
	}{
		{vk.Suboptimal, driver.ErrSuboptimal},
		{vk.ErrorOutOfDate, driver.ErrOutOfDate},
		{vk.Timeout, driver.ErrTimeout},
		{vk.ErrorDeviceLost, driver.ErrDeviceLost},
		{vk.ErrorSurfaceLost, driver.ErrDeviceLost},
		{vk.ErrorOutOfHostMemory, driver.ErrNoHostMemory},
		{vk.ErrorOutOfDeviceMemory, driver.ErrNoDeviceMemory},
		{vk.ErrorOutOfPoolMemory, driver.ErrNoDeviceMemory},
		{vk.ErrorIncompatibleDriver, driver.ErrNotInstalled},
		{vk.ErrorInitializationFailed, driver.ErrFatal},
	}
	for _, c := range cases {
		t.Run(VulkanResultString(c.result), func(t *testing.T) {
			err := resultError("vkOp", c.result)
			require.ErrorIs(t, err, c.want)
			assert.Contains(t, err.Error(), "vkOp")
		})
	}
}

func TestVulkanResultStringFallback(t *testing.T) {
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate))
	assert.Equal(t, "VkResult(12345)", VulkanResultString(vk.Result(12345)))
}

func TestFormatConversion(t *testing.T) {
	for _, f := range []driver.PixelFmt{
		driver.FmtRGBA8Unorm, driver.FmtRGBA8SRGB,
		driver.FmtBGRA8Unorm, driver.FmtBGRA8SRGB, driver.FmtD32F,
	} {
		assert.Equal(t, f, pixelFmt(vkFormat(f)), f.String())
	}
	assert.Equal(t, driver.FmtUndefined, pixelFmt(vk.FormatR16Sfloat))
}

func TestPresentModeConversion(t *testing.T) {
	for _, m := range []driver.PresentMode{
		driver.PresentImmediate, driver.PresentMailbox,
		driver.PresentFIFO, driver.PresentFIFORelaxed,
	} {
		got, ok := presentMode(vkPresentMode(m))
		require.True(t, ok)
		assert.Equal(t, m, got)
	}
	_, ok := presentMode(vk.PresentMode(1000111000))
	assert.False(t, ok)
}

func TestShaderStages(t *testing.T) {
	both := shaderStages(metadata.ShaderStageVertex | metadata.ShaderStageFragment)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), both)
	assert.Equal(t, vk.ShaderStageFlags(0), shaderStages(0))
}

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "VK_LAYER\x00", VulkanSafeString("VK_LAYER"))
	assert.Equal(t, "done\x00", VulkanSafeString("done\x00"))
	assert.Equal(t, []string{"a\x00", "b\x00"}, VulkanSafeStrings([]string{"a", "b"}))
}

func TestCString(t *testing.T) {
	assert.Equal(t, "llvmpipe", cString([]byte("llvmpipe\x00\x00junk")))
	assert.Equal(t, "raw", cString([]byte("raw")))
}
