package app

import (
	"fmt"
	"testing"

	"github.com/ibd1279/vks"
	"github.com/stretchr/testify/require"
	"vkpresent/src/render"
)

// captureSink collects formatted diagnostic lines for assertions.
func captureSink(lines *[]string) Sink {
	return func(format string, args ...any) {
		*lines = append(*lines, fmt.Sprintf(format, args...))
	}
}

func TestFilterLayers(t *testing.T) {
	offered := []string{"VK_LAYER_KHRONOS_validation", "VK_LAYER_LUNARG_api_dump"}

	t.Run("keeps offered layers in request order", func(t *testing.T) {
		var lines []string
		kept := filterLayers(
			[]string{"VK_LAYER_KHRONOS_validation"},
			offered,
			captureSink(&lines),
		)
		require.Equal(t, []string{"VK_LAYER_KHRONOS_validation"}, kept)
		require.Empty(t, lines)
	})

	t.Run("drops missing layers with a note", func(t *testing.T) {
		var lines []string
		kept := filterLayers(
			[]string{"VK_LAYER_KHRONOS_validation", "VK_LAYER_NOT_INSTALLED"},
			offered,
			captureSink(&lines),
		)
		require.Equal(t, []string{"VK_LAYER_KHRONOS_validation"}, kept)
		require.Len(t, lines, 1)
		require.Contains(t, lines[0], "VK_LAYER_NOT_INSTALLED")
	})

	t.Run("nothing offered drops everything", func(t *testing.T) {
		var lines []string
		kept := filterLayers([]string{"VK_LAYER_KHRONOS_validation"}, nil, captureSink(&lines))
		require.Empty(t, kept)
		require.Len(t, lines, 1)
	})
}

func TestReportDevices(t *testing.T) {
	infos := []render.DeviceInfo{
		{
			Name:                "llvmpipe",
			Type:                vks.VK_PHYSICAL_DEVICE_TYPE_CPU,
			MaxImageDimension2D: 16384,
			GeometryShader:      true,
			Extensions:          []string{vks.VK_KHR_SWAPCHAIN_EXTENSION_NAME},
			QueueFamilies:       []render.QueueFamily{{Graphics: true, Present: true}},
			Formats:             []vks.SurfaceFormatKHR{{}},
			PresentModes:        []vks.PresentModeKHR{vks.VK_PRESENT_MODE_FIFO_KHR},
		},
		{
			Name: "bogus",
		},
	}

	var lines []string
	reportDevices(infos, captureSink(&lines))

	// One header per device, one line per queue family, one summary each.
	require.Len(t, lines, 5)
	require.Contains(t, lines[0], "physical device 0 llvmpipe")
	require.Contains(t, lines[0], "16384")
	require.Contains(t, lines[1], "graphics true / present true")
	require.Contains(t, lines[2], "1 extensions / 1 formats / 1 present modes")
	require.Contains(t, lines[3], "physical device 1 bogus")
	require.Contains(t, lines[4], "0 extensions / 0 formats / 0 present modes")
}
