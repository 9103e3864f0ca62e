package render

import (
	"fmt"
	"testing"

	"github.com/ibd1279/vks"
	"github.com/stretchr/testify/require"
)

func TestFindQueueFamilies(t *testing.T) {
	for idx, tc := range []struct {
		families []QueueFamily
		graphics Option[uint32]
		present  Option[uint32]
	}{
		{nil, None[uint32](), None[uint32]()},
		{[]QueueFamily{{Graphics: true, Present: true}}, Some(uint32(0)), Some(uint32(0))},
		{[]QueueFamily{{Graphics: true}, {Present: true}}, Some(uint32(0)), Some(uint32(1))},
		{[]QueueFamily{{Present: true}, {Graphics: true}}, Some(uint32(1)), Some(uint32(0))},
		// First matching family wins even when later ones also qualify.
		{[]QueueFamily{{Graphics: true}, {Graphics: true, Present: true}}, Some(uint32(0)), Some(uint32(1))},
		{[]QueueFamily{{Graphics: true}, {}}, Some(uint32(0)), None[uint32]()},
	} {
		t.Run(fmt.Sprintf("%d", idx), func(t *testing.T) {
			indices := FindQueueFamilies(tc.families)
			require.Equal(t, tc.graphics, indices.Graphics)
			require.Equal(t, tc.present, indices.Present)
			require.Equal(t, tc.graphics.IsSet() && tc.present.IsSet(), indices.Complete())
		})
	}
}

func usableDevice() DeviceInfo {
	return DeviceInfo{
		Name:                "test",
		Type:                vks.VK_PHYSICAL_DEVICE_TYPE_INTEGRATED_GPU,
		MaxImageDimension2D: 4096,
		GeometryShader:      true,
		Extensions:          []string{vks.VK_KHR_SWAPCHAIN_EXTENSION_NAME},
		QueueFamilies:       []QueueFamily{{Graphics: true, Present: true}},
		Formats:             []vks.SurfaceFormatKHR{{}},
		PresentModes:        []vks.PresentModeKHR{vks.VK_PRESENT_MODE_FIFO_KHR},
	}
}

var requiredExts = []string{vks.VK_KHR_SWAPCHAIN_EXTENSION_NAME}

func TestSuitable(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*DeviceInfo)
		want   bool
	}{
		{"complete", func(*DeviceInfo) {}, true},
		{"no graphics family", func(d *DeviceInfo) { d.QueueFamilies = []QueueFamily{{Present: true}} }, false},
		{"no present family", func(d *DeviceInfo) { d.QueueFamilies = []QueueFamily{{Graphics: true}} }, false},
		{"missing extension", func(d *DeviceInfo) { d.Extensions = nil }, false},
		{"no formats", func(d *DeviceInfo) { d.Formats = nil }, false},
		{"no present modes", func(d *DeviceInfo) { d.PresentModes = nil }, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			info := usableDevice()
			tc.mutate(&info)
			require.Equal(t, tc.want, Suitable(info, requiredExts))
		})
	}
}

func TestRateDevice(t *testing.T) {
	t.Run("no geometry shader disqualifies", func(t *testing.T) {
		info := usableDevice()
		info.GeometryShader = false
		require.Zero(t, RateDevice(info, requiredExts))
	})

	t.Run("unsuitable disqualifies", func(t *testing.T) {
		info := usableDevice()
		info.Formats = nil
		require.Zero(t, RateDevice(info, requiredExts))
	})

	t.Run("discrete bonus", func(t *testing.T) {
		info := usableDevice()
		info.Type = vks.VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU
		info.MaxImageDimension2D = 2048
		require.Equal(t, uint32(3048), RateDevice(info, requiredExts))
	})

	t.Run("integrated scores its max dimension", func(t *testing.T) {
		info := usableDevice()
		require.Equal(t, uint32(4096), RateDevice(info, requiredExts))
	})
}

func TestSelectDevice(t *testing.T) {
	t.Run("capability beats class", func(t *testing.T) {
		// Integrated at 4096 outranks discrete at 2048 (3048).
		a := usableDevice()
		a.Name = "integrated"

		b := usableDevice()
		b.Name = "discrete"
		b.Type = vks.VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU
		b.MaxImageDimension2D = 2048

		best, err := SelectDevice([]DeviceInfo{a, b}, requiredExts)
		require.NoError(t, err)
		require.Equal(t, 0, best)
	})

	t.Run("ties resolve to the lowest index", func(t *testing.T) {
		best, err := SelectDevice([]DeviceInfo{usableDevice(), usableDevice()}, requiredExts)
		require.NoError(t, err)
		require.Equal(t, 0, best)
	})

	t.Run("all unusable", func(t *testing.T) {
		info := usableDevice()
		info.GeometryShader = false
		_, err := SelectDevice([]DeviceInfo{info}, requiredExts)
		require.Error(t, err)
	})

	t.Run("no devices", func(t *testing.T) {
		_, err := SelectDevice(nil, requiredExts)
		require.Error(t, err)
	})
}
