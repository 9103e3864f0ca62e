package render

import (
	"fmt"

	"github.com/ibd1279/vks"
)

// QueueFamily describes the capabilities of one queue family that matter for
// presentation: whether it can run graphics work and whether it can present
// to the target surface. Both may be true for the same family.
type QueueFamily struct {
	Graphics bool
	Present  bool
}

// QueueFamilyIndices holds the resolved family index per queue role.
type QueueFamilyIndices struct {
	Graphics Option[uint32]
	Present  Option[uint32]
}

// Complete reports whether both roles have been resolved. Frame work must
// not begin until this holds.
func (indices QueueFamilyIndices) Complete() bool {
	return indices.Graphics.IsSet() && indices.Present.IsSet()
}

// FindQueueFamilies scans families in index order and records the first
// family supporting each role, stopping once both are found.
func FindQueueFamilies(families []QueueFamily) QueueFamilyIndices {
	var indices QueueFamilyIndices
	for k, family := range families {
		index := uint32(k)
		if family.Graphics && !indices.Graphics.IsSet() {
			indices.Graphics = Some(index)
		}
		if family.Present && !indices.Present.IsSet() {
			indices.Present = Some(index)
		}
		if indices.Complete() {
			break
		}
	}
	return indices
}

// DeviceInfo is a snapshot of one physical device, queried once against the
// target surface. Scoring and selection work on these snapshots only, so
// negotiation never touches the device afterwards.
type DeviceInfo struct {
	Name                string
	Type                vks.PhysicalDeviceType
	MaxImageDimension2D uint32
	GeometryShader      bool
	Extensions          []string
	QueueFamilies       []QueueFamily
	Formats             []vks.SurfaceFormatKHR
	PresentModes        []vks.PresentModeKHR
}

// HasExtensions reports whether every required device extension is present.
func (info DeviceInfo) HasExtensions(required []string) bool {
	available := make(map[string]struct{}, len(info.Extensions))
	for _, name := range info.Extensions {
		available[name] = struct{}{}
	}
	for _, name := range required {
		if _, ok := available[name]; !ok {
			return false
		}
	}
	return true
}

// Suitable reports whether the device can drive the presentation chain at
// all: resolved queue families for both roles, the required extension set,
// and at least one surface format and one present mode.
func Suitable(info DeviceInfo, required []string) bool {
	if !FindQueueFamilies(info.QueueFamilies).Complete() {
		return false
	}
	if !info.HasExtensions(required) {
		return false
	}
	return len(info.Formats) > 0 && len(info.PresentModes) > 0
}

// RateDevice scores a device, 0 meaning unusable. Discrete GPUs get a fixed
// bonus; beyond that the maximum 2D image dimension orders devices of the
// same class.
func RateDevice(info DeviceInfo, required []string) uint32 {
	if !info.GeometryShader || !Suitable(info, required) {
		return 0
	}
	var score uint32
	if info.Type == vks.VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU {
		score += 1000
	}
	score += info.MaxImageDimension2D
	return score
}

// SelectDevice returns the index of the highest-scoring device. Ties resolve
// to the lowest index. A best score of zero means no device can proceed.
func SelectDevice(infos []DeviceInfo, required []string) (int, error) {
	if len(infos) == 0 {
		return 0, fmt.Errorf("no physical devices with Vulkan support")
	}
	best, bestScore := 0, uint32(0)
	for k, info := range infos {
		if score := RateDevice(info, required); score > bestScore {
			best, bestScore = k, score
		}
	}
	if bestScore == 0 {
		return 0, fmt.Errorf("no suitable physical device among %d candidates", len(infos))
	}
	return best, nil
}
