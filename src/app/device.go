package app

import (
	"github.com/ibd1279/vks"
	"vkpresent/src/render"
)

// snapshotDevice collects everything negotiation needs to know about one
// physical device into a render.DeviceInfo, querying against the target
// surface exactly once.
func snapshotDevice(phyDev vks.PhysicalDeviceFacade, surface vks.SurfaceKHR) (render.DeviceInfo, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	var info render.DeviceInfo

	props := vks.CPtr(arp, &vks.PhysicalDeviceProperties2{},
		vks.SetDefaultSType,
	)
	phyDev.GetPhysicalDeviceProperties2(props)
	info.Name = vks.ToString(props.Properties().DeviceName())
	info.Type = props.Properties().DeviceType()
	info.MaxImageDimension2D = props.Properties().Limits().MaxImageDimension2D()

	features := vks.CPtr(arp, &vks.PhysicalDeviceFeatures2{},
		vks.SetDefaultSType,
	)
	phyDev.GetPhysicalDeviceFeatures2(features)
	info.GeometryShader = features.Features().GeometryShader().IsTrue()

	var count uint32
	layerName := vks.NewCStr(arp, "")
	if result := phyDev.EnumerateDeviceExtensionProperties(layerName, &count, nil); result.IsError() {
		return info, vkErr("vkEnumerateDeviceExtensionProperties", result)
	}
	extensionProperties := make([]vks.ExtensionProperties, count)
	if result := phyDev.EnumerateDeviceExtensionProperties(layerName, &count, extensionProperties); result.IsError() {
		return info, vkErr("vkEnumerateDeviceExtensionProperties", result)
	}
	info.Extensions = make([]string, 0, count)
	for _, ext := range extensionProperties {
		info.Extensions = append(info.Extensions, vks.ToString(ext.ExtensionName()))
	}

	phyDev.GetPhysicalDeviceQueueFamilyProperties2(&count, nil)
	queueFamProps := make([]vks.QueueFamilyProperties2, count)
	for k, v := range queueFamProps {
		queueFamProps[k] = v.WithDefaultSType()
	}
	phyDev.GetPhysicalDeviceQueueFamilyProperties2(&count, queueFamProps)

	info.QueueFamilies = make([]render.QueueFamily, 0, count)
	for k, v := range queueFamProps {
		qfp := v.QueueFamilyProperties()

		var presentSupport vks.Bool32
		phyDev.GetPhysicalDeviceSurfaceSupportKHR(uint32(k), surface, &presentSupport)

		info.QueueFamilies = append(info.QueueFamilies, render.QueueFamily{
			Graphics: qfp.QueueFlags()&vks.QueueFlags(vks.VK_QUEUE_GRAPHICS_BIT) != 0,
			Present:  presentSupport.IsTrue(),
		})
	}

	phyDev.GetPhysicalDeviceSurfaceFormatsKHR(surface, &count, nil)
	info.Formats = make([]vks.SurfaceFormatKHR, count)
	phyDev.GetPhysicalDeviceSurfaceFormatsKHR(surface, &count, info.Formats)

	phyDev.GetPhysicalDeviceSurfacePresentModesKHR(surface, &count, nil)
	info.PresentModes = make([]vks.PresentModeKHR, count)
	phyDev.GetPhysicalDeviceSurfacePresentModesKHR(surface, &count, info.PresentModes)

	return info, nil
}

// querySupport runs the fresh surface-capability query a chain build needs.
// Extent bounds change with the window, so this runs on every rebuild.
func querySupport(phyDev vks.PhysicalDeviceFacade, surface vks.SurfaceKHR) (render.SupportDetails, error) {
	var details render.SupportDetails

	if result := phyDev.GetPhysicalDeviceSurfaceCapabilitiesKHR(surface, &details.Capabilities); result.IsError() {
		return details, vkErr("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", result)
	}

	var count uint32
	phyDev.GetPhysicalDeviceSurfaceFormatsKHR(surface, &count, nil)
	details.Formats = make([]vks.SurfaceFormatKHR, count)
	phyDev.GetPhysicalDeviceSurfaceFormatsKHR(surface, &count, details.Formats)

	phyDev.GetPhysicalDeviceSurfacePresentModesKHR(surface, &count, nil)
	details.PresentModes = make([]vks.PresentModeKHR, count)
	phyDev.GetPhysicalDeviceSurfacePresentModesKHR(surface, &count, details.PresentModes)

	return details, nil
}
