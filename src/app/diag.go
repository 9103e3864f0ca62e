package app

import (
	"log"

	"github.com/ibd1279/vks"
	"vkpresent/src/render"
)

// Sink receives diagnostic text from enumeration and validation plumbing.
// The contract is to log and never fail; rendering never depends on it.
type Sink func(format string, args ...any)

func defaultSink(format string, args ...any) {
	log.Printf(format, args...)
}

// instanceLayerNames enumerates the layers the loader offers.
func instanceLayerNames() ([]string, error) {
	var count uint32
	if result := vks.EnumerateInstanceLayerProperties(&count, nil); result.IsError() {
		return nil, vkErr("vkEnumerateInstanceLayerProperties", result)
	}
	layerProperties := make([]vks.LayerProperties, count)
	if result := vks.EnumerateInstanceLayerProperties(&count, layerProperties); result.IsError() {
		return nil, vkErr("vkEnumerateInstanceLayerProperties", result)
	}

	names := make([]string, 0, count)
	for _, layer := range layerProperties {
		names = append(names, vks.ToString(layer.LayerName()))
	}
	return names, nil
}

// filterLayers keeps only the requested layers among the offered ones,
// reporting any it drops. A missing validation layer is how release
// environments look; it must not be fatal.
func filterLayers(requested, offered []string, diag Sink) []string {
	have := make(map[string]struct{}, len(offered))
	for _, name := range offered {
		have[name] = struct{}{}
	}

	kept := make([]string, 0, len(requested))
	for _, name := range requested {
		if _, ok := have[name]; ok {
			kept = append(kept, name)
		} else {
			diag("instance layer %s not available, dropping", name)
		}
	}
	return kept
}

// availableLayers resolves the requested layer list against the loader.
func availableLayers(requested []string, diag Sink) ([]string, error) {
	names, err := instanceLayerNames()
	if err != nil {
		return nil, err
	}
	return filterLayers(requested, names, diag), nil
}

// reportInstanceOptions dumps the instance extensions offered by the core
// loader and by each kept layer. Useful to understand what is available and
// what isn't working.
func reportInstanceOptions(layers []string, diag Sink) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	for _, layer := range append([]string{""}, layers...) {
		ln := vks.NewCStr(arp, layer)

		var count uint32
		if result := vks.EnumerateInstanceExtensionProperties(ln, &count, nil); result.IsError() {
			return vkErr("vkEnumerateInstanceExtensionProperties", result)
		}
		extensionProperties := make([]vks.ExtensionProperties, count)
		if result := vks.EnumerateInstanceExtensionProperties(ln, &count, extensionProperties); result.IsError() {
			return vkErr("vkEnumerateInstanceExtensionProperties", result)
		}
		for h, ext := range extensionProperties {
			diag("%s Ext%2d:%s / %v", layer, h,
				vks.ToString(ext.ExtensionName()),
				vks.ApiVersion(ext.SpecVersion()))
		}
	}
	return nil
}

// reportDevices dumps the negotiation-relevant properties of every
// enumerated physical device.
func reportDevices(infos []render.DeviceInfo, diag Sink) {
	for k, info := range infos {
		diag("physical device %d %s %s - max 2D dim %d / geometry shader %t",
			k, info.Name, info.Type, info.MaxImageDimension2D, info.GeometryShader)
		for h, family := range info.QueueFamilies {
			diag("\tfamily %d: graphics %t / present %t", h, family.Graphics, family.Present)
		}
		diag("\t%d extensions / %d formats / %d present modes",
			len(info.Extensions), len(info.Formats), len(info.PresentModes))
	}
}
