package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ibd1279/vks"
	"vkpresent/src/app"
	"vkpresent/src/render"
)

func init() {
	runtime.LockOSThread()
}

const (
	WindowWidth  = 800
	WindowHeight = 600
	WindowTitle  = "Look at this funky triangle!"
)

func main() {
	cfg := app.Config{
		Width:  WindowWidth,
		Height: WindowHeight,
		Title:  WindowTitle,
		InstanceLayers: []string{
			"VK_LAYER_KHRONOS_validation",
		},
		InstanceExtensions: []string{
			vks.VK_KHR_PORTABILITY_ENUMERATION_EXTENSION_NAME,
			vks.VK_KHR_GET_PHYSICAL_DEVICE_PROPERTIES_2_EXTENSION_NAME,
			vks.VK_KHR_SURFACE_EXTENSION_NAME,
			vks.VK_KHR_GET_SURFACE_CAPABILITIES_2_EXTENSION_NAME,
		},
		DeviceExtensions: []string{
			vks.VK_KHR_PORTABILITY_SUBSET_EXTENSION_NAME,
			vks.VK_KHR_SWAPCHAIN_EXTENSION_NAME,
		},
		FramesInFlight: render.MaxFramesInFlight,
		VertShaderPath: "shaders/vert.spv",
		FragShaderPath: "shaders/frag.spv",
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
