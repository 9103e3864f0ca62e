package render

import (
	"fmt"
	"math"

	"github.com/ibd1279/vks"
)

// SupportDetails is one fresh query of what the surface can do. Rebuilds
// must re-query because the extent bounds change with the window.
type SupportDetails struct {
	Capabilities vks.SurfaceCapabilitiesKHR
	Formats      []vks.SurfaceFormatKHR
	PresentModes []vks.PresentModeKHR
}

// ChooseSwapSurfaceFormat prefers B8G8R8A8 sRGB in the nonlinear sRGB color
// space and otherwise settles for the first advertised format. No further
// ranking.
func ChooseSwapSurfaceFormat(formats []vks.SurfaceFormatKHR) vks.SurfaceFormatKHR {
	for _, v := range formats {
		if v.Format() == vks.VK_FORMAT_B8G8R8A8_SRGB &&
			v.ColorSpace() == vks.VK_COLOR_SPACE_SRGB_NONLINEAR_KHR {
			return v
		}
	}
	return formats[0]
}

// ChooseSwapPresentMode prefers mailbox when the surface offers it; FIFO is
// the only mode guaranteed to exist.
func ChooseSwapPresentMode(modes []vks.PresentModeKHR) vks.PresentModeKHR {
	for _, v := range modes {
		if v == vks.VK_PRESENT_MODE_MAILBOX_KHR {
			return v
		}
	}
	return vks.VK_PRESENT_MODE_FIFO_KHR
}

// ChooseSwapExtent returns the surface's current extent when it is concrete.
// A width of MaxUint32 is the sentinel for "match the window": the window's
// framebuffer size, clamped into the surface's extent bounds, is used instead.
func ChooseSwapExtent(caps vks.SurfaceCapabilitiesKHR, fbWidth, fbHeight int) vks.Extent2D {
	if caps.CurrentExtent().Width() != math.MaxUint32 {
		return caps.CurrentExtent()
	}

	clamp := func(v, lo, hi uint32) uint32 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	width := clamp(uint32(fbWidth), caps.MinImageExtent().Width(), caps.MaxImageExtent().Width())
	height := clamp(uint32(fbHeight), caps.MinImageExtent().Height(), caps.MaxImageExtent().Height())
	return vks.Extent2D{}.WithWidth(width).WithHeight(height)
}

// ChooseImageCount asks for one image more than the minimum so the driver's
// internal bookkeeping cannot stall us, clamped to the maximum when the
// surface has one (0 means unbounded).
func ChooseImageCount(caps vks.SurfaceCapabilitiesKHR) uint32 {
	count := caps.MinImageCount() + 1
	if max := caps.MaxImageCount(); max > 0 && count > max {
		count = max
	}
	return count
}

// ChainConfig is the negotiated configuration one swapchain is built from.
type ChainConfig struct {
	Format        vks.SurfaceFormatKHR
	PresentMode   vks.PresentModeKHR
	Extent        vks.Extent2D
	ImageCount    uint32
	Transform     vks.SurfaceTransformFlagBitsKHR
	GraphicsIndex uint32
	PresentIndex  uint32
}

// Exclusive reports whether the images can use exclusive sharing, which is
// the faster path when one family serves both roles.
func (cfg ChainConfig) Exclusive() bool {
	return cfg.GraphicsIndex == cfg.PresentIndex
}

// ChainDevice is the native-API collaborator the chain manager drives. One
// method per construction or destruction step keeps the ordering under the
// manager's control. CreateSwapchain retires any previous swapchain handle
// only after its replacement exists.
type ChainDevice interface {
	SurfaceSupport() (SupportDetails, error)
	WaitIdle() error

	CreateSwapchain(cfg ChainConfig) (imageCount int, err error)
	CreateImageViews() error
	CreateRenderPass() error
	CreateFramebuffers() error
	RecordCommands() error

	FreeCommands()
	DestroyFramebuffers()
	DestroyRenderPass()
	DestroyImageViews()
	DestroySwapchain()
}

// PipelineBuilder compiles the fixed pipeline against a chain extent, and
// tears it down (pipeline then layout) on chain teardown.
type PipelineBuilder interface {
	Build(extent vks.Extent2D) error
	Destroy()
}

// Window is the windowing collaborator: a framebuffer-size query and a
// blocking event wait for the minimized stall.
type Window interface {
	FramebufferSize() (width, height int)
	WaitEvents()
}

// Chain owns the presentation chain lifecycle: it negotiates a ChainConfig
// from fresh surface queries and drives the device through construction,
// teardown and full rebuilds. The chain is never mutated in place.
type Chain struct {
	dev  ChainDevice
	pipe PipelineBuilder
	win  Window

	graphicsIndex uint32
	presentIndex  uint32

	imageCount int
	extent     vks.Extent2D
	built      bool
}

func NewChain(dev ChainDevice, pipe PipelineBuilder, win Window, graphicsIndex, presentIndex uint32) *Chain {
	return &Chain{
		dev:           dev,
		pipe:          pipe,
		win:           win,
		graphicsIndex: graphicsIndex,
		presentIndex:  presentIndex,
	}
}

// ImageCount is the number of presentable images in the live chain.
func (c *Chain) ImageCount() int { return c.imageCount }

// Extent is the live chain's image extent.
func (c *Chain) Extent() vks.Extent2D { return c.extent }

// Build constructs the whole chain: swapchain, one view and one framebuffer
// per image, the pipeline bound to the chain's extent, and one command
// recording per image.
func (c *Chain) Build() error {
	sup, err := c.dev.SurfaceSupport()
	if err != nil {
		return err
	}
	if len(sup.Formats) == 0 || len(sup.PresentModes) == 0 {
		return fmt.Errorf("surface reports no formats or present modes")
	}

	width, height := c.win.FramebufferSize()
	cfg := ChainConfig{
		Format:        ChooseSwapSurfaceFormat(sup.Formats),
		PresentMode:   ChooseSwapPresentMode(sup.PresentModes),
		Extent:        ChooseSwapExtent(sup.Capabilities, width, height),
		ImageCount:    ChooseImageCount(sup.Capabilities),
		Transform:     sup.Capabilities.CurrentTransform(),
		GraphicsIndex: c.graphicsIndex,
		PresentIndex:  c.presentIndex,
	}

	count, err := c.dev.CreateSwapchain(cfg)
	if err != nil {
		return err
	}
	if err := c.dev.CreateImageViews(); err != nil {
		return err
	}
	if err := c.dev.CreateRenderPass(); err != nil {
		return err
	}
	if err := c.pipe.Build(cfg.Extent); err != nil {
		return err
	}
	if err := c.dev.CreateFramebuffers(); err != nil {
		return err
	}
	if err := c.dev.RecordCommands(); err != nil {
		return err
	}

	c.imageCount = count
	c.extent = cfg.Extent
	c.built = true
	return nil
}

// Teardown destroys the chain state in strict dependency order. The
// swapchain handle itself is handed back to the device as "previous" so the
// next CreateSwapchain can retire it cleanly.
func (c *Chain) Teardown() {
	if !c.built {
		return
	}
	c.dev.DestroyFramebuffers()
	c.dev.FreeCommands()
	c.pipe.Destroy()
	c.dev.DestroyRenderPass()
	c.dev.DestroyImageViews()
	c.dev.DestroySwapchain()
	c.imageCount = 0
	c.built = false
}

// Rebuild replaces the chain after the surface went stale. While the window
// has zero area there is nothing to build, so it blocks on window events
// until a usable size appears. All in-flight work is drained before any
// resource is destroyed.
func (c *Chain) Rebuild() (int, error) {
	width, height := c.win.FramebufferSize()
	for width == 0 || height == 0 {
		c.win.WaitEvents()
		width, height = c.win.FramebufferSize()
	}

	if err := c.dev.WaitIdle(); err != nil {
		return 0, err
	}
	c.Teardown()
	if err := c.Build(); err != nil {
		return 0, err
	}
	return c.imageCount, nil
}
