package app

import (
	"github.com/ibd1279/vks"
	"vkpresent/src/render"
)

// chainBackend holds every native handle derived from one swapchain build
// and implements render.ChainDevice plus render.PipelineBuilder against it.
// The retired swapchain handle survives in previous until its replacement
// exists, then gets destroyed.
type chainBackend struct {
	device      vks.DeviceFacade
	physical    vks.PhysicalDeviceFacade
	surface     vks.SurfaceKHR
	commandPool vks.CommandPoolFacade

	vertPath string
	fragPath string

	swapchain vks.SwapchainKHR
	previous  vks.SwapchainKHR
	images    []vks.Image
	format    vks.Format
	extent    vks.Extent2D

	views          []vks.ImageView
	framebuffers   []vks.Framebuffer
	renderPass     vks.RenderPass
	pipelineLayout vks.PipelineLayout
	pipelines      []vks.Pipeline
	commandBuffers []vks.CommandBuffer
}

func (b *chainBackend) SurfaceSupport() (render.SupportDetails, error) {
	return querySupport(b.physical, b.surface)
}

func (b *chainBackend) WaitIdle() error {
	return vkErr("vkDeviceWaitIdle", b.device.DeviceWaitIdle())
}

func (b *chainBackend) CreateSwapchain(cfg render.ChainConfig) (int, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	queueFamilyIndices := []uint32{cfg.GraphicsIndex, cfg.PresentIndex}
	shareMode := vks.VK_SHARING_MODE_CONCURRENT
	if cfg.Exclusive() {
		queueFamilyIndices = queueFamilyIndices[:1]
		shareMode = vks.VK_SHARING_MODE_EXCLUSIVE
	}

	oldSwapchain := b.previous
	createInfo := vks.CPtr(arp, &vks.SwapchainCreateInfoKHR{},
		vks.SetDefaultSType,
		func(in *vks.SwapchainCreateInfoKHR) {
			in.SetSurface(b.surface)
			in.SetMinImageCount(cfg.ImageCount)
			in.SetImageFormat(cfg.Format.Format())
			in.SetImageColorSpace(cfg.Format.ColorSpace())
			in.SetImageExtent(cfg.Extent)
			in.SetImageArrayLayers(1)
			in.SetImageUsage(vks.ImageUsageFlags(vks.VK_IMAGE_USAGE_COLOR_ATTACHMENT_BIT))
			in.SetImageSharingMode(shareMode)
			in.SetQueueFamilyIndexCount(uint32(len(queueFamilyIndices)))
			in.SetPQueueFamilyIndices(queueFamilyIndices)
			in.SetPreTransform(cfg.Transform)
			in.SetCompositeAlpha(vks.VK_COMPOSITE_ALPHA_OPAQUE_BIT_KHR)
			in.SetPresentMode(cfg.PresentMode)
			in.SetClipped(vks.VK_TRUE)
			in.SetOldSwapchain(oldSwapchain)
		},
	)

	var swapchain vks.SwapchainKHR
	if result := b.device.CreateSwapchainKHR(createInfo, nil, &swapchain); result.IsError() {
		return 0, vkErr("vkCreateSwapchainKHR", result)
	}

	// The replacement is live; the retired chain can finally go.
	if oldSwapchain != vks.NullSwapchainKHR {
		b.device.DestroySwapchainKHR(oldSwapchain, nil)
		b.previous = vks.NullSwapchainKHR
	}

	var count uint32
	b.device.GetSwapchainImagesKHR(swapchain, &count, nil)
	images := make([]vks.Image, count)
	b.device.GetSwapchainImagesKHR(swapchain, &count, images)

	b.swapchain = swapchain
	b.images = images
	b.format = cfg.Format.Format()
	b.extent = cfg.Extent
	return int(count), nil
}

func (b *chainBackend) CreateImageViews() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	views := make([]vks.ImageView, len(b.images))
	for k, img := range b.images {
		createInfo := vks.CPtr(arp, &vks.ImageViewCreateInfo{},
			vks.SetDefaultSType,
			func(in *vks.ImageViewCreateInfo) {
				in.SetImage(img)
				in.SetViewType(vks.VK_IMAGE_VIEW_TYPE_2D)
				in.SetFormat(b.format)
				in.SetSubresourceRange(vks.ImageSubresourceRange{}.
					WithAspectMask(vks.ImageAspectFlags(vks.VK_IMAGE_ASPECT_COLOR_BIT)).
					WithLevelCount(1).
					WithLayerCount(1))
			},
		)
		if result := b.device.CreateImageView(createInfo, nil, &views[k]); result.IsError() {
			return vkErr("vkCreateImageView", result)
		}
	}
	b.views = views
	return nil
}

func (b *chainBackend) CreateRenderPass() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	attachments := vks.AttachmentDescriptionCSlice(arp,
		vks.AttachmentDescription{}.
			WithFormat(b.format).
			WithSamples(vks.VK_SAMPLE_COUNT_1_BIT).
			WithLoadOp(vks.VK_ATTACHMENT_LOAD_OP_CLEAR).
			WithStoreOp(vks.VK_ATTACHMENT_STORE_OP_STORE).
			WithStencilLoadOp(vks.VK_ATTACHMENT_LOAD_OP_DONT_CARE).
			WithStencilStoreOp(vks.VK_ATTACHMENT_STORE_OP_DONT_CARE).
			WithInitialLayout(vks.VK_IMAGE_LAYOUT_UNDEFINED).
			WithFinalLayout(vks.VK_IMAGE_LAYOUT_PRESENT_SRC_KHR),
	)
	colorAttachments := vks.AttachmentReferenceCSlice(arp,
		vks.AttachmentReference{}.
			WithAttachment(0).
			WithLayout(vks.VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL),
	)
	subpasses := vks.SubpassDescriptionCSlice(arp,
		vks.SubpassDescription{}.
			WithPipelineBindPoint(vks.VK_PIPELINE_BIND_POINT_GRAPHICS).
			WithPColorAttachments(colorAttachments),
	)
	// Delay the color-attachment stage until the acquired image is ready.
	dependencies := vks.SubpassDependencyCSlice(arp,
		vks.SubpassDependency{}.
			WithSrcSubpass(vks.VK_SUBPASS_EXTERNAL).
			WithSrcStageMask(vks.PipelineStageFlags(vks.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT)).
			WithDstStageMask(vks.PipelineStageFlags(vks.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT)).
			WithDstAccessMask(vks.AccessFlags(vks.VK_ACCESS_COLOR_ATTACHMENT_WRITE_BIT)),
	)

	createInfo := vks.CPtr(arp, &vks.RenderPassCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.RenderPassCreateInfo) {
			in.SetPAttachments(attachments)
			in.SetPSubpasses(subpasses)
			in.SetPDependencies(dependencies)
		},
	)

	var renderPass vks.RenderPass
	if result := b.device.CreateRenderPass(createInfo, nil, &renderPass); result.IsError() {
		return vkErr("vkCreateRenderPass", result)
	}
	b.renderPass = renderPass
	return nil
}

func (b *chainBackend) CreateFramebuffers() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	buffers := make([]vks.Framebuffer, len(b.views))
	for k, view := range b.views {
		createInfo := vks.CPtr(arp, &vks.FramebufferCreateInfo{},
			vks.SetDefaultSType,
			func(in *vks.FramebufferCreateInfo) {
				in.SetRenderPass(b.renderPass)
				in.SetPAttachments([]vks.ImageView{view})
				in.SetWidth(b.extent.Width())
				in.SetHeight(b.extent.Height())
				in.SetLayers(1)
			},
		)
		if result := b.device.CreateFramebuffer(createInfo, nil, &buffers[k]); result.IsError() {
			return vkErr("vkCreateFramebuffer", result)
		}
	}
	b.framebuffers = buffers
	return nil
}

// RecordCommands allocates and records one command buffer per chain image,
// index-aligned with the framebuffers.
func (b *chainBackend) RecordCommands() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	allocInfo := vks.CPtr(arp, &vks.CommandBufferAllocateInfo{},
		vks.SetDefaultSType,
		func(in *vks.CommandBufferAllocateInfo) {
			in.SetCommandPool(b.commandPool.H)
			in.SetLevel(vks.VK_COMMAND_BUFFER_LEVEL_PRIMARY)
			in.SetCommandBufferCount(uint32(len(b.framebuffers)))
		},
	)

	cmdBuffers := make([]vks.CommandBuffer, len(b.framebuffers))
	if result := b.device.AllocateCommandBuffers(allocInfo, cmdBuffers); result.IsError() {
		return vkErr("vkAllocateCommandBuffers", result)
	}
	b.commandBuffers = cmdBuffers

	beginInfo := vks.CPtr(arp, &vks.CommandBufferBeginInfo{},
		vks.SetDefaultSType,
	)
	clearValues := []vks.ClearValue{
		vks.MakeClearColorValueFloat32(0.52, 0.63, 0.95, 1.0).AsClearValue(),
	}
	for k, cb := range b.commandBuffers {
		buffer := b.commandPool.MakeCommandBufferFacade(cb)

		if result := buffer.BeginCommandBuffer(beginInfo); result.IsError() {
			return vkErr("vkBeginCommandBuffer", result)
		}

		renderPassBeginInfo := vks.CPtr(arp, &vks.RenderPassBeginInfo{},
			vks.SetDefaultSType,
			func(in *vks.RenderPassBeginInfo) {
				in.SetRenderPass(b.renderPass)
				in.SetFramebuffer(b.framebuffers[k])
				in.SetRenderArea(vks.Rect2D{}.WithExtent(b.extent))
				in.SetPClearValues(clearValues)
			},
		)

		buffer.CmdBeginRenderPass(renderPassBeginInfo, vks.VK_SUBPASS_CONTENTS_INLINE)
		buffer.CmdBindPipeline(vks.VK_PIPELINE_BIND_POINT_GRAPHICS, b.pipelines[0])
		buffer.CmdDraw(3, 1, 0, 0)
		buffer.CmdEndRenderPass()

		if result := buffer.EndCommandBuffer(); result.IsError() {
			return vkErr("vkEndCommandBuffer", result)
		}
	}
	return nil
}

func (b *chainBackend) FreeCommands() {
	if len(b.commandBuffers) == 0 {
		return
	}
	b.device.FreeCommandBuffers(b.commandPool.H,
		uint32(len(b.commandBuffers)), b.commandBuffers)
	b.commandBuffers = nil
}

func (b *chainBackend) DestroyFramebuffers() {
	for _, buffer := range b.framebuffers {
		b.device.DestroyFramebuffer(buffer, nil)
	}
	b.framebuffers = nil
}

func (b *chainBackend) DestroyRenderPass() {
	if b.renderPass != vks.NullRenderPass {
		b.device.DestroyRenderPass(b.renderPass, nil)
		b.renderPass = vks.NullRenderPass
	}
}

func (b *chainBackend) DestroyImageViews() {
	for _, view := range b.views {
		b.device.DestroyImageView(view, nil)
	}
	b.views = nil
}

// DestroySwapchain retires the current handle rather than destroying it:
// the next CreateSwapchain passes it as the old swapchain so the driver can
// reuse what it can, then destroys it.
func (b *chainBackend) DestroySwapchain() {
	if b.previous != vks.NullSwapchainKHR {
		b.device.DestroySwapchainKHR(b.previous, nil)
	}
	b.previous = b.swapchain
	b.swapchain = vks.NullSwapchainKHR
	b.images = nil
}

// destroy releases whatever the backend still holds: a retired swapchain
// that never got a replacement, and any handles a build created before
// failing partway. After a clean teardown everything but the retired
// swapchain is already gone and the sweep is a no-op. Shutdown path only.
func (b *chainBackend) destroy() {
	b.DestroyFramebuffers()
	b.FreeCommands()
	b.Destroy()
	b.DestroyRenderPass()
	b.DestroyImageViews()
	if b.previous != vks.NullSwapchainKHR {
		b.device.DestroySwapchainKHR(b.previous, nil)
		b.previous = vks.NullSwapchainKHR
	}
	if b.swapchain != vks.NullSwapchainKHR {
		b.device.DestroySwapchainKHR(b.swapchain, nil)
		b.swapchain = vks.NullSwapchainKHR
	}
}
