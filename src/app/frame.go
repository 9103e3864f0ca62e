package app

import (
	"fmt"
	"math"

	"github.com/ibd1279/vks"
)

// frameBackend owns the per-slot synchronization primitives and implements
// render.FrameDevice over the live chain backend's swapchain and command
// recordings.
type frameBackend struct {
	device        vks.DeviceFacade
	graphicsQueue vks.QueueFacade
	presentQueue  vks.QueueFacade
	chain         *chainBackend

	imageAvailable []vks.Semaphore
	renderFinished []vks.Semaphore
	fences         []vks.Fence
}

// newFrameBackend creates one semaphore pair and one pre-signaled fence per
// frame slot. Pre-signaling keeps the very first per-slot wait from
// deadlocking.
func newFrameBackend(device vks.DeviceFacade, graphicsQueue, presentQueue vks.QueueFacade, chain *chainBackend, frames int) (*frameBackend, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	b := &frameBackend{
		device:         device,
		graphicsQueue:  graphicsQueue,
		presentQueue:   presentQueue,
		chain:          chain,
		imageAvailable: make([]vks.Semaphore, frames),
		renderFinished: make([]vks.Semaphore, frames),
		fences:         make([]vks.Fence, frames),
	}

	semaphoreInfo := vks.CPtr(arp, &vks.SemaphoreCreateInfo{},
		vks.SetDefaultSType,
	)
	fenceInfo := vks.CPtr(arp, &vks.FenceCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.FenceCreateInfo) {
			in.SetFlags(vks.FenceCreateFlags(vks.VK_FENCE_CREATE_SIGNALED_BIT))
		},
	)

	for h := 0; h < frames; h++ {
		if result := device.CreateSemaphore(semaphoreInfo, nil, &b.imageAvailable[h]); result.IsError() {
			return nil, vkErr("vkCreateSemaphore", result)
		}
		if result := device.CreateSemaphore(semaphoreInfo, nil, &b.renderFinished[h]); result.IsError() {
			return nil, vkErr("vkCreateSemaphore", result)
		}
		if result := device.CreateFence(fenceInfo, nil, &b.fences[h]); result.IsError() {
			return nil, vkErr("vkCreateFence", result)
		}
	}
	return b, nil
}

func (b *frameBackend) WaitForFrame(slot int) error {
	result := b.device.WaitForFences(1, b.fences[slot:], vks.VK_TRUE, math.MaxUint64)
	return vkErr("vkWaitForFences", result)
}

func (b *frameBackend) ResetFrame(slot int) error {
	result := b.device.ResetFences(1, b.fences[slot:])
	return vkErr("vkResetFences", result)
}

// Acquire requests the next image with no timeout, signaling the slot's
// image-acquired semaphore. Suboptimal still delivers a usable image; only
// out-of-date reports the chain as stale.
func (b *frameBackend) Acquire(slot int) (int, bool, error) {
	var imageIndex uint32
	result := b.device.AcquireNextImageKHR(
		b.chain.swapchain,
		math.MaxUint64,
		b.imageAvailable[slot],
		vks.NullFence,
		&imageIndex,
	)
	switch {
	case result == vks.VK_ERROR_OUT_OF_DATE_KHR:
		return 0, true, nil
	case result != vks.VK_SUCCESS && result != vks.VK_SUBOPTIMAL_KHR:
		return 0, false, vkErr("vkAcquireNextImageKHR", result)
	}
	return int(imageIndex), false, nil
}

// Submit hands the image's pre-recorded commands to the graphics queue:
// wait image-acquired at the color-attachment-output stage, signal
// render-finished and the slot's fence on completion.
func (b *frameBackend) Submit(slot, image int) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	if image >= len(b.chain.commandBuffers) {
		return fmt.Errorf("no command recording for image %d", image)
	}

	submitInfos := vks.SubmitInfoCSlice(arp,
		vks.SubmitInfo{}.
			WithDefaultSType().
			WithPWaitSemaphores(b.imageAvailable[slot:]).
			WithWaitSemaphoreCount(1).
			WithPWaitDstStageMask([]vks.PipelineStageFlags{
				vks.PipelineStageFlags(vks.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT),
			}).
			WithPCommandBuffers(b.chain.commandBuffers[image:]).
			WithCommandBufferCount(1).
			WithPSignalSemaphores(b.renderFinished[slot:]).
			WithSignalSemaphoreCount(1),
	)

	result := b.graphicsQueue.QueueSubmit(1, submitInfos, b.fences[slot])
	return vkErr("vkQueueSubmit", result)
}

// Present queues the image for display once render-finished signals.
// Out-of-date and suboptimal both mean the chain no longer matches the
// surface; anything else non-success is fatal.
func (b *frameBackend) Present(slot, image int) (bool, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	imageIndex := uint32(image)
	presentInfo := vks.CPtr(arp, &vks.PresentInfoKHR{},
		vks.SetDefaultSType,
		func(in *vks.PresentInfoKHR) {
			in.SetPWaitSemaphores(b.renderFinished[slot:])
			in.SetWaitSemaphoreCount(1)
			in.SetPSwapchains([]vks.SwapchainKHR{b.chain.swapchain})
			in.SetPImageIndices([]uint32{imageIndex})
		},
	)

	result := b.presentQueue.QueuePresentKHR(presentInfo)
	switch {
	case result == vks.VK_ERROR_OUT_OF_DATE_KHR || result == vks.VK_SUBOPTIMAL_KHR:
		return true, nil
	case result.IsError():
		return false, vkErr("vkQueuePresentKHR", result)
	}
	return false, nil
}

func (b *frameBackend) destroy() {
	for _, fence := range b.fences {
		b.device.DestroyFence(fence, nil)
	}
	for _, semaphore := range b.renderFinished {
		b.device.DestroySemaphore(semaphore, nil)
	}
	for _, semaphore := range b.imageAvailable {
		b.device.DestroySemaphore(semaphore, nil)
	}
	b.fences, b.renderFinished, b.imageAvailable = nil, nil, nil
}
