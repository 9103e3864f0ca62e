package render

import (
	"fmt"
	"sync/atomic"
)

// MaxFramesInFlight bounds how many frames' worth of GPU work may be
// outstanding at once. The per-slot fence enforces the bound.
const MaxFramesInFlight = 2

// FrameDevice is the native-API collaborator the scheduler drives, addressed
// by frame slot and image index only.
//
// Acquire blocks without timeout and signals the slot's image-acquired
// semaphore; a suboptimal result still counts as an acquired image, only a
// stale chain reports outdated. Submit waits that semaphore at the
// color-attachment-output stage and signals render-finished plus the slot's
// fence. Present waits render-finished; out-of-date and suboptimal both
// surface as outdated.
type FrameDevice interface {
	WaitForFrame(slot int) error
	ResetFrame(slot int) error
	Acquire(slot int) (image int, outdated bool, err error)
	Submit(slot, image int) error
	Present(slot, image int) (outdated bool, err error)
}

// Rebuilder replaces a stale presentation chain and reports how many images
// the replacement has. *Chain satisfies this.
type Rebuilder interface {
	Rebuild() (imageCount int, err error)
}

const noOwner = -1

// Scheduler cycles a fixed set of frame slots through the
// wait/acquire/submit/present protocol, triggering chain rebuilds when the
// surface goes stale. Exactly one goroutine drives it; the resize flag is
// the only state written from elsewhere.
type Scheduler struct {
	dev    FrameDevice
	chain  Rebuilder
	frames int

	slot   int
	owners []int // image index -> slot whose fence covers it, or noOwner

	resize atomic.Bool
}

// NewScheduler prepares a scheduler for the given pipelining depth and the
// live chain's image count. Slot and image counts are independent; the
// owners table is what keeps them honest.
func NewScheduler(dev FrameDevice, chain Rebuilder, frames, imageCount int) *Scheduler {
	s := &Scheduler{
		dev:    dev,
		chain:  chain,
		frames: frames,
	}
	s.resetOwners(imageCount)
	return s
}

// NotifyResize marks that the windowing layer saw a resize. Safe to call
// from the window callback; the scheduler consumes it after the next present.
func (s *Scheduler) NotifyResize() {
	s.resize.Store(true)
}

// Slot is the frame slot the next DrawFrame call will use.
func (s *Scheduler) Slot() int { return s.slot }

func (s *Scheduler) resetOwners(imageCount int) {
	s.owners = make([]int, imageCount)
	for k := range s.owners {
		s.owners[k] = noOwner
	}
}

func (s *Scheduler) rebuildChain() error {
	count, err := s.chain.Rebuild()
	if err != nil {
		return err
	}
	s.resetOwners(count)
	return nil
}

// DrawFrame runs one iteration of the frame protocol on the current slot.
// A stale chain during acquire aborts the iteration before any submission;
// staleness or a pending resize at present rebuilds after the present was
// attempted. Every other device failure is fatal to the caller.
func (s *Scheduler) DrawFrame() error {
	// The slot's fence bounds work in flight: block until its previous
	// frame completed.
	if err := s.dev.WaitForFrame(s.slot); err != nil {
		return err
	}

	image, outdated, err := s.dev.Acquire(s.slot)
	if err != nil {
		return err
	}
	if outdated {
		// Same slot retries after the rebuild.
		return s.rebuildChain()
	}
	if image < 0 || image >= len(s.owners) {
		return fmt.Errorf("acquired image index %d out of range (%d images)", image, len(s.owners))
	}

	// Slot count and image count are not guaranteed equal, so a different
	// slot may still have work against this image. Its fence covers it.
	if owner := s.owners[image]; owner != noOwner {
		if err := s.dev.WaitForFrame(owner); err != nil {
			return err
		}
	}
	s.owners[image] = s.slot

	// Fences are created signaled; reset only right before the submission
	// that will signal them again.
	if err := s.dev.ResetFrame(s.slot); err != nil {
		return err
	}
	if err := s.dev.Submit(s.slot, image); err != nil {
		return err
	}

	outdated, err = s.dev.Present(s.slot, image)
	if err != nil {
		return err
	}
	if outdated || s.resize.Load() {
		s.resize.Store(false)
		if err := s.rebuildChain(); err != nil {
			return err
		}
	}

	s.slot = (s.slot + 1) % s.frames
	return nil
}
