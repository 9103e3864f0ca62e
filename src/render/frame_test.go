package render

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type acquireStep struct {
	image    int
	outdated bool
	err      error
}

type presentStep struct {
	outdated bool
	err      error
}

// fakeFrameDevice simulates fence state per slot: fences start signaled,
// ResetFrame unsignals them, and a wait stands in for GPU completion.
type fakeFrameDevice struct {
	signaled []bool

	acquires      []acquireStep
	presents      []presentStep
	nextAcquire   int
	nextPresent   int
	defaultImages int // round-robin acquire once the script runs out

	trace          []string
	submits        int
	presented      int
	maxOutstanding int
}

func newFakeFrameDevice(frames int) *fakeFrameDevice {
	f := &fakeFrameDevice{signaled: make([]bool, frames)}
	for k := range f.signaled {
		f.signaled[k] = true // fences are created pre-signaled
	}
	return f
}

func (f *fakeFrameDevice) outstanding() int {
	n := 0
	for _, ok := range f.signaled {
		if !ok {
			n++
		}
	}
	return n
}

func (f *fakeFrameDevice) WaitForFrame(slot int) error {
	f.trace = append(f.trace, fmt.Sprintf("wait:%d", slot))
	f.signaled[slot] = true
	return nil
}

func (f *fakeFrameDevice) ResetFrame(slot int) error {
	f.trace = append(f.trace, fmt.Sprintf("reset:%d", slot))
	f.signaled[slot] = false
	if n := f.outstanding(); n > f.maxOutstanding {
		f.maxOutstanding = n
	}
	return nil
}

func (f *fakeFrameDevice) Acquire(slot int) (int, bool, error) {
	f.trace = append(f.trace, fmt.Sprintf("acquire:%d", slot))
	if f.nextAcquire < len(f.acquires) {
		step := f.acquires[f.nextAcquire]
		f.nextAcquire++
		return step.image, step.outdated, step.err
	}
	image := 0
	if f.defaultImages > 0 {
		image = f.nextAcquire % f.defaultImages
	}
	f.nextAcquire++
	return image, false, nil
}

func (f *fakeFrameDevice) Submit(slot, image int) error {
	f.trace = append(f.trace, fmt.Sprintf("submit:%d:%d", slot, image))
	f.submits++
	return nil
}

func (f *fakeFrameDevice) Present(slot, image int) (bool, error) {
	f.trace = append(f.trace, fmt.Sprintf("present:%d:%d", slot, image))
	f.presented++
	if f.nextPresent < len(f.presents) {
		step := f.presents[f.nextPresent]
		f.nextPresent++
		return step.outdated, step.err
	}
	return false, nil
}

type fakeRebuilder struct {
	images   int
	rebuilds int
	err      error
}

func (f *fakeRebuilder) Rebuild() (int, error) {
	f.rebuilds++
	return f.images, f.err
}

func TestSchedulerSlotCycling(t *testing.T) {
	dev := newFakeFrameDevice(MaxFramesInFlight)
	dev.defaultImages = 3
	s := NewScheduler(dev, &fakeRebuilder{images: 3}, MaxFramesInFlight, 3)

	var slots []int
	for i := 0; i < 6; i++ {
		slots = append(slots, s.Slot())
		require.NoError(t, s.DrawFrame())
	}
	require.Equal(t, []int{0, 1, 0, 1, 0, 1}, slots)
}

func TestSchedulerInFlightBound(t *testing.T) {
	dev := newFakeFrameDevice(MaxFramesInFlight)
	dev.defaultImages = 3
	s := NewScheduler(dev, &fakeRebuilder{images: 3}, MaxFramesInFlight, 3)

	for i := 0; i < 8; i++ {
		require.NoError(t, s.DrawFrame())
	}
	require.Equal(t, 8, dev.submits)
	require.LessOrEqual(t, dev.maxOutstanding, MaxFramesInFlight)
}

func TestSchedulerAcquireOutdated(t *testing.T) {
	dev := newFakeFrameDevice(MaxFramesInFlight)
	dev.defaultImages = 3
	dev.acquires = []acquireStep{
		{image: 0},
		{image: 1},
		{outdated: true}, // iteration 3: stale chain
		{image: 2},
	}
	rb := &fakeRebuilder{images: 3}
	s := NewScheduler(dev, rb, MaxFramesInFlight, 3)

	require.NoError(t, s.DrawFrame())
	require.NoError(t, s.DrawFrame())

	before := s.Slot()
	require.NoError(t, s.DrawFrame())
	require.Equal(t, 1, rb.rebuilds)
	// No submit or present happened for the aborted iteration.
	require.Equal(t, 2, dev.submits)
	require.Equal(t, 2, dev.presented)
	// The same slot retries on the next call.
	require.Equal(t, before, s.Slot())

	require.NoError(t, s.DrawFrame())
	require.Equal(t, 3, dev.submits)
}

func TestSchedulerImageOwnerWait(t *testing.T) {
	dev := newFakeFrameDevice(MaxFramesInFlight)
	dev.acquires = []acquireStep{
		{image: 0}, // slot 0 claims image 0
		{image: 1},
		{image: 2},
		{image: 0}, // slot 1 reuses image 0, still fenced by slot 0
	}
	s := NewScheduler(dev, &fakeRebuilder{images: 3}, MaxFramesInFlight, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.DrawFrame())
	}

	dev.trace = nil
	require.NoError(t, s.DrawFrame())
	require.Equal(t, []string{
		"wait:1",      // own fence for the in-flight bound
		"acquire:1",   //
		"wait:0",      // image 0 still belongs to slot 0's fence
		"reset:1",     //
		"submit:1:0",  //
		"present:1:0", //
	}, dev.trace)
}

func TestSchedulerPresentOutdated(t *testing.T) {
	dev := newFakeFrameDevice(MaxFramesInFlight)
	dev.defaultImages = 3
	dev.presents = []presentStep{{outdated: true}}
	rb := &fakeRebuilder{images: 3}
	s := NewScheduler(dev, rb, MaxFramesInFlight, 3)

	require.NoError(t, s.DrawFrame())
	// The present itself was still issued before the rebuild.
	require.Equal(t, 1, dev.presented)
	require.Equal(t, 1, rb.rebuilds)
	// A present-triggered rebuild does not disturb the slot cadence.
	require.Equal(t, 1, s.Slot())
}

func TestSchedulerResizeFlag(t *testing.T) {
	dev := newFakeFrameDevice(MaxFramesInFlight)
	dev.defaultImages = 3
	rb := &fakeRebuilder{images: 3}
	s := NewScheduler(dev, rb, MaxFramesInFlight, 3)

	s.NotifyResize()
	require.NoError(t, s.DrawFrame())
	require.Equal(t, 1, dev.presented)
	require.Equal(t, 1, rb.rebuilds)

	// The flag is consumed; the next frame does not rebuild again.
	require.NoError(t, s.DrawFrame())
	require.Equal(t, 1, rb.rebuilds)
}

func TestSchedulerOwnersFollowRebuild(t *testing.T) {
	dev := newFakeFrameDevice(MaxFramesInFlight)
	dev.acquires = []acquireStep{
		{outdated: true},
		{image: 3}, // only valid if the rebuild grew the owner table
	}
	rb := &fakeRebuilder{images: 4}
	s := NewScheduler(dev, rb, MaxFramesInFlight, 3)

	require.NoError(t, s.DrawFrame())
	require.NoError(t, s.DrawFrame())
	require.Equal(t, 1, rb.rebuilds)
}

func TestSchedulerFatalErrors(t *testing.T) {
	t.Run("acquire failure propagates", func(t *testing.T) {
		dev := newFakeFrameDevice(MaxFramesInFlight)
		boom := errors.New("device lost")
		dev.acquires = []acquireStep{{err: boom}}
		s := NewScheduler(dev, &fakeRebuilder{images: 3}, MaxFramesInFlight, 3)
		require.ErrorIs(t, s.DrawFrame(), boom)
	})

	t.Run("present failure is fatal, no rebuild", func(t *testing.T) {
		dev := newFakeFrameDevice(MaxFramesInFlight)
		dev.defaultImages = 3
		boom := errors.New("present rejected")
		dev.presents = []presentStep{{err: boom}}
		rb := &fakeRebuilder{images: 3}
		s := NewScheduler(dev, rb, MaxFramesInFlight, 3)
		require.ErrorIs(t, s.DrawFrame(), boom)
		require.Zero(t, rb.rebuilds)
	})

	t.Run("out-of-range image index", func(t *testing.T) {
		dev := newFakeFrameDevice(MaxFramesInFlight)
		dev.acquires = []acquireStep{{image: 9}}
		s := NewScheduler(dev, &fakeRebuilder{images: 3}, MaxFramesInFlight, 3)
		require.Error(t, s.DrawFrame())
	})
}
