package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/containers"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// FrameState is the position of the scheduler in the frame cycle.
type FrameState int

const (
	FrameIdle FrameState = iota
	FrameAcquiring
	FrameRecording
	FrameSubmitted
	// FrameLost is terminal: the device stopped retiring work.
	FrameLost
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameAcquiring:
		return "acquiring"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	case FrameLost:
		return "lost"
	default:
		return "unknown"
	}
}

type SchedulerStats struct {
	FenceWaits   int
	FenceSignals int
	Acquires     int
	Presents     int
	Recreations  int
	Frames       int
}

const deferredQueueSize = 8

type deferredTask struct {
	owner any
	fn    func() error
	live  bool
}

// FrameScheduler paces frames against the GPU. Each frame slot has a fence
// guarding reuse of its resources, a semaphore signaled when its swapchain
// image is available and one signaled when its rendering has finished.
type FrameScheduler struct {
	logger  *log.Logger
	dev     *GraphicsDevice
	timeout time.Duration

	state          FrameState
	fences         []driver.Fence
	imageAvailable []driver.Semaphore
	renderFinished []driver.Semaphore

	target          *Framebuffer
	acquired        bool
	recreatePending bool

	tasks     *containers.RingQueue[*deferredTask]
	pending   map[any]*deferredTask
	listeners []func(frame int)

	stats SchedulerStats
}

// NewFrameScheduler creates the per-frame synchronization objects and
// attaches the scheduler to dev. Fences start signaled so the first wait
// on each slot returns at once.
func NewFrameScheduler(dev *GraphicsDevice, fenceTimeout time.Duration) (*FrameScheduler, error) {
	if fenceTimeout <= 0 {
		fenceTimeout = 2 * time.Second
	}
	s := &FrameScheduler{
		logger:  dev.logger,
		dev:     dev,
		timeout: fenceTimeout,
		tasks:   containers.NewRingQueue[*deferredTask](deferredQueueSize),
		pending: make(map[any]*deferredTask),
	}
	gpu := dev.gpu
	for i := 0; i < dev.FramesInFlight(); i++ {
		fence, err := gpu.NewFence(true)
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("creating frame %d fence: %w", i, err)
		}
		s.fences = append(s.fences, fence)
		for _, sems := range []*[]driver.Semaphore{&s.imageAvailable, &s.renderFinished} {
			sem, err := gpu.NewSemaphore()
			if err != nil {
				s.Destroy()
				return nil, fmt.Errorf("creating frame %d semaphore: %w", i, err)
			}
			*sems = append(*sems, sem)
		}
	}
	dev.scheduler = s
	return s, nil
}

// BeginFrame waits until the current slot is free, acquires a swapchain
// image when fb targets the swapchain, and moves to Recording.
func (s *FrameScheduler) BeginFrame(fb *Framebuffer) error {
	switch s.state {
	case FrameIdle:
	case FrameLost:
		return driver.ErrDeviceLost
	default:
		return fmt.Errorf("%w: scheduler is %s", ErrFrameInProgress, s.state)
	}
	s.state = FrameAcquiring
	frame := s.dev.CurrentFrame()

	s.stats.FenceWaits++
	if err := s.fences[frame].Wait(s.timeout); err != nil {
		if errors.Is(err, driver.ErrTimeout) || errors.Is(err, driver.ErrDeviceLost) {
			s.state = FrameLost
			err = fmt.Errorf("%w: frame %d fence unsignaled after %s", driver.ErrDeviceLost, frame, s.timeout)
			s.logger.Error(err.Error())
			return err
		}
		s.state = FrameIdle
		return fmt.Errorf("waiting for frame %d: %w", frame, err)
	}

	if !fb.IsOffscreen() {
		idx, err := s.acquire(frame)
		if err != nil {
			s.state = FrameIdle
			return err
		}
		s.dev.imageIndex = idx
		s.acquired = true
	}

	// The fence is reset at submission, so a frame abandoned before then
	// leaves it signaled.
	s.target = fb
	s.state = FrameRecording
	return nil
}

// abort abandons a frame that began but will not be submitted. An image
// acquired for it left its semaphore signaled with nothing waiting on it,
// so that semaphore is replaced.
func (s *FrameScheduler) abort() error {
	if s.state != FrameRecording {
		return nil
	}
	frame := s.dev.CurrentFrame()
	s.target = nil
	s.state = FrameIdle
	if !s.acquired {
		return nil
	}
	s.acquired = false
	s.logger.Warn("frame abandoned after acquire", "frame", frame)
	if err := s.dev.gpu.WaitIdle(); err != nil {
		s.state = FrameLost
		return fmt.Errorf("%w: waiting to drop frame %d: %v", driver.ErrDeviceLost, frame, err)
	}
	sem, err := s.dev.gpu.NewSemaphore()
	if err != nil {
		s.state = FrameLost
		return fmt.Errorf("replacing frame %d semaphore: %w", frame, err)
	}
	s.imageAvailable[frame].Destroy()
	s.imageAvailable[frame] = sem
	return nil
}

// acquire gets the next swapchain image. An out of date swapchain is
// recreated and the acquire retried once.
func (s *FrameScheduler) acquire(frame int) (int, error) {
	sem := s.imageAvailable[frame]
	idx, err := s.dev.Swapchain().Next(sem, s.timeout)
	s.stats.Acquires++
	if errors.Is(err, driver.ErrOutOfDate) {
		s.logger.Warn("swapchain out of date on acquire, recreating", "frame", frame)
		if err := s.recreate(); err != nil {
			return -1, err
		}
		idx, err = s.dev.Swapchain().Next(sem, s.timeout)
		s.stats.Acquires++
		if err != nil && !errors.Is(err, driver.ErrSuboptimal) {
			return -1, fmt.Errorf("acquiring after swapchain recreation: %w", err)
		}
	}
	if errors.Is(err, driver.ErrSuboptimal) {
		s.logger.Warn("swapchain suboptimal on acquire, recreating after present", "frame", frame)
		s.recreatePending = true
		return idx, nil
	}
	if err != nil {
		return -1, fmt.Errorf("acquiring swapchain image: %w", err)
	}
	return idx, nil
}

func (s *FrameScheduler) recreate() error {
	s.stats.Recreations++
	if err := s.dev.recreate(); err != nil {
		s.logger.Error("swapchain recreation failed", "err", err)
		return err
	}
	return nil
}

// SubmitFrame submits the recorded commands of cq, presents swapchain
// frames, advances the frame index and runs deferred tasks.
func (s *FrameScheduler) SubmitFrame(cq *CommandQueue) error {
	if s.state != FrameRecording {
		return fmt.Errorf("%w: scheduler is %s", ErrNoFrame, s.state)
	}
	if cq.State() != StateRecordingEnded {
		return fmt.Errorf("%w: submit while %s", ErrInvalidState, cq.State())
	}
	frame := s.dev.CurrentFrame()
	present := !s.target.IsOffscreen()

	if err := s.fences[frame].Reset(); err != nil {
		return fmt.Errorf("resetting frame %d fence: %w", frame, err)
	}
	sub := &driver.Submission{Cmd: cq.Current(), Fence: s.fences[frame]}
	if present {
		sub.Wait = s.imageAvailable[frame]
		sub.Signal = s.renderFinished[frame]
	}
	if err := s.dev.gpu.Submit(sub); err != nil {
		s.state = FrameLost
		err = fmt.Errorf("submitting frame %d: %w", frame, err)
		s.logger.Error(err.Error())
		return err
	}
	cq.markSubmitted()
	s.stats.FenceSignals++
	s.state = FrameSubmitted

	var errs []error
	if present {
		err := s.dev.gpu.Present(s.dev.Swapchain(), s.dev.ImageIndex(), s.renderFinished[frame])
		s.stats.Presents++
		switch {
		case err == nil:
		case errors.Is(err, driver.ErrOutOfDate), errors.Is(err, driver.ErrSuboptimal):
			s.logger.Warn("swapchain needs recreation after present", "frame", frame, "err", err)
			s.recreatePending = true
		default:
			errs = append(errs, fmt.Errorf("presenting frame %d: %w", frame, err))
		}
	}

	s.finish(frame)

	if s.recreatePending {
		s.recreatePending = false
		if err := s.recreate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.drain(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *FrameScheduler) finish(frame int) {
	s.dev.SetCurrentFrame(frame + 1)
	s.target = nil
	s.acquired = false
	s.state = FrameIdle
	s.stats.Frames++
	for _, fn := range s.listeners {
		fn(frame)
	}
}

// Defer queues fn to run when the current frame finishes. A later task
// with the same owner replaces one still pending.
func (s *FrameScheduler) Defer(owner any, fn func() error) {
	if prev, ok := s.pending[owner]; ok {
		prev.live = false
	}
	t := &deferredTask{owner: owner, fn: fn, live: true}
	s.pending[owner] = t
	if s.tasks.IsFull() {
		s.tasks.Grow()
	}
	// Cannot fail after the growth above.
	_ = s.tasks.Enqueue(t)
}

// Pending is the number of deferred tasks waiting to run.
func (s *FrameScheduler) Pending() int {
	return len(s.pending)
}

func (s *FrameScheduler) drain() error {
	var errs []error
	for !s.tasks.IsEmpty() {
		t, err := s.tasks.Dequeue()
		if err != nil {
			break
		}
		if !t.live {
			continue
		}
		delete(s.pending, t.owner)
		if err := t.fn(); err != nil {
			s.logger.Error("deferred task failed", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Busy reports whether a frame is being recorded or executed, during which
// frame resources must not be destroyed.
func (s *FrameScheduler) Busy() bool {
	return s.state == FrameRecording || s.state == FrameSubmitted
}

// OnFrameFinished registers fn to run after every submitted frame with the
// index of the frame slot that finished.
func (s *FrameScheduler) OnFrameFinished(fn func(frame int)) {
	s.listeners = append(s.listeners, fn)
}

func (s *FrameScheduler) State() FrameState { return s.state }
func (s *FrameScheduler) Stats() SchedulerStats { return s.stats }

func (s *FrameScheduler) Destroy() {
	if err := s.dev.gpu.WaitIdle(); err != nil {
		s.logger.Warn("wait idle before scheduler destroy", "err", err)
	}
	for _, f := range s.fences {
		f.Destroy()
	}
	for _, sem := range s.imageAvailable {
		sem.Destroy()
	}
	for _, sem := range s.renderFinished {
		sem.Destroy()
	}
	s.fences, s.imageAvailable, s.renderFinished = nil, nil, nil
	if s.dev.scheduler == s {
		s.dev.scheduler = nil
	}
}
