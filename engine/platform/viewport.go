package platform

import "sync"

// Viewport is the surface the engine renders to: an OS window or a
// headless stand-in.
type Viewport interface {
	Width() int
	Height() int
	// FramebufferSize is the drawable size in pixels.
	FramebufferSize() (width, height int)
	IsOpen() bool
	// OnResize registers fn to run whenever the drawable size changes.
	OnResize(fn func(width, height int))
	PollEvents()
	Close()
}

type resizeListeners struct {
	mu  sync.Mutex
	fns []func(width, height int)
}

func (l *resizeListeners) add(fn func(width, height int)) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *resizeListeners) fire(width, height int) {
	l.mu.Lock()
	fns := append([]func(int, int)(nil), l.fns...)
	l.mu.Unlock()
	for _, fn := range fns {
		fn(width, height)
	}
}

// HeadlessViewport has a settable size and no OS window.
type HeadlessViewport struct {
	mu     sync.Mutex
	width  int
	height int
	closed bool
	resize resizeListeners
}

func NewHeadlessViewport(width, height int) *HeadlessViewport {
	return &HeadlessViewport{width: width, height: height}
}

func (v *HeadlessViewport) Width() int {
	w, _ := v.FramebufferSize()
	return w
}

func (v *HeadlessViewport) Height() int {
	_, h := v.FramebufferSize()
	return h
}

func (v *HeadlessViewport) FramebufferSize() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

func (v *HeadlessViewport) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed
}

func (v *HeadlessViewport) OnResize(fn func(width, height int)) { v.resize.add(fn) }

// Resize changes the size and fires the listeners, like a window resize
// would. An unchanged size fires nothing.
func (v *HeadlessViewport) Resize(width, height int) {
	v.mu.Lock()
	if v.width == width && v.height == height {
		v.mu.Unlock()
		return
	}
	v.width, v.height = width, height
	v.mu.Unlock()
	v.resize.fire(width, height)
}

func (v *HeadlessViewport) PollEvents() {}

func (v *HeadlessViewport) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}
