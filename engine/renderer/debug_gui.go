package renderer

// DebugGUI is an immediate mode GUI drawn on top of a frame. The
// application declares widgets between BeginFrame and EndFrame; the
// renderer only asks it to Render and never looks inside.
type DebugGUI interface {
	// BeginFrame starts a new GUI frame. Widgets are declared after it.
	BeginFrame()
	// EndFrame closes the widget declarations of the frame.
	EndFrame()
	// Render records the GUI draw commands into cq, inside the open pass.
	Render(cq *CommandQueue) error
}
