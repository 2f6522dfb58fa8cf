package core

const AVG_COUNT uint8 = 30

// Metrics tracks a rolling frame-time average and frames per second.
type Metrics struct {
	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update records the duration of the last frame, in seconds.
func (m *Metrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += m.msTimes[i]
		}
		m.msAvg = sum / float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	// Count all Frames.
	m.frames++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
