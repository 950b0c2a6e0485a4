package core

import "time"

const AVG_COUNT uint8 = 30

// CullCounters are the per-frame counters reported by the scene cull.
type CullCounters struct {
	DirtyInstances  int
	PairsCreated    int
	PairsDestroyed  int
	VisibilityCulls int
}

// Metrics keeps a rolling frame-time average and the counters of the last
// frame. It is owned by the update thread.
type Metrics struct {
	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64

	Last  CullCounters
	Total CullCounters
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Update(frameElapsed time.Duration, counters CullCounters) {
	// Calculate frame ms average
	frameMS := float64(frameElapsed) / float64(time.Millisecond)
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		m.msAvg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.msAvg += m.msTimes[i]
		}
		m.msAvg /= float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	// Calculate frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
	m.frames++

	m.Last = counters
	m.Total.DirtyInstances += counters.DirtyInstances
	m.Total.PairsCreated += counters.PairsCreated
	m.Total.PairsDestroyed += counters.PairsDestroyed
	m.Total.VisibilityCulls += counters.VisibilityCulls
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
