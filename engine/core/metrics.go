package core

import "github.com/spaghettifunk/hawk/engine/containers"

const AVG_COUNT uint8 = 30

// Metrics keeps a rolling frame time average and a once-per-second FPS count.
type Metrics struct {
	msTimes            *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{msTimes: containers.NewRingQueue[float64](int(AVG_COUNT))}
}

// Update records one frame. It returns true when a new FPS sample is available.
func (m *Metrics) Update(frameElapsedTime float64) bool {
	frameMS := frameElapsedTime * 1000.0
	m.msTimes.Push(frameMS)
	sum := 0.0
	m.msTimes.Each(func(ms float64) { sum += ms })
	m.msAvg = sum / float64(m.msTimes.Len())

	m.frames++
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
		return true
	}
	return false
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds over the last AVG_COUNT frames.
func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}
