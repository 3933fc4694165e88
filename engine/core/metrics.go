package core

import (
	"github.com/spaghettifunk/strata/engine/containers"
)

const AVG_COUNT = 30

// Metrics tracks frame timing and the size of the last submitted frame.
type Metrics struct {
	frameTimes         *containers.RingQueue[float64]
	msTotal            float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64

	FrameNumber   uint64
	DrawCount     uint32
	InstanceCount uint32
}

func NewMetrics() *Metrics {
	return &Metrics{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records one frame that took frameElapsedTime seconds.
func (m *Metrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	if dropped, ok := m.frameTimes.Push(frameMS); ok {
		m.msTotal -= dropped
	}
	m.msTotal += frameMS

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
	m.frames++
	m.FrameNumber++
}

// RecordDraws stores the batch sizes of the frame just flushed.
func (m *Metrics) RecordDraws(drawCount, instanceCount uint32) {
	m.DrawCount = drawCount
	m.InstanceCount = instanceCount
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds over the last AVG_COUNT frames.
func (m *Metrics) FrameTime() float64 {
	if m.frameTimes.IsEmpty() {
		return 0
	}
	return m.msTotal / float64(m.frameTimes.Len())
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.FrameTime()
}
