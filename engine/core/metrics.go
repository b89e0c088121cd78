package core

import (
	"sync"
	"time"
)

const AVG_COUNT uint8 = 30

type MetricsState struct {
	mu sync.Mutex

	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	// DrawMS is the CPU time spent recording the last frame.
	DrawMS float64
}

var onceMetrics sync.Once
var metricsState *MetricsState

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{}
	})
	return nil
}

func MetricsUpdate(frameElapsed time.Duration) {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	frameMS := float64(frameElapsed.Microseconds()) / 1000.0
	metricsState.MStimes[metricsState.FrameAVGCounter] = frameMS
	if metricsState.FrameAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += metricsState.MStimes[i]
		}
		metricsState.MSavg = sum / float64(AVG_COUNT)
	}
	metricsState.FrameAVGCounter++
	metricsState.FrameAVGCounter %= AVG_COUNT

	metricsState.AccumulatedFrameMS += frameMS
	if metricsState.AccumulatedFrameMS > 1000 {
		metricsState.FPS = float64(metricsState.Frames)
		metricsState.AccumulatedFrameMS -= 1000
		metricsState.Frames = 0
	}
	metricsState.Frames++
}

func MetricsRecordDraw(d time.Duration) {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	metricsState.DrawMS = float64(d.Microseconds()) / 1000.0
	metricsState.mu.Unlock()
}

// MetricsFrame returns the frames per second and the averaged frame time in ms.
func MetricsFrame() (float64, float64) {
	if metricsState == nil {
		return 0, 0
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.FPS, metricsState.MSavg
}

func MetricsDrawTime() float64 {
	if metricsState == nil {
		return 0
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.DrawMS
}
