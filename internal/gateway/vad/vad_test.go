package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeFrame builds one frame of constant-amplitude alternating samples
// whose RMS equals amp (normalized to 1.0).
func makeFrame(cfg Config, amp float64) []int16 {
	n := cfg.SampleRate * cfg.FrameMs / 1000
	frame := make([]int16, n)
	v := int16(amp * 32768.0)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = v
		} else {
			frame[i] = -v
		}
	}
	return frame
}

func TestRMS(t *testing.T) {
	frame := []int16{16384, -16384, 16384, -16384}
	got := RMS(frame)
	assert.InDelta(t, 0.5, got, 0.001)

	assert.Equal(t, 0.0, RMS(nil))
	assert.Equal(t, 0.0, RMS([]int16{}))
}

func TestDetectorStartsSilent(t *testing.T) {
	d := NewDetector(DefaultConfig())
	assert.Equal(t, Silence, d.State())
}

func TestDetectorEnterSpeakingAfterConsecutiveFrames(t *testing.T) {
	cfg := DefaultConfig() // 20ms frames, 60ms enter => 3 frames
	d := NewDetector(cfg)

	loud := makeFrame(cfg, 0.2)

	assert.Equal(t, Silence, d.Process(loud))
	assert.Equal(t, Silence, d.Process(loud))
	assert.Equal(t, Speaking, d.Process(loud))
}

func TestDetectorQuietFrameResetsEnterCount(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)

	loud := makeFrame(cfg, 0.2)
	quiet := makeFrame(cfg, 0.001)

	d.Process(loud)
	d.Process(loud)
	d.Process(quiet) // resets the run
	d.Process(loud)
	d.Process(loud)
	assert.Equal(t, Silence, d.State())
	assert.Equal(t, Speaking, d.Process(loud))
}

func TestDetectorResumeSilence(t *testing.T) {
	cfg := DefaultConfig() // 400ms resume => 20 frames
	d := NewDetector(cfg)

	loud := makeFrame(cfg, 0.2)
	quiet := makeFrame(cfg, 0.001)

	for i := 0; i < 3; i++ {
		d.Process(loud)
	}
	require.Equal(t, Speaking, d.State())

	// Short pauses must not flip the state back.
	for i := 0; i < 19; i++ {
		assert.Equal(t, Speaking, d.Process(quiet))
	}
	assert.Equal(t, Silence, d.Process(quiet))
}

func TestDetectorReconfigureResetsState(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)

	loud := makeFrame(cfg, 0.2)
	for i := 0; i < 3; i++ {
		d.Process(loud)
	}
	require.Equal(t, Speaking, d.State())

	cfg.Threshold = 0.1
	d.Reconfigure(cfg)
	assert.Equal(t, Silence, d.State())
}

func TestAdaptiveDetectorQuietRoomStaysSilent(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	d := NewAdaptiveDetector(cfg)

	// Two seconds of background hum well under the initial floor margin.
	frames := 2000 / cfg.FrameMs
	for i := 0; i < frames; i++ {
		assert.Equal(t, Silence, d.ProcessRMS(0.001))
	}

	// The floor has adapted toward the hum.
	assert.Less(t, d.NoiseFloor(), cfg.InitialFloor)
	assert.GreaterOrEqual(t, d.NoiseFloor(), cfg.FloorMin)
}

func TestAdaptiveDetectorSpeechAfterAdaptation(t *testing.T) {
	cfg := DefaultAdaptiveConfig() // 60ms enter => 3 frames at 20ms
	d := NewAdaptiveDetector(cfg)

	for i := 0; i < 100; i++ {
		d.ProcessRMS(0.001)
	}
	floorBefore := d.NoiseFloor()

	// Speech at 0.05 clears the 6 dB enter margin over the adapted floor.
	d.ProcessRMS(0.05)
	d.ProcessRMS(0.05)
	assert.Equal(t, Speaking, d.ProcessRMS(0.05))

	// The floor must not chase speech energy.
	assert.InDelta(t, floorBefore, d.NoiseFloor(), floorBefore*0.2)
}

func TestAdaptiveDetectorResumeUsesSmallerMargin(t *testing.T) {
	cfg := DefaultAdaptiveConfig() // 400ms resume => 20 frames
	d := NewAdaptiveDetector(cfg)

	for i := 0; i < 100; i++ {
		d.ProcessRMS(0.001)
	}
	for i := 0; i < 3; i++ {
		d.ProcessRMS(0.05)
	}
	require.Equal(t, Speaking, d.State())

	resumeFrames := int(math.Ceil(float64(cfg.ResumeSilenceMs) / float64(cfg.FrameMs)))
	for i := 0; i < resumeFrames-1; i++ {
		assert.Equal(t, Speaking, d.ProcessRMS(0.001))
	}
	assert.Equal(t, Silence, d.ProcessRMS(0.001))
}

func TestAdaptiveDetectorFloorClamped(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	d := NewAdaptiveDetector(cfg)

	// Dead silence cannot push the floor below the clamp.
	for i := 0; i < 1000; i++ {
		d.ProcessRMS(0)
	}
	assert.GreaterOrEqual(t, d.NoiseFloor(), cfg.FloorMin)

	// Sustained noise treated as background cannot exceed the ceiling.
	d.Reset()
	for i := 0; i < 1000; i++ {
		d.ProcessRMS(0.0009)
	}
	assert.LessOrEqual(t, d.NoiseFloor(), cfg.FloorMax)
}

func TestAdaptiveDetectorReconfigureResets(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	d := NewAdaptiveDetector(cfg)

	for i := 0; i < 100; i++ {
		d.ProcessRMS(0.001)
	}
	for i := 0; i < 3; i++ {
		d.ProcessRMS(0.05)
	}
	require.Equal(t, Speaking, d.State())

	d.Reconfigure(cfg)
	assert.Equal(t, Silence, d.State())
	assert.InDelta(t, cfg.InitialFloor, d.NoiseFloor(), 1e-9)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Silence", Silence.String())
	assert.Equal(t, "Speaking", Speaking.String())
}
