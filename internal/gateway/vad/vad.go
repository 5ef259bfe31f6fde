// Package vad implements voice activity detection for call audio streams.
//
// Two detectors are provided: a baseline detector comparing frame RMS energy
// against a fixed threshold, and an adaptive detector that derives its
// thresholds from a rolling noise-floor estimate. Both apply hysteresis so
// the state never flickers at the boundary: a configurable amount of
// sustained evidence is required before switching in either direction.
package vad

import (
	"fmt"
	"math"
	"sync"
)

// State is the classification of the audio stream.
type State int

const (
	// Silence indicates no speech is currently detected.
	Silence State = iota
	// Speaking indicates sustained speech is being detected.
	Speaking
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Silence:
		return "Silence"
	case Speaking:
		return "Speaking"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Config holds baseline detector parameters.
type Config struct {
	SampleRate      int     // Audio sample rate in Hz
	FrameMs         int     // Frame duration in milliseconds
	Threshold       float64 // Normalized RMS threshold (0..1) for speech
	EnterSpeakingMs int     // Sustained speech required to enter Speaking
	ResumeSilenceMs int     // Sustained silence required to return to Silence
}

// DefaultConfig returns defaults for narrowband call audio.
func DefaultConfig() Config {
	return Config{
		SampleRate:      8000,
		FrameMs:         20,
		Threshold:       0.02,
		EnterSpeakingMs: 60,
		ResumeSilenceMs: 400,
	}
}

// Detector is the baseline RMS-threshold voice activity detector.
// One detector instance serves exactly one audio stream.
type Detector struct {
	mu  sync.Mutex
	cfg Config

	state         State
	speakingCount int // consecutive above-threshold frames while in Silence
	silenceCount  int // consecutive below-threshold frames while in Speaking
	enterFrames   int
	resumeFrames  int
}

// NewDetector creates a baseline detector.
func NewDetector(cfg Config) *Detector {
	d := &Detector{}
	d.apply(cfg)
	return d
}

// apply installs cfg and re-seeds the detector to Silence. Callers hold mu
// or own the detector exclusively.
func (d *Detector) apply(cfg Config) {
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = 20
	}
	d.cfg = cfg
	d.enterFrames = ceilDiv(cfg.EnterSpeakingMs, cfg.FrameMs)
	d.resumeFrames = ceilDiv(cfg.ResumeSilenceMs, cfg.FrameMs)
	d.state = Silence
	d.speakingCount = 0
	d.silenceCount = 0
}

// Process classifies one frame of 16-bit PCM samples and returns the
// detector state after the frame has been applied.
func (d *Detector) Process(frame []int16) State {
	d.mu.Lock()
	defer d.mu.Unlock()

	above := RMS(frame) >= d.cfg.Threshold
	d.advance(above)
	return d.state
}

// advance applies the hysteresis counters for one classified frame.
// Counters reset on an opposite-direction frame, so the state can never
// change without the configured run of consecutive evidence.
func (d *Detector) advance(above bool) {
	switch d.state {
	case Silence:
		if above {
			d.speakingCount++
			if d.speakingCount >= d.enterFrames {
				d.state = Speaking
				d.speakingCount = 0
				d.silenceCount = 0
			}
		} else {
			d.speakingCount = 0
		}
	case Speaking:
		if !above {
			d.silenceCount++
			if d.silenceCount >= d.resumeFrames {
				d.state = Silence
				d.silenceCount = 0
				d.speakingCount = 0
			}
		} else {
			d.silenceCount = 0
		}
	}
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Reconfigure installs new parameters. The state is forced back to Silence
// and all hysteresis counters are zeroed, regardless of the prior state.
func (d *Detector) Reconfigure(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(cfg)
}

// Reset clears counters and returns the detector to Silence without
// changing configuration.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Silence
	d.speakingCount = 0
	d.silenceCount = 0
}

// RMS computes the root-mean-square energy of a frame, normalized to 0..1.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum/float64(len(frame))) / 32768.0
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
