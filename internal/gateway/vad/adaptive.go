package vad

import (
	"math"
	"sync"
)

// AdaptiveConfig holds adaptive detector parameters. Instead of a single
// static threshold, the detector tracks an exponentially-weighted moving
// average of background energy and derives two thresholds from it: a wider
// margin to enter Speaking and a narrower one to leave it. The asymmetry is
// what prevents chatter at the boundary.
type AdaptiveConfig struct {
	SampleRate      int     // Audio sample rate in Hz
	FrameMs         int     // Frame duration in milliseconds
	Alpha           float64 // EWMA weight for the noise floor update
	EnterMarginDB   float64 // Margin above the floor to enter Speaking
	ResumeMarginDB  float64 // Margin above the floor to stay Speaking
	EnterSpeakingMs int     // Sustained speech required to enter Speaking
	ResumeSilenceMs int     // Sustained silence required to return to Silence
	InitialFloor    float64 // Noise floor seed (normalized RMS)
	FloorMin        float64 // Lower clamp for the floor estimate
	FloorMax        float64 // Upper clamp for the floor estimate
}

// DefaultAdaptiveConfig returns defaults for narrowband call audio.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		SampleRate:      8000,
		FrameMs:         20,
		Alpha:           0.05,
		EnterMarginDB:   6,
		ResumeMarginDB:  3,
		EnterSpeakingMs: 60,
		ResumeSilenceMs: 400,
		InitialFloor:    0.002,
		FloorMin:        0.0005,
		FloorMax:        0.2,
	}
}

// AdaptiveDetector classifies frames against thresholds derived from a
// rolling noise-floor estimate. The floor is only updated on frames
// classified as non-speaking and is clamped to [FloorMin, FloorMax] so a
// long stretch of loud input cannot drag the floor up into runaway
// adaptation.
type AdaptiveDetector struct {
	mu  sync.Mutex
	cfg AdaptiveConfig

	state         State
	floor         float64
	speakingCount int
	silenceCount  int
	enterFrames   int
	resumeFrames  int
}

// NewAdaptiveDetector creates an adaptive detector.
func NewAdaptiveDetector(cfg AdaptiveConfig) *AdaptiveDetector {
	d := &AdaptiveDetector{}
	d.apply(cfg)
	return d
}

func (d *AdaptiveDetector) apply(cfg AdaptiveConfig) {
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = 20
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = 0.05
	}
	if cfg.FloorMin <= 0 {
		cfg.FloorMin = 0.0005
	}
	if cfg.FloorMax <= cfg.FloorMin {
		cfg.FloorMax = 0.2
	}
	if cfg.InitialFloor < cfg.FloorMin {
		cfg.InitialFloor = cfg.FloorMin
	}
	d.cfg = cfg
	d.enterFrames = ceilDiv(cfg.EnterSpeakingMs, cfg.FrameMs)
	d.resumeFrames = ceilDiv(cfg.ResumeSilenceMs, cfg.FrameMs)
	d.state = Silence
	d.floor = cfg.InitialFloor
	d.speakingCount = 0
	d.silenceCount = 0
}

// Process classifies one frame of 16-bit PCM samples and returns the state
// after the frame has been applied.
func (d *AdaptiveDetector) Process(frame []int16) State {
	return d.ProcessRMS(RMS(frame))
}

// ProcessRMS classifies a frame given its precomputed normalized RMS energy.
func (d *AdaptiveDetector) ProcessRMS(energy float64) State {
	d.mu.Lock()
	defer d.mu.Unlock()

	margin := d.cfg.EnterMarginDB
	if d.state == Speaking {
		margin = d.cfg.ResumeMarginDB
	}
	threshold := d.floor * dbToRatio(margin)
	above := energy >= threshold

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

	// Floor adapts only on non-speaking frames so speech bursts cannot
	// lift the estimate.
	if !above {
		d.floor = (1-d.cfg.Alpha)*d.floor + d.cfg.Alpha*energy
		if d.floor < d.cfg.FloorMin {
			d.floor = d.cfg.FloorMin
		}
		if d.floor > d.cfg.FloorMax {
			d.floor = d.cfg.FloorMax
		}
	}

	return d.state
}

// State returns the current state.
func (d *AdaptiveDetector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// NoiseFloor returns the current noise-floor estimate (normalized RMS).
func (d *AdaptiveDetector) NoiseFloor() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.floor
}

// Reconfigure installs new parameters, re-seeding the floor estimate,
// zeroing all counters and forcing the state back to Silence.
func (d *AdaptiveDetector) Reconfigure(cfg AdaptiveConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(cfg)
}

// Reset re-seeds the detector to Silence with the current configuration.
func (d *AdaptiveDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(d.cfg)
}

func dbToRatio(db float64) float64 {
	return math.Pow(10, db/20)
}
