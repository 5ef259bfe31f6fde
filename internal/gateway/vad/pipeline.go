package vad

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/pion/rtp"
	"github.com/zaf/g711"
)

// ErrUnsupportedPayload is returned for RTP payload types the pipeline
// cannot decode.
var ErrUnsupportedPayload = errors.New("unsupported RTP payload type")

// RTP payload types the pipeline understands (RFC 3551 static assignments).
const (
	PayloadTypePCMU = 0
	PayloadTypePCMA = 8
)

// PipelineConfig controls the preprocessing applied before detection.
type PipelineConfig struct {
	InputRate    int     // Sample rate of the decoded stream (8000 for G.711)
	DetectorRate int     // Sample rate delivered to the detector
	HighPassHz   float64 // High-pass cutoff to strip DC offset and mains hum
	FrameMs      int     // Frame duration handed to the detector
}

// DefaultPipelineConfig returns defaults for a G.711 telephony stream.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		InputRate:    8000,
		DetectorRate: 16000,
		HighPassHz:   120,
		FrameMs:      20,
	}
}

// StateHandler is invoked when the detector changes state.
type StateHandler func(State)

// Pipeline normalizes raw call audio before the adaptive detector consumes
// it: G.711 decode, resample to the detector rate, first-order high-pass,
// then fixed-size framing. One pipeline serves one audio stream.
type Pipeline struct {
	mu       sync.Mutex
	cfg      PipelineConfig
	det      *AdaptiveDetector
	onChange StateHandler

	last         State
	pend         []int16
	frameSamples int

	// One-pole high-pass filter state
	hpAlpha   float64
	hpPrevIn  float64
	hpPrevOut float64
}

// NewPipeline creates a preprocessing pipeline feeding det. onChange may be
// nil if callers poll det.State() instead.
func NewPipeline(cfg PipelineConfig, det *AdaptiveDetector, onChange StateHandler) *Pipeline {
	if cfg.InputRate <= 0 {
		cfg.InputRate = 8000
	}
	if cfg.DetectorRate <= 0 {
		cfg.DetectorRate = cfg.InputRate
	}
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = 20
	}
	p := &Pipeline{
		cfg:          cfg,
		det:          det,
		onChange:     onChange,
		last:         Silence,
		frameSamples: cfg.DetectorRate * cfg.FrameMs / 1000,
	}
	if cfg.HighPassHz > 0 {
		rc := 1.0 / (2 * math.Pi * cfg.HighPassHz)
		dt := 1.0 / float64(cfg.DetectorRate)
		p.hpAlpha = rc / (rc + dt)
	}
	return p
}

// ProcessPacket decodes one RTP packet of G.711 audio and advances the
// detector with the contained samples.
func (p *Pipeline) ProcessPacket(pkt *rtp.Packet) error {
	if pkt == nil || len(pkt.Payload) == 0 {
		return nil
	}

	var lpcm []byte
	switch pkt.PayloadType {
	case PayloadTypePCMU:
		lpcm = g711.DecodeUlaw(pkt.Payload)
	case PayloadTypePCMA:
		lpcm = g711.DecodeAlaw(pkt.Payload)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedPayload, pkt.PayloadType)
	}

	p.ProcessPCM(bytesToSamples(lpcm))
	return nil
}

// ProcessPCM accepts raw 16-bit samples at the configured input rate.
func (p *Pipeline) ProcessPCM(samples []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.InputRate != p.cfg.DetectorRate {
		samples = resampleLinear(samples, p.cfg.InputRate, p.cfg.DetectorRate)
	}
	if p.hpAlpha > 0 {
		samples = p.highPass(samples)
	}

	p.pend = append(p.pend, samples...)
	for len(p.pend) >= p.frameSamples {
		frame := p.pend[:p.frameSamples]
		p.pend = p.pend[p.frameSamples:]

		next := p.det.Process(frame)
		if next != p.last {
			p.last = next
			if p.onChange != nil {
				p.onChange(next)
			}
		}
	}
}

// State returns the most recent detector state seen by the pipeline.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Reset drops buffered samples, clears filter state and re-seeds the
// detector to Silence.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pend = nil
	p.hpPrevIn = 0
	p.hpPrevOut = 0
	p.last = Silence
	p.det.Reset()
}

// highPass applies a first-order high-pass filter in place.
func (p *Pipeline) highPass(samples []int16) []int16 {
	for i, s := range samples {
		in := float64(s)
		out := p.hpAlpha * (p.hpPrevOut + in - p.hpPrevIn)
		p.hpPrevIn = in
		p.hpPrevOut = out
		if out > 32767 {
			out = 32767
		} else if out < -32768 {
			out = -32768
		}
		samples[i] = int16(out)
	}
	return samples
}

// resampleLinear converts samples between rates using linear interpolation.
func resampleLinear(in []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]int16, 0, outLen)

	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		if srcIdx+1 >= len(in) {
			break
		}
		frac := srcPos - float64(srcIdx)
		interpolated := float64(in[srcIdx])*(1-frac) + float64(in[srcIdx+1])*frac
		out = append(out, int16(interpolated))
	}
	return out
}

// bytesToSamples reinterprets 16-bit little-endian PCM bytes as samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return samples
}
