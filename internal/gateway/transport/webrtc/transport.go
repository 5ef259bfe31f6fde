// Package webrtc adapts a pion PeerConnection to the media transport
// interface used by the call engine for browser legs.
package webrtc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	pionwebrtc "github.com/pion/webrtc/v4"

	"github.com/sebas/voicebridge/internal/gateway/media"
)

// Config configures a browser-leg transport.
type Config struct {
	// STUNServer is used for reflexive candidate gathering, empty for
	// host candidates only.
	STUNServer string
}

// Transport wraps a pion PeerConnection behind media.Transport.
type Transport struct {
	mu sync.Mutex

	pc          *pionwebrtc.PeerConnection
	onCandidate func(media.Candidate)
	onFrame     func(*rtp.Packet)
	closed      bool
}

var _ media.Transport = (*Transport)(nil)

// New creates a peer connection prepared for a single audio stream.
func New(cfg Config) (*Transport, error) {
	mediaEngine := &pionwebrtc.MediaEngine{}
	if err := registerAudioCodecs(mediaEngine); err != nil {
		return nil, err
	}

	// Default interceptors include NACK for audio packet recovery.
	registry := &interceptor.Registry{}
	if err := pionwebrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	api := pionwebrtc.NewAPI(
		pionwebrtc.WithMediaEngine(mediaEngine),
		pionwebrtc.WithInterceptorRegistry(registry),
	)

	pcConfig := pionwebrtc.Configuration{}
	if cfg.STUNServer != "" {
		pcConfig.ICEServers = []pionwebrtc.ICEServer{
			{URLs: []string{"stun:" + cfg.STUNServer}},
		}
	}

	pc, err := api.NewPeerConnection(pcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(pionwebrtc.RTPCodecTypeAudio); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to add audio transceiver: %w", err)
	}

	t := &Transport{pc: pc}

	pc.OnICECandidate(func(c *pionwebrtc.ICECandidate) {
		if c == nil {
			return
		}
		t.mu.Lock()
		sink := t.onCandidate
		t.mu.Unlock()
		if sink != nil {
			sink(convertCandidate(c))
		}
	})

	pc.OnTrack(func(track *pionwebrtc.TrackRemote, _ *pionwebrtc.RTPReceiver) {
		if track.Kind() != pionwebrtc.RTPCodecTypeAudio {
			return
		}
		slog.Debug("[WebRTC] Remote audio track received", "codec", track.Codec().MimeType)
		go t.readRemoteAudio(track)
	})

	return t, nil
}

// registerAudioCodecs registers the audio codecs a browser leg may use.
func registerAudioCodecs(engine *pionwebrtc.MediaEngine) error {
	codecs := []pionwebrtc.RTPCodecParameters{
		{
			RTPCodecCapability: pionwebrtc.RTPCodecCapability{
				MimeType:    pionwebrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		},
		{
			RTPCodecCapability: pionwebrtc.RTPCodecCapability{
				MimeType:  pionwebrtc.MimeTypePCMU,
				ClockRate: 8000,
			},
			PayloadType: 0,
		},
		{
			RTPCodecCapability: pionwebrtc.RTPCodecCapability{
				MimeType:  pionwebrtc.MimeTypePCMA,
				ClockRate: 8000,
			},
			PayloadType: 8,
		},
	}
	for _, c := range codecs {
		if err := engine.RegisterCodec(c, pionwebrtc.RTPCodecTypeAudio); err != nil {
			return fmt.Errorf("failed to register %s: %w", c.MimeType, err)
		}
	}
	return nil
}

// CreateLocalOffer creates an offer and sets it as the local description.
// Candidates trickle through OnLocalCandidate afterwards.
func (t *Transport) CreateLocalOffer(ctx context.Context) (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return offer.SDP, nil
}

// CreateLocalAnswer creates an answer to the current remote offer and
// sets it as the local description.
func (t *Transport) CreateLocalAnswer(ctx context.Context) (string, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return answer.SDP, nil
}

// SetRemoteDescription applies the remote offer or answer.
func (t *Transport) SetRemoteDescription(ctx context.Context, typ media.Type, sdpText string) error {
	sdpType := pionwebrtc.SDPTypeOffer
	if typ == media.TypeAnswer {
		sdpType = pionwebrtc.SDPTypeAnswer
	}
	if err := t.pc.SetRemoteDescription(pionwebrtc.SessionDescription{
		Type: sdpType,
		SDP:  sdpText,
	}); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// AddRemoteCandidate feeds a remote ICE candidate to the peer connection.
func (t *Transport) AddRemoteCandidate(c media.Candidate) error {
	init := pionwebrtc.ICECandidateInit{Candidate: c.Raw}
	if c.SDPMid != "" {
		mid := c.SDPMid
		init.SDPMid = &mid
	}
	idx := c.SDPMLineIndex
	init.SDPMLineIndex = &idx
	if err := t.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("failed to add ICE candidate: %w", err)
	}
	return nil
}

// OnLocalCandidate registers the sink for locally gathered candidates.
func (t *Transport) OnLocalCandidate(fn func(media.Candidate)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCandidate = fn
}

// OnAudioFrame registers the sink for inbound audio packets.
func (t *Transport) OnAudioFrame(fn func(pkt *rtp.Packet)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFrame = fn
}

// Close tears down the peer connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.pc.Close()
}

// readRemoteAudio pumps inbound RTP packets to the frame sink.
func (t *Transport) readRemoteAudio(track *pionwebrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if err != io.EOF {
				slog.Debug("[WebRTC] Remote track read ended", "error", err)
			}
			return
		}

		t.mu.Lock()
		sink := t.onFrame
		t.mu.Unlock()
		if sink != nil {
			sink(pkt)
		}
	}
}

// convertCandidate maps a pion candidate onto the transport-neutral form.
func convertCandidate(c *pionwebrtc.ICECandidate) media.Candidate {
	cJSON := c.ToJSON()
	out := media.Candidate{
		Address: c.Address,
		Port:    int(c.Port),
		Raw:     cJSON.Candidate,
	}
	if cJSON.SDPMid != nil {
		out.SDPMid = *cJSON.SDPMid
	}
	if cJSON.SDPMLineIndex != nil {
		out.SDPMLineIndex = *cJSON.SDPMLineIndex
	}
	switch c.Typ {
	case pionwebrtc.ICECandidateTypeSrflx, pionwebrtc.ICECandidateTypePrflx:
		out.Type = media.CandidateReflexive
	case pionwebrtc.ICECandidateTypeRelay:
		out.Type = media.CandidateRelay
	default:
		out.Type = media.CandidateHost
	}
	return out
}
