package media

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// Type distinguishes the two halves of an SDP exchange.
type Type int

const (
	// TypeOffer is the initiating description.
	TypeOffer Type = iota
	// TypeAnswer is the responding description.
	TypeAnswer
)

// String returns the string representation of the type.
func (t Type) String() string {
	switch t {
	case TypeOffer:
		return "offer"
	case TypeAnswer:
		return "answer"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Dialect identifies which media-description profile a description speaks.
type Dialect int

const (
	// DialectBrowser is the browser-native profile: wideband-capable, with
	// ICE and DTLS attributes.
	DialectBrowser Dialect = iota
	// DialectTelephony is the telephone-network profile: narrowband
	// G.711-class codecs, plain RTP/AVP, no connectivity negotiation.
	DialectTelephony
)

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectBrowser:
		return "browser"
	case DialectTelephony:
		return "telephony"
	default:
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
}

// Description is a dialect-tagged SDP document with its derived codec set.
// The dialect is fixed at creation time; conversion between dialects goes
// through Normalize, never through re-inspection of the payload.
type Description struct {
	Type    Type
	Dialect Dialect
	SDP     string
	Codecs  []Codec

	// Connection endpoint extracted from the payload, used when the
	// description must be re-synthesized in the other dialect.
	Address string
	Port    int
}

// browser dialect markers looked for in SDP attributes
var browserAttrKeys = map[string]bool{
	"ice-ufrag":   true,
	"ice-pwd":     true,
	"fingerprint": true,
	"setup":       true,
	"candidate":   true,
	"rtcp-mux":    true,
}

// DetectDialect decides which dialect an untagged SDP payload speaks.
// Browser descriptions carry ICE/DTLS attributes or a SAVPF media proto;
// everything else is treated as telephony.
func DetectDialect(sdpText string) Dialect {
	parsed := sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(sdpText)); err != nil {
		// Fall back to a line scan; an unparseable body is still routable
		// if the markers are recognizable.
		lower := strings.ToLower(sdpText)
		if strings.Contains(lower, "a=ice-ufrag") || strings.Contains(lower, "a=fingerprint") || strings.Contains(lower, "savpf") {
			return DialectBrowser
		}
		return DialectTelephony
	}

	for _, attr := range parsed.Attributes {
		if browserAttrKeys[attr.Key] {
			return DialectBrowser
		}
	}
	for _, m := range parsed.MediaDescriptions {
		for _, proto := range m.MediaName.Protos {
			if strings.Contains(proto, "SAVPF") || strings.Contains(proto, "SAVP") {
				return DialectBrowser
			}
		}
		for _, attr := range m.Attributes {
			if browserAttrKeys[attr.Key] {
				return DialectBrowser
			}
		}
	}
	return DialectTelephony
}

// Parse validates an SDP payload and builds a tagged Description from it.
// Returns ErrInvalidArgument (wrapped) on malformed input or when no audio
// section is present.
func Parse(typ Type, sdpText string) (*Description, error) {
	if strings.TrimSpace(sdpText) == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}

	parsed := sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(sdpText)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var audio *sdp.MediaDescription
	for _, m := range parsed.MediaDescriptions {
		if m.MediaName.Media == "audio" {
			audio = m
			break
		}
	}
	if audio == nil {
		return nil, fmt.Errorf("%w: no audio media section", ErrInvalidArgument)
	}

	desc := &Description{
		Type:    typ,
		Dialect: DetectDialect(sdpText),
		SDP:     sdpText,
		Codecs:  extractCodecs(audio),
		Port:    audio.MediaName.Port.Value,
	}

	if ci := audio.ConnectionInformation; ci != nil && ci.Address != nil {
		desc.Address = ci.Address.Address
	} else if ci := parsed.ConnectionInformation; ci != nil && ci.Address != nil {
		desc.Address = ci.Address.Address
	}

	return desc, nil
}

// extractCodecs derives the codec set from the audio media section, using
// rtpmap attributes where present and static payload type assignments
// otherwise.
func extractCodecs(audio *sdp.MediaDescription) []Codec {
	rtpmaps := make(map[uint8]string)
	for _, attr := range audio.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		parts := strings.SplitN(attr.Value, " ", 2)
		if len(parts) != 2 {
			continue
		}
		pt, err := strconv.Atoi(parts[0])
		if err != nil || pt < 0 || pt > 127 {
			continue
		}
		rtpmaps[uint8(pt)] = parts[1]
	}

	var codecs []Codec
	for _, format := range audio.MediaName.Formats {
		pt, err := strconv.Atoi(format)
		if err != nil || pt < 0 || pt > 127 {
			continue
		}
		if entry, ok := rtpmaps[uint8(pt)]; ok {
			if c, ok := codecFromRtpmap(uint8(pt), entry); ok {
				codecs = append(codecs, c)
				continue
			}
		}
		if c, ok := lookupByPayloadType(uint8(pt)); ok {
			codecs = append(codecs, c)
		}
	}
	return codecs
}

// codecFromRtpmap parses an rtpmap entry like "opus/48000/2".
func codecFromRtpmap(pt uint8, entry string) (Codec, bool) {
	parts := strings.Split(entry, "/")
	if len(parts) < 2 {
		return Codec{}, false
	}
	clockRate, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Codec{}, false
	}
	if known, ok := lookupByName(parts[0], uint32(clockRate)); ok {
		c := known
		c.PayloadType = pt
		return c, true
	}
	channels := 1
	if len(parts) == 3 {
		if n, err := strconv.Atoi(parts[2]); err == nil {
			channels = n
		}
	}
	return Codec{Name: parts[0], PayloadType: pt, ClockRate: uint32(clockRate), Channels: channels}, true
}

// Normalize converts a description into the target dialect's expectations:
// the codec set is reduced to the intersection with the locally supported
// list (narrowband-only when either side is telephony), and attributes the
// target dialect cannot use are suppressed by re-synthesizing the payload.
// Returns a NegotiationError when the intersection holds no audio codec.
func Normalize(d *Description, target Dialect, local []Codec) (*Description, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil description", ErrInvalidArgument)
	}
	if d.Dialect == target {
		return d, nil
	}

	codecs := Intersect(d.Codecs, local)
	if target == DialectTelephony || d.Dialect == DialectTelephony {
		codecs = Narrowband(codecs)
	}
	if !HasAudio(codecs) {
		return nil, &NegotiationError{
			Attempted: Names(d.Codecs),
			Available: Names(local),
		}
	}

	return Synthesize(d.Type, target, d.Address, d.Port, codecs)
}

// Synthesize builds a fresh description in the given dialect. An offer bound
// for a telephony gateway must advertise at least one narrowband codec or
// the gateway has nothing to negotiate with.
func Synthesize(typ Type, dialect Dialect, address string, port int, codecs []Codec) (*Description, error) {
	if dialect == DialectTelephony && !HasAudio(Narrowband(codecs)) {
		return nil, &NegotiationError{
			Attempted: Names(codecs),
			Available: Names(TelephonyCodecs),
		}
	}
	if address == "" {
		address = "0.0.0.0"
	}

	formats := make([]string, 0, len(codecs))
	for _, c := range codecs {
		formats = append(formats, strconv.Itoa(int(c.PayloadType)))
	}

	session := &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "voicebridge",
			SessionID:      1,
			SessionVersion: 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: address,
		},
		SessionName: "Voicebridge Media Session",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address: &sdp.Address{
				Address: address,
			},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{
				Timing: sdp.Timing{StartTime: 0, StopTime: 0},
			},
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: port},
					Protos:  []string{"RTP", "AVP"},
					Formats: formats,
				},
				Attributes: codecAttributes(codecs),
			},
		},
	}

	raw, err := session.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal SDP: %w", err)
	}

	return &Description{
		Type:    typ,
		Dialect: dialect,
		SDP:     string(raw),
		Codecs:  codecs,
		Address: address,
		Port:    port,
	}, nil
}

// codecAttributes returns rtpmap/fmtp attributes for the codec list plus the
// standard ptime and direction attributes.
func codecAttributes(codecs []Codec) []sdp.Attribute {
	attrs := []sdp.Attribute{}
	for _, c := range codecs {
		attrs = append(attrs, sdp.Attribute{Key: "rtpmap", Value: c.Rtpmap()})
		if strings.EqualFold(c.Name, CodecTelephoneEvent.Name) {
			attrs = append(attrs, sdp.Attribute{
				Key:   "fmtp",
				Value: fmt.Sprintf("%d 0-15", c.PayloadType),
			})
		}
	}
	attrs = append(attrs, sdp.Attribute{Key: "ptime", Value: "20"})
	attrs = append(attrs, sdp.Attribute{Key: "sendrecv"})
	return attrs
}
