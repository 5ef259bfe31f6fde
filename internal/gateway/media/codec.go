package media

import (
	"fmt"
	"strings"
)

// Codec represents an audio codec with its RTP configuration.
type Codec struct {
	Name        string
	PayloadType uint8
	ClockRate   uint32
	Channels    int
	// Narrowband marks classic telephone-network codecs. Only these may be
	// advertised toward a telephony gateway.
	Narrowband bool
}

// Codecs used across the browser and telephony dialects.
var (
	CodecPCMU = Codec{Name: "PCMU", PayloadType: 0, ClockRate: 8000, Channels: 1, Narrowband: true}
	CodecPCMA = Codec{Name: "PCMA", PayloadType: 8, ClockRate: 8000, Channels: 1, Narrowband: true}
	CodecG722 = Codec{Name: "G722", PayloadType: 9, ClockRate: 8000, Channels: 1}
	CodecOpus = Codec{Name: "opus", PayloadType: 111, ClockRate: 48000, Channels: 2}

	// CodecTelephoneEvent is RFC 4733 DTMF. Gateways expect it in the offer
	// even when no DTMF will ever be sent.
	CodecTelephoneEvent = Codec{Name: "telephone-event", PayloadType: 101, ClockRate: 8000, Channels: 1, Narrowband: true}
)

// BrowserCodecs lists codecs a browser endpoint can negotiate, in order of
// preference.
var BrowserCodecs = []Codec{CodecOpus, CodecG722, CodecPCMU, CodecPCMA, CodecTelephoneEvent}

// TelephonyCodecs lists codecs acceptable toward a telephony gateway.
var TelephonyCodecs = []Codec{CodecPCMU, CodecPCMA, CodecTelephoneEvent}

// Rtpmap returns the SDP rtpmap attribute value for the codec.
// Example: "0 PCMU/8000" or "111 opus/48000/2".
func (c Codec) Rtpmap() string {
	if c.Channels > 1 {
		return fmt.Sprintf("%d %s/%d/%d", c.PayloadType, c.Name, c.ClockRate, c.Channels)
	}
	return fmt.Sprintf("%d %s/%d", c.PayloadType, c.Name, c.ClockRate)
}

// IsAudio reports whether the codec carries actual audio rather than
// signaling events.
func (c Codec) IsAudio() bool {
	return !strings.EqualFold(c.Name, CodecTelephoneEvent.Name)
}

// Intersect returns the codecs present in both lists, preserving the order
// of a. Matching is by name and clock rate; payload types may differ between
// the two sides.
func Intersect(a, b []Codec) []Codec {
	var out []Codec
	for _, ca := range a {
		for _, cb := range b {
			if strings.EqualFold(ca.Name, cb.Name) && ca.ClockRate == cb.ClockRate {
				out = append(out, ca)
				break
			}
		}
	}
	return out
}

// Narrowband filters the list down to telephone-network codecs.
func Narrowband(list []Codec) []Codec {
	var out []Codec
	for _, c := range list {
		if c.Narrowband {
			out = append(out, c)
		}
	}
	return out
}

// HasAudio reports whether the list contains at least one real audio codec.
func HasAudio(list []Codec) bool {
	for _, c := range list {
		if c.IsAudio() {
			return true
		}
	}
	return false
}

// Names returns the codec names, for diagnostics and event payloads.
func Names(list []Codec) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Name)
	}
	return out
}

// lookupByName resolves a well-known codec from an rtpmap entry name.
func lookupByName(name string, clockRate uint32) (Codec, bool) {
	for _, c := range []Codec{CodecPCMU, CodecPCMA, CodecG722, CodecOpus, CodecTelephoneEvent} {
		if strings.EqualFold(c.Name, name) && c.ClockRate == clockRate {
			return c, true
		}
	}
	return Codec{}, false
}

// lookupByPayloadType resolves static (RFC 3551) payload type assignments
// for media sections that omit rtpmap attributes.
func lookupByPayloadType(pt uint8) (Codec, bool) {
	switch pt {
	case 0:
		return CodecPCMU, true
	case 8:
		return CodecPCMA, true
	case 9:
		return CodecG722, true
	}
	return Codec{}, false
}
