package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntersectPreservesPreferenceOrder(t *testing.T) {
	got := Intersect(BrowserCodecs, TelephonyCodecs)

	assert.Equal(t, []string{"PCMU", "PCMA", "telephone-event"}, Names(got))
}

func TestIntersectMatchesByNameAndClockRate(t *testing.T) {
	// The far side may assign a dynamic payload type to a static codec;
	// the match must ignore payload numbers entirely.
	remote := []Codec{
		{Name: "pcmu", PayloadType: 96, ClockRate: 8000, Channels: 1},
		{Name: "opus", PayloadType: 102, ClockRate: 16000, Channels: 2}, // wrong rate
	}

	got := Intersect(BrowserCodecs, remote)

	assert.Equal(t, []string{"PCMU"}, Names(got))
	assert.Equal(t, uint8(0), got[0].PayloadType, "local payload type wins")
}

func TestIntersectEmptyInputs(t *testing.T) {
	assert.Empty(t, Intersect(nil, BrowserCodecs))
	assert.Empty(t, Intersect(BrowserCodecs, nil))
}

func TestNarrowband(t *testing.T) {
	got := Narrowband(BrowserCodecs)

	assert.Equal(t, []string{"PCMU", "PCMA", "telephone-event"}, Names(got))
}

func TestHasAudio(t *testing.T) {
	assert.True(t, HasAudio([]Codec{CodecPCMU}))
	assert.False(t, HasAudio([]Codec{CodecTelephoneEvent}),
		"telephone-event alone is not a usable audio stream")
	assert.False(t, HasAudio(nil))
}

func TestRtpmap(t *testing.T) {
	assert.Equal(t, "0 PCMU/8000", CodecPCMU.Rtpmap())
	assert.Equal(t, "111 opus/48000/2", CodecOpus.Rtpmap())
}

func TestLookupByPayloadType(t *testing.T) {
	c, ok := lookupByPayloadType(8)
	assert.True(t, ok)
	assert.Equal(t, "PCMA", c.Name)

	_, ok = lookupByPayloadType(42)
	assert.False(t, ok)
}
