package media

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func browserOfferSDP() string {
	lines := []string{
		"v=0",
		"o=- 4611731400430051336 2 IN IP4 127.0.0.1",
		"s=-",
		"c=IN IP4 192.0.2.10",
		"t=0 0",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111 0 8",
		"a=rtpmap:111 opus/48000/2",
		"a=rtpmap:0 PCMU/8000",
		"a=rtpmap:8 PCMA/8000",
		"a=ice-ufrag:F7gI",
		"a=ice-pwd:x9cml/YzichV2+XlhiMu8g",
		"a=fingerprint:sha-256 D2:FA:0E:C3:22:59:5E:14:95:69:92:3D:13:B4:84:24",
		"a=setup:actpass",
		"a=rtcp-mux",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func telephonyOfferSDP(t *testing.T) *Description {
	t.Helper()
	desc, err := Synthesize(TypeOffer, DialectTelephony, "10.0.0.1", 4000, TelephonyCodecs)
	require.NoError(t, err)
	return desc
}

func TestDetectDialect(t *testing.T) {
	assert.Equal(t, DialectBrowser, DetectDialect(browserOfferSDP()))
	assert.Equal(t, DialectTelephony, DetectDialect(telephonyOfferSDP(t).SDP))
}

func TestDetectDialectUnparseableFallsBackToLineScan(t *testing.T) {
	assert.Equal(t, DialectBrowser, DetectDialect("not sdp at all\na=fingerprint:sha-256 AA"))
	assert.Equal(t, DialectTelephony, DetectDialect("not sdp at all"))
}

func TestParseBrowserOffer(t *testing.T) {
	desc, err := Parse(TypeOffer, browserOfferSDP())
	require.NoError(t, err)

	assert.Equal(t, TypeOffer, desc.Type)
	assert.Equal(t, DialectBrowser, desc.Dialect)
	assert.Equal(t, []string{"opus", "PCMU", "PCMA"}, Names(desc.Codecs))
	assert.Equal(t, "192.0.2.10", desc.Address)
	assert.Equal(t, 9, desc.Port)
}

func TestParseStaticPayloadTypes(t *testing.T) {
	// No rtpmap lines; formats resolve via static RFC 3551 assignments.
	lines := []string{
		"v=0",
		"o=gw 1 1 IN IP4 10.0.0.1",
		"s=call",
		"c=IN IP4 10.0.0.1",
		"t=0 0",
		"m=audio 4000 RTP/AVP 0 8",
	}
	desc, err := Parse(TypeOffer, strings.Join(lines, "\r\n")+"\r\n")
	require.NoError(t, err)

	assert.Equal(t, DialectTelephony, desc.Dialect)
	assert.Equal(t, []string{"PCMU", "PCMA"}, Names(desc.Codecs))
}

func TestParseRejectsMalformedInput(t *testing.T) {
	_, err := Parse(TypeOffer, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Parse(TypeOffer, "v=0\r\nnot valid\r\n")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseRequiresAudioSection(t *testing.T) {
	lines := []string{
		"v=0",
		"o=- 1 1 IN IP4 127.0.0.1",
		"s=-",
		"t=0 0",
		"m=video 9 RTP/AVP 96",
	}
	_, err := Parse(TypeOffer, strings.Join(lines, "\r\n")+"\r\n")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSynthesizeTelephonyRoundTrip(t *testing.T) {
	desc := telephonyOfferSDP(t)

	reparsed, err := Parse(TypeOffer, desc.SDP)
	require.NoError(t, err)
	assert.Equal(t, DialectTelephony, reparsed.Dialect)
	assert.Equal(t, Names(TelephonyCodecs), Names(reparsed.Codecs))
	assert.Equal(t, "10.0.0.1", reparsed.Address)
	assert.Equal(t, 4000, reparsed.Port)
}

func TestSynthesizeTelephonyRequiresNarrowband(t *testing.T) {
	_, err := Synthesize(TypeOffer, DialectTelephony, "10.0.0.1", 4000, []Codec{CodecOpus})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNegotiationFailed)

	var negErr *NegotiationError
	require.ErrorAs(t, err, &negErr)
	assert.Equal(t, []string{"opus"}, negErr.Attempted)
}

func TestNormalizeBrowserToTelephony(t *testing.T) {
	desc, err := Parse(TypeOffer, browserOfferSDP())
	require.NoError(t, err)

	out, err := Normalize(desc, DialectTelephony, BrowserCodecs)
	require.NoError(t, err)

	assert.Equal(t, DialectTelephony, out.Dialect)
	assert.Equal(t, []string{"PCMU", "PCMA"}, Names(out.Codecs))
	assert.NotContains(t, out.SDP, "ice-ufrag")
	assert.NotContains(t, out.SDP, "fingerprint")
	assert.Contains(t, out.SDP, "RTP/AVP")
}

func TestNormalizeNoCommonCodec(t *testing.T) {
	desc := telephonyOfferSDP(t)

	_, err := Normalize(desc, DialectBrowser, []Codec{CodecOpus})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNegotiationFailed))
}

func TestNormalizeSameDialectIsPassThrough(t *testing.T) {
	desc := telephonyOfferSDP(t)

	out, err := Normalize(desc, DialectTelephony, []Codec{CodecOpus})
	require.NoError(t, err)
	assert.Same(t, desc, out, "no conversion needed, no codec filtering applied")
}
