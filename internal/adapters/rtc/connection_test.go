package rtc

import (
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func audioTrack(t *testing.T) webrtc.TrackLocal {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "capture")
	require.NoError(t, err)
	return track
}

func TestOfferAnswerRoundTrip(t *testing.T) {
	conn, err := NewConnection(webrtc.Configuration{}, []webrtc.TrackLocal{audioTrack(t)})
	require.NoError(t, err)
	defer conn.Close()

	sdp, err := conn.CreateOffer()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sdp, "v=0"), "offer should be an SDP blob")
	require.Contains(t, sdp, "m=audio")

	remote, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer remote.Close()

	require.NoError(t, remote.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}))
	answer, err := remote.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(answer))

	require.NoError(t, conn.ApplyAnswer(answer.SDP))
}

func TestAddRemoteCandidateAfterAnswer(t *testing.T) {
	conn, err := NewConnection(webrtc.Configuration{}, []webrtc.TrackLocal{audioTrack(t)})
	require.NoError(t, err)
	defer conn.Close()

	sdp, err := conn.CreateOffer()
	require.NoError(t, err)

	remote, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer remote.Close()
	require.NoError(t, remote.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}))
	answer, err := remote.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(answer))
	require.NoError(t, conn.ApplyAnswer(answer.SDP))

	mid := "0"
	require.NoError(t, conn.AddRemoteCandidate(webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2122252543 127.0.0.1 50000 typ host",
		SDPMid:    &mid,
	}))
}

func TestOnICECandidateTricklesGatheredCandidates(t *testing.T) {
	conn, err := NewConnection(webrtc.Configuration{}, []webrtc.TrackLocal{audioTrack(t)})
	require.NoError(t, err)
	defer conn.Close()

	seen := make(chan webrtc.ICECandidateInit, 16)
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		select {
		case seen <- ci:
		default:
		}
	})

	_, err = conn.CreateOffer()
	require.NoError(t, err)
	// Gathering runs in the background; candidates (if the host has any
	// usable interfaces) arrive on the callback. No assertion on count:
	// a no-network CI host may legitimately gather nothing.
}
