package pion

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/switchboard/internal/signaling"
)

func TestCandidateCodec(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	in := webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 127.0.0.1 50000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}

	payload, err := EncodeCandidate(in)
	require.NoError(t, err)

	out, err := DecodeCandidate(payload)
	require.NoError(t, err)
	assert.Equal(t, in.Candidate, out.Candidate)
	require.NotNil(t, out.SDPMid)
	assert.Equal(t, "0", *out.SDPMid)

	_, err = DecodeCandidate("not json")
	assert.Error(t, err)
	_, err = DecodeCandidate(`{"candidate":""}`)
	assert.Error(t, err)
}

func TestTransport_OfferAnswerExchange(t *testing.T) {
	ctx := context.Background()

	caller, err := New(Config{IncludeLoopback: true}, signaling.Callbacks{})
	require.NoError(t, err)
	defer caller.Close()

	callee, err := New(Config{IncludeLoopback: true}, signaling.Callbacks{})
	require.NoError(t, err)
	defer callee.Close()

	offer, err := caller.ApplyLocalDescription(ctx, signaling.TypeOffer)
	require.NoError(t, err)
	assert.Contains(t, offer, "v=0")

	require.NoError(t, callee.ApplyRemoteDescription(ctx, signaling.TypeOffer, offer))
	answer, err := callee.ApplyLocalDescription(ctx, signaling.TypeAnswer)
	require.NoError(t, err)
	assert.Contains(t, answer, "v=0")

	require.NoError(t, caller.ApplyRemoteDescription(ctx, signaling.TypeAnswer, answer))
}

func TestTransport_Errors(t *testing.T) {
	ctx := context.Background()

	tr, err := New(Config{}, signaling.Callbacks{})
	require.NoError(t, err)

	_, err = tr.ApplyLocalDescription(ctx, signaling.TypeHangup)
	assert.Error(t, err)
	assert.Error(t, tr.ApplyRemoteDescription(ctx, signaling.TypeOffer, "garbage"))
	assert.Error(t, tr.AddICECandidate(ctx, "{}"))

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err = tr.ApplyLocalDescription(ctx, signaling.TypeOffer)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, tr.AddICECandidate(ctx, `{"candidate":"x"}`), ErrClosed)
}
