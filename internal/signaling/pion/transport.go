// Package pion implements signaling.Transport on a pion WebRTC peer connection.
package pion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/syntrixbase/switchboard/internal/signaling"
)

// Config holds the ICE servers used for candidate gathering.
type Config struct {
	ICEServers []webrtc.ICEServer

	// IncludeLoopback adds loopback candidates, needed when peers share a host.
	IncludeLoopback bool
}

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// Transport negotiates one peer connection and a data channel.
type Transport struct {
	pc *webrtc.PeerConnection
	cb signaling.Callbacks

	mu     sync.Mutex
	closed bool
}

var _ signaling.Transport = (*Transport)(nil)

// Factory returns a signaling.TransportFactory that builds peer connections from cfg.
func Factory(cfg Config) signaling.TransportFactory {
	return func(local, remote string, cb signaling.Callbacks) (signaling.Transport, error) {
		return New(cfg, cb)
	}
}

// New creates a peer connection and hooks its events to cb.
func New(cfg Config, cb signaling.Callbacks) (*Transport, error) {
	settingEngine := webrtc.SettingEngine{}
	if cfg.IncludeLoopback {
		settingEngine.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	t := &Transport{pc: pc, cb: cb}
	pc.OnICECandidate(t.handleCandidate)
	pc.OnConnectionStateChange(t.handleState)
	return t, nil
}

// ApplyLocalDescription creates an offer or answer and sets it locally.
// Candidates are trickled through OnICECandidate afterwards.
func (t *Transport) ApplyLocalDescription(ctx context.Context, kind signaling.Type) (string, error) {
	if t.isClosed() {
		return "", ErrClosed
	}

	var (
		desc webrtc.SessionDescription
		err  error
	)
	switch kind {
	case signaling.TypeOffer:
		// An SDP offer needs at least one media or data section.
		if _, err = t.pc.CreateDataChannel("switchboard", nil); err != nil {
			return "", fmt.Errorf("creating data channel: %w", err)
		}
		desc, err = t.pc.CreateOffer(nil)
	case signaling.TypeAnswer:
		desc, err = t.pc.CreateAnswer(nil)
	default:
		return "", fmt.Errorf("unsupported local description %q", kind)
	}
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", kind, err)
	}
	if err := t.pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}
	return desc.SDP, nil
}

func (t *Transport) ApplyRemoteDescription(ctx context.Context, kind signaling.Type, sdp string) error {
	if t.isClosed() {
		return ErrClosed
	}

	desc := webrtc.SessionDescription{SDP: sdp}
	switch kind {
	case signaling.TypeOffer:
		desc.Type = webrtc.SDPTypeOffer
	case signaling.TypeAnswer:
		desc.Type = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("unsupported remote description %q", kind)
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	return nil
}

// AddICECandidate applies a candidate produced by EncodeCandidate on the remote side.
func (t *Transport) AddICECandidate(ctx context.Context, candidate string) error {
	if t.isClosed() {
		return ErrClosed
	}
	init, err := DecodeCandidate(candidate)
	if err != nil {
		return err
	}
	if err := t.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("adding ice candidate: %w", err)
	}
	return nil
}

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

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) handleCandidate(c *webrtc.ICECandidate) {
	// nil marks the end of gathering.
	if c == nil || t.cb.OnICECandidate == nil {
		return
	}
	payload, err := EncodeCandidate(c.ToJSON())
	if err != nil {
		if t.cb.OnError != nil {
			t.cb.OnError(err)
		}
		return
	}
	t.cb.OnICECandidate(payload)
}

func (t *Transport) handleState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if t.cb.OnConnected != nil {
			t.cb.OnConnected()
		}
	case webrtc.PeerConnectionStateFailed:
		if t.cb.OnError != nil {
			t.cb.OnError(errors.New("peer connection failed"))
		}
	case webrtc.PeerConnectionStateClosed:
		if t.cb.OnClose != nil && !t.isClosed() {
			t.cb.OnClose()
		}
	}
}

// EncodeCandidate renders a candidate as the payload of an ICE_CANDIDATE signal.
func EncodeCandidate(c webrtc.ICECandidateInit) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding ice candidate: %w", err)
	}
	return string(data), nil
}

// DecodeCandidate parses an ICE_CANDIDATE payload.
func DecodeCandidate(payload string) (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return c, fmt.Errorf("decoding ice candidate: %w", err)
	}
	if c.Candidate == "" {
		return c, errors.New("decoding ice candidate: empty candidate")
	}
	return c, nil
}
