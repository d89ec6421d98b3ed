package signaling

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/core/pubsub/memory"
	"github.com/syntrixbase/switchboard/internal/core/topic"
)

func TestBrokerOutbox_PublishesOnRecipientTopic(t *testing.T) {
	ctx := context.Background()
	broker := memory.New(pubsub.DefaultOptions())
	defer broker.Close()

	stream, err := broker.Subscribe(ctx, topic.Signal("bob"))
	require.NoError(t, err)
	defer stream.Close()

	err = BrokerOutbox(broker).Send(ctx, signal("alice", "bob", TypeOffer, "o"))
	require.NoError(t, err)

	select {
	case ev := <-stream.Events():
		var msg Message
		require.NoError(t, json.Unmarshal(ev.Payload, &msg))
		assert.Equal(t, TypeOffer, msg.Type)
		assert.Equal(t, "alice", msg.From)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}
}

func TestAgent_CallAcceptHangup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := memory.New(pubsub.DefaultOptions())
	defer broker.Close()
	outbox := BrokerOutbox(broker)

	aliceTransports := newTransportSet()
	bobTransports := newTransportSet()
	alice := NewAgent("alice", broker, outbox, aliceTransports.factory)
	bob := NewAgent("bob", broker, outbox, bobTransports.factory)

	go func() { _ = alice.Run(ctx) }()
	go func() { _ = bob.Run(ctx) }()
	require.Eventually(t, func() bool { return broker.Stats().Streams == 2 }, time.Second, 5*time.Millisecond)

	key := PairKey("alice", "bob")
	phaseOf := func(r *Registry) Phase {
		info, ok := r.Session(key)
		if !ok {
			return PhaseIdle
		}
		return info.Phase
	}

	require.NoError(t, alice.Call(ctx, "bob"))
	require.Eventually(t, func() bool { return phaseOf(bob.Registry()) == PhaseOffered }, time.Second, 5*time.Millisecond)

	require.NoError(t, bob.Accept(ctx, "alice"))
	require.Eventually(t, func() bool { return phaseOf(alice.Registry()) == PhaseAnswered }, time.Second, 5*time.Millisecond)

	alice.Registry().wait(key)
	aliceTransports.get("bob").cb.OnICECandidate("candidate:alice-1")
	require.Eventually(t, func() bool {
		bob.Registry().wait(key)
		tr := bobTransports.get("alice")
		calls := tr.Calls()
		return len(calls) > 0 && calls[len(calls)-1] == "ice:candidate:alice-1"
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"local:OFFER", "remote:ANSWER:sdp-ANSWER"}, aliceTransports.get("bob").Calls())

	require.NoError(t, alice.Hangup(ctx, "bob"))
	require.Eventually(t, func() bool { return bob.Registry().Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, bobTransports.get("alice").Closed, time.Second, 5*time.Millisecond)
}

func TestAgent_SkipsMalformedSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	broker := memory.New(pubsub.DefaultOptions())
	defer broker.Close()

	bob := NewAgent("bob", broker, BrokerOutbox(broker), newTransportSet().factory)
	done := make(chan error, 1)
	go func() { done <- bob.Run(ctx) }()
	require.Eventually(t, func() bool { return broker.Stats().Streams == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, broker.Publish(ctx, topic.Signal("bob"), []byte("{not json")))
	data, _ := json.Marshal(signal("alice", "bob", TypeOffer, "o"))
	require.NoError(t, broker.Publish(ctx, topic.Signal("bob"), data))

	require.Eventually(t, func() bool { return bob.Registry().Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestAgent_IgnoresOwnEchoedSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := memory.New(pubsub.DefaultOptions())
	defer broker.Close()

	alice := NewAgent("alice", broker, BrokerOutbox(broker), newTransportSet().factory)
	go func() { _ = alice.Run(ctx) }()
	require.Eventually(t, func() bool { return broker.Stats().Streams == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, alice.Call(ctx, "bob"))

	echo, _ := json.Marshal(signal("alice", "bob", TypeHangup, "bye"))
	require.NoError(t, broker.Publish(ctx, topic.Signal("alice"), echo))
	marker, _ := json.Marshal(signal("carol", "alice", TypeOffer, "o"))
	require.NoError(t, broker.Publish(ctx, topic.Signal("alice"), marker))

	require.Eventually(t, func() bool { return alice.Registry().Len() == 2 }, time.Second, 5*time.Millisecond)
	info, ok := alice.Registry().Session(PairKey("alice", "bob"))
	require.True(t, ok)
	assert.Equal(t, PhaseOffered, info.Phase)
}
