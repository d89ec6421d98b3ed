package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/core/pubsub"
	"github.com/syntrixbase/switchboard/internal/core/pubsub/memory"
	storemem "github.com/syntrixbase/switchboard/internal/core/storage/memory"
	"github.com/syntrixbase/switchboard/internal/gateway"
	"github.com/syntrixbase/switchboard/internal/publisher"
	"github.com/syntrixbase/switchboard/internal/relay"
	"github.com/syntrixbase/switchboard/internal/relay/cache"
	"github.com/syntrixbase/switchboard/pkg/model"
)

type stubAuth map[string]*identity.Identity

func (s stubAuth) Authenticate(ctx context.Context, credentials string) (*identity.Identity, error) {
	if id, ok := s[credentials]; ok {
		return id, nil
	}
	return nil, errors.New("invalid token")
}

var testAuth = stubAuth{
	"alice-token": {UserID: "alice", Role: model.RoleUser},
	"bob-token":   {UserID: "bob", Role: model.RoleUser},
	"carol-token": {UserID: "carol", Role: model.RoleUser},
}

type env struct {
	broker   *memory.Broker
	http     *httptest.Server
	requests atomic.Int64
}

func setup(t *testing.T) *env {
	t.Helper()
	e := &env{broker: memory.New(pubsub.Options{BufferSize: 32})}
	store := storemem.New()
	pub := publisher.New(store, e.broker)

	mux := http.NewServeMux()
	NewServer(pub, store, testAuth).RegisterRoutes(mux)
	e.http = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		e.http.Close()
		_ = e.broker.Close()
	})
	return e
}

type response struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []relay.ResultError        `json:"errors"`
}

func (e *env) do(t *testing.T, token, query string, vars any) (int, response) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, e.http.URL+"/v1/operations", bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func field[T any](t *testing.T, r response, name string) T {
	t.Helper()
	var v T
	require.Contains(t, r.Data, name)
	require.NoError(t, json.Unmarshal(r.Data[name], &v))
	return v
}

const (
	createThread = `mutation Create($title: String, $participants: [ID!]) { createThread(title: $title, participants: $participants) { id } }`
	sendMessage  = `mutation Send($threadId: ID!, $content: String!) { sendMessage(threadId: $threadId, content: $content) { id } }`
	listMessages = `query Messages($threadId: ID!) { messages(threadId: $threadId) { id content } }`
)

// ==========================================
// Operations
// ==========================================

func TestOperations_RequireIdentity(t *testing.T) {
	e := setup(t)

	status, resp := e.do(t, "", `query { threads { id } }`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, string(model.KindUnauthenticated), resp.Errors[0].Code)

	status, _ = e.do(t, "forged", `query { threads { id } }`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestOperations_ThreadAndMessages(t *testing.T) {
	e := setup(t)

	status, resp := e.do(t, "alice-token", createThread, map[string]any{"title": "t1", "participants": []string{"bob"}})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	thread := field[model.Thread](t, resp, "createThread")
	assert.ElementsMatch(t, []string{"alice", "bob"}, thread.Participants)

	status, resp = e.do(t, "alice-token", sendMessage, map[string]any{"threadId": thread.ID, "content": "hello"})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	msg := field[model.Message](t, resp, "sendMessage")
	assert.Equal(t, "alice", msg.SenderID)

	status, resp = e.do(t, "bob-token", listMessages, map[string]any{"threadId": thread.ID})
	require.Equal(t, http.StatusOK, status)
	msgs := field[[]model.Message](t, resp, "messages")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)

	status, resp = e.do(t, "bob-token", `{ threads { id } }`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, field[[]model.Thread](t, resp, "threads"), 1)

	status, resp = e.do(t, "carol-token", listMessages, map[string]any{"threadId": thread.ID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(model.KindForbidden), resp.Errors[0].Code)

	status, _ = e.do(t, "carol-token", sendMessage, map[string]any{"threadId": thread.ID, "content": "hi"})
	assert.Equal(t, http.StatusForbidden, status)

	status, resp = e.do(t, "bob-token", `mutation D($messageId: ID!) { deleteMessage(messageId: $messageId) }`, map[string]any{"messageId": msg.ID})
	assert.Equal(t, http.StatusForbidden, status, resp.Errors)

	status, resp = e.do(t, "alice-token", `mutation D($messageId: ID!) { deleteMessage(messageId: $messageId) }`, map[string]any{"messageId": msg.ID})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	assert.True(t, field[bool](t, resp, "deleteMessage"))

	_, resp = e.do(t, "bob-token", listMessages, map[string]any{"threadId": thread.ID})
	assert.Empty(t, field[[]model.Message](t, resp, "messages"))
}

func TestOperations_Presence(t *testing.T) {
	e := setup(t)

	status, resp := e.do(t, "bob-token", `query P($userId: ID) { presence(userId: $userId) { status } }`, map[string]any{"userId": "alice"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.PresenceOffline, field[model.Presence](t, resp, "presence").Status)

	status, _ = e.do(t, "alice-token", `mutation S($status: String!) { setPresence(status: $status) { status } }`, map[string]any{"status": "ONLINE"})
	require.Equal(t, http.StatusOK, status)

	_, resp = e.do(t, "bob-token", `query P($userId: ID) { presence(userId: $userId) { status } }`, map[string]any{"userId": "alice"})
	assert.Equal(t, model.PresenceOnline, field[model.Presence](t, resp, "presence").Status)

	status, resp = e.do(t, "alice-token", `mutation S($status: String!) { setPresence(status: $status) { status } }`, map[string]any{"status": "BUSY"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(model.KindBadInput), resp.Errors[0].Code)
}

func TestOperations_FilesAndKnowledge(t *testing.T) {
	e := setup(t)

	status, resp := e.do(t, "alice-token", `mutation { createDirectory { id } }`, map[string]any{"parent": "/", "name": "docs"})
	require.Equal(t, http.StatusOK, status, resp.Errors)

	status, resp = e.do(t, "alice-token", `mutation { uploadFile { id } }`, map[string]any{"parent": "/docs", "name": "a.txt", "size": 3, "mimeType": "text/plain"})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	file := field[model.FileEntry](t, resp, "uploadFile")
	assert.Equal(t, "/docs/a.txt", file.Path)

	status, resp = e.do(t, "bob-token", `query { entries { id name } }`, map[string]any{"path": "/docs"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, field[[]model.FileEntry](t, resp, "entries"), 1)

	status, resp = e.do(t, "alice-token", `query { entry { id } }`, map[string]any{"id": file.ID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, file.ID, field[model.FileEntry](t, resp, "entry").ID)

	status, resp = e.do(t, "alice-token", `mutation { createKnowledgeItem { id } }`, map[string]any{"name": "faq", "content": "answers", "tags": []string{"help"}})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	item := field[model.KnowledgeItem](t, resp, "createKnowledgeItem")

	status, resp = e.do(t, "alice-token", `mutation { updateKnowledgeItem { id content } }`, map[string]any{"itemId": item.ID, "content": "more answers"})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	assert.Equal(t, "more answers", field[model.KnowledgeItem](t, resp, "updateKnowledgeItem").Content)

	status, resp = e.do(t, "alice-token", `query { knowledgeItems { id } }`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, field[[]model.KnowledgeItem](t, resp, "knowledgeItems"), 1)

	status, _ = e.do(t, "alice-token", `mutation { deleteKnowledgeItem }`, map[string]any{"itemId": item.ID})
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, "alice-token", `query { knowledgeItem { id } }`, map[string]any{"id": item.ID})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOperations_Signaling(t *testing.T) {
	e := setup(t)

	status, resp := e.do(t, "alice-token", `mutation { createRTCSession { id } }`, map[string]any{"participants": []string{"alice", "bob"}})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	session := field[model.RTCSession](t, resp, "createRTCSession")

	status, resp = e.do(t, "alice-token", `mutation { sendSignal { id } }`, map[string]any{"to": "bob", "type": "OFFER", "payload": "v=0"})
	require.Equal(t, http.StatusOK, status, resp.Errors)

	status, resp = e.do(t, "bob-token", `query { signalingSession { phase } }`, map[string]any{"peer": "alice"})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	var info struct {
		Phase     string `json:"phase"`
		Initiator string `json:"initiator"`
	}
	require.NoError(t, json.Unmarshal(resp.Data["signalingSession"], &info))
	assert.Equal(t, "OFFERED", info.Phase)
	assert.Equal(t, "alice", info.Initiator)

	status, resp = e.do(t, "alice-token", `mutation { sendSignal { id } }`, map[string]any{"to": "bob", "type": "OFFER", "payload": "v=0"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(model.KindConflict), resp.Errors[0].Code)

	status, _ = e.do(t, "carol-token", `query { rtcSession { id } }`, map[string]any{"id": session.ID})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = e.do(t, "bob-token", `mutation { endRTCSession }`, map[string]any{"sessionId": session.ID})
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, "bob-token", `query { signalingSession { phase } }`, map[string]any{"peer": "alice"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOperations_BadRequests(t *testing.T) {
	e := setup(t)

	tests := []struct {
		name  string
		query string
		vars  any
	}{
		{"unknown keyword", `fragment F on T { a }`, nil},
		{"no selection", `query Q`, nil},
		{"unknown query field", `query { everything }`, nil},
		{"mutation field as query", `query { sendMessage }`, nil},
		{"subscription", `subscription { messages }`, nil},
		{"variables of wrong type", `query { messages }`, map[string]any{"threadId": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := e.do(t, "alice-token", tt.query, tt.vars)
			assert.Equal(t, http.StatusBadRequest, status)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, string(model.KindBadInput), resp.Errors[0].Code)
		})
	}

	resp, err := http.Post(e.http.URL+"/v1/operations", "application/json", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ==========================================
// End to end through the relay
// ==========================================

func TestRelayToGateway(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	status, resp := e.do(t, "alice-token", createThread, map[string]any{"title": "t1", "participants": []string{"bob"}})
	require.Equal(t, http.StatusOK, status)
	thread := field[model.Thread](t, resp, "createThread")

	gw := gateway.New(e.broker)
	bobStream, err := gw.Subscribe(ctx, testAuth["bob-token"], gateway.KindMessages, gateway.Args{})
	require.NoError(t, err)
	defer bobStream.Close()
	aliceStream, err := gw.Subscribe(ctx, testAuth["alice-token"], gateway.KindMessages, gateway.Args{})
	require.NoError(t, err)
	defer aliceStream.Close()

	aliceRelay := relay.New(cache.NewMemory(), relay.NewHTTPNetwork(e.http.URL, "alice-token", time.Second))
	bobRelay := relay.New(cache.NewMemory(), relay.NewHTTPNetwork(e.http.URL, "bob-token", time.Second))

	read := relay.Operation{Text: listMessages, Variables: map[string]any{"threadId": thread.ID}}
	first, err := bobRelay.Execute(ctx, read)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[]}`, string(first.Data))

	before := e.requests.Load()
	_, err = bobRelay.Execute(ctx, read)
	require.NoError(t, err)
	assert.Equal(t, before, e.requests.Load(), "second read must be served from cache")

	reply := <-aliceRelay.Submit(ctx, relay.Request{ID: "r1", Operation: relay.Operation{
		Text:      sendMessage,
		Variables: map[string]any{"threadId": thread.ID, "content": "hi bob"},
	}})
	require.Equal(t, relay.ReplyTypeResult, reply.Type, reply.Error)
	assert.Equal(t, "r1", reply.ID)

	select {
	case ev := <-bobStream.Events():
		var m model.Message
		require.NoError(t, json.Unmarshal(ev.Payload, &m))
		assert.Equal(t, "hi bob", m.Content)
		assert.Equal(t, "message:bob", ev.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("bob did not receive the message")
	}

	select {
	case ev := <-aliceStream.Events():
		t.Fatalf("sender received own message on %s", ev.Topic)
	case <-time.After(50 * time.Millisecond):
	}

	reply = <-bobRelay.Submit(ctx, relay.Request{ID: "r2", Operation: relay.Operation{
		Text:      sendMessage,
		Variables: map[string]any{"threadId": "missing", "content": "x"},
	}})
	assert.Equal(t, relay.ReplyTypeError, reply.Type)
	assert.Equal(t, string(model.KindNotFound), reply.Error.Code)
}
