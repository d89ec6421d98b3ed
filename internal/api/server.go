// Package api serves the operations endpoint that the relay forwards to.
// Mutations run through the Publisher; reads go straight to the data layer.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/syntrixbase/switchboard/internal/core/identity"
	"github.com/syntrixbase/switchboard/internal/core/storage"
	"github.com/syntrixbase/switchboard/internal/publisher"
	"github.com/syntrixbase/switchboard/internal/relay"
	"github.com/syntrixbase/switchboard/pkg/model"
)

// maxBodySize bounds an operation request body.
const maxBodySize = 1 << 20

// resolver runs one root field with the request variables.
type resolver func(r *http.Request, vars json.RawMessage) (any, error)

type Server struct {
	publisher *publisher.Publisher
	store     storage.Store
	auth      identity.Authenticator
	logger    *slog.Logger

	queries   map[string]resolver
	mutations map[string]resolver
}

// NewServer creates the operations API. auth may be nil when identities are
// established by an outer middleware.
func NewServer(pub *publisher.Publisher, store storage.Store, auth identity.Authenticator) *Server {
	s := &Server{
		publisher: pub,
		store:     store,
		auth:      auth,
		logger:    slog.Default().With("component", "api"),
	}
	s.queries = s.queryResolvers()
	s.mutations = s.mutationResolvers()
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	var h http.Handler = http.HandlerFunc(s.handleOperation)
	if s.auth != nil {
		h = identity.Middleware(s.auth)(h)
	}
	mux.Handle("POST /v1/operations", h)
}

// OperationRequest is the body of POST /v1/operations.
type OperationRequest struct {
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	OperationName string          `json:"operationName,omitempty"`
}

type OperationResponse struct {
	Data   map[string]any      `json:"data,omitempty"`
	Errors []relay.ResultError `json:"errors,omitempty"`
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Wrap(model.KindBadInput, err, "invalid request body"))
		return
	}

	op := relay.Operation{Text: req.Query, Name: req.OperationName}
	kind, err := op.Kind()
	if err != nil {
		writeError(w, model.Wrap(model.KindBadInput, err, "invalid operation"))
		return
	}
	field, err := op.RootField()
	if err != nil {
		writeError(w, model.Wrap(model.KindBadInput, err, "invalid operation"))
		return
	}

	var table map[string]resolver
	switch kind {
	case relay.KindQuery:
		table = s.queries
	case relay.KindMutation:
		table = s.mutations
	default:
		writeError(w, model.NewError(model.KindBadInput, "subscriptions are served on /v1/realtime"))
		return
	}
	resolve, ok := table[field]
	if !ok {
		writeError(w, model.NewError(model.KindBadInput, "unknown %s field %q", kind, field))
		return
	}

	if _, err := identity.Require(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	vars := req.Variables
	if len(vars) == 0 || string(vars) == "null" {
		vars = json.RawMessage(`{}`)
	}
	result, err := resolve(r, vars)
	if err != nil {
		if model.IsCanceled(err) {
			w.WriteHeader(499) // Client Closed Request
			return
		}
		if model.KindOf(err) == model.KindInternal {
			s.logger.Error("Operation failed", "field", field, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Data: map[string]any{field: result}})
}

// bind decodes the request variables into v.
func bind(vars json.RawMessage, v any) error {
	if err := json.Unmarshal(vars, v); err != nil {
		return model.Wrap(model.KindBadInput, err, "invalid variables")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	message := err.Error()
	var typed *model.Error
	if kind == model.KindInternal && !errors.As(err, &typed) {
		message = "internal error"
	}
	writeJSON(w, model.HTTPStatus(kind), OperationResponse{
		Errors: []relay.ResultError{{Message: message, Code: string(kind)}},
	})
}
