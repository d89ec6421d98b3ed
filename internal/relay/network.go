package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/syntrixbase/switchboard/pkg/model"
)

// Network forwards an operation to the upstream.
type Network interface {
	Do(ctx context.Context, op Operation) (*Result, error)
}

// maxResponseSize bounds an upstream response body.
const maxResponseSize = 16 << 20

// HTTPNetwork posts operations to the upstream operations endpoint.
type HTTPNetwork struct {
	endpoint string
	token    string
	client   *http.Client
}

var _ Network = (*HTTPNetwork)(nil)

// NewHTTPNetwork creates a network path to baseURL + "/v1/operations".
// token, when set, is sent for operations carrying no Authorization of their own.
func NewHTTPNetwork(baseURL, token string, timeout time.Duration) *HTTPNetwork {
	return &HTTPNetwork{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/operations",
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

type operationRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Do returns the upstream result, including results that carry errors. An
// error is returned only when no result could be obtained; it is a
// NetworkError unless ctx ended first.
func (n *HTTPNetwork) Do(ctx context.Context, op Operation) (*Result, error) {
	body, err := json.Marshal(operationRequest{Query: op.Text, Variables: op.Variables, OperationName: op.Name})
	if err != nil {
		return nil, model.Wrap(model.KindBadInput, err, "failed to encode operation")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, model.Wrap(model.KindInternal, err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	switch {
	case op.Authorization != "":
		req.Header.Set("Authorization", op.Authorization)
	case n.token != "":
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if model.IsCanceled(err) && ctx.Err() != nil {
			return nil, model.ErrCanceled
		}
		return nil, model.Wrap(model.KindNetworkError, err, "upstream unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, model.Wrap(model.KindNetworkError, err, "failed to read upstream response")
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, model.Wrap(model.KindNetworkError, fmt.Errorf("status %d", resp.StatusCode), "malformed upstream response")
	}
	if resp.StatusCode >= 300 && len(result.Errors) == 0 {
		return nil, model.NewError(model.KindNetworkError, "upstream returned %s", resp.Status)
	}
	return &result, nil
}
