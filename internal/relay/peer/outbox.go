package peer

import (
	"context"
	"encoding/json"

	"github.com/syntrixbase/switchboard/internal/relay"
	"github.com/syntrixbase/switchboard/internal/signaling"
	"github.com/syntrixbase/switchboard/pkg/model"
)

const (
	meQuery            = `query Me { me { userId } }`
	sendSignalMutation = `mutation SendSignal($to: ID!, $type: String!, $payload: String!) { sendSignal(to: $to, type: $type, payload: $payload) { id } }`
)

// NetworkOutbox sends signals through the node's sendSignal mutation. The
// node stamps the sender from the credentials, so msg.From is not sent.
func NetworkOutbox(n relay.Network) signaling.Outbox {
	return signaling.OutboxFunc(func(ctx context.Context, msg signaling.Message) error {
		res, err := n.Do(ctx, relay.Operation{
			Text: sendSignalMutation,
			Name: "SendSignal",
			Variables: map[string]any{
				"to":      msg.To,
				"type":    string(msg.Type),
				"payload": msg.Payload,
			},
		})
		if err != nil {
			return err
		}
		return resultError(res)
	})
}

// whoami resolves the user the network's credentials belong to.
func whoami(ctx context.Context, n relay.Network) (string, error) {
	res, err := n.Do(ctx, relay.Operation{Text: meQuery, Name: "Me"})
	if err != nil {
		return "", err
	}
	if err := resultError(res); err != nil {
		return "", err
	}

	var data struct {
		Me *struct {
			UserID string `json:"userId"`
		} `json:"me"`
	}
	if err := json.Unmarshal(res.Data, &data); err != nil {
		return "", model.Wrap(model.KindInternal, err, "malformed me result")
	}
	if data.Me == nil || !model.CheckID(data.Me.UserID) {
		return "", model.NewError(model.KindUnauthenticated, "relay token does not name a user")
	}
	return data.Me.UserID, nil
}

// resultError converts the first error of res into a typed error.
func resultError(res *relay.Result) error {
	if res == nil {
		return model.NewError(model.KindInternal, "empty result")
	}
	if len(res.Errors) == 0 {
		return nil
	}
	kind := model.Kind(res.Errors[0].Code)
	if kind == "" {
		kind = model.KindInternal
	}
	return model.NewError(kind, "%s", res.Errors[0].Message)
}
