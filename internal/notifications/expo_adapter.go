package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

// ExpoAdapter satisfies PushSender by delegating to the exponent SDK client.
// It exists so callers and tests depend on the interface, not the SDK.
type ExpoAdapter struct {
	client *exponent.Client
}

func NewExpoAdapter(client *exponent.Client) *ExpoAdapter {
	return &ExpoAdapter{client: client}
}

// Publish sends a batch of messages in one Expo API call.
func (a *ExpoAdapter) Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	return a.client.Publish(ctx, msgs)
}

// PublishSingle sends one message; Expo still answers with a response slice.
func (a *ExpoAdapter) PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error) {
	return a.client.PublishSingle(ctx, msg)
}
