package ai

import "context"

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a text-generation backend. Implementations must honour ctx
// cancellation so per-attempt timeouts hold.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, messages []Message) (string, error)

func (f ProviderFunc) Chat(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
