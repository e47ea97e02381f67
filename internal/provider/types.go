package provider

import "fmt"

// Role identifies the author of a conversation message.
type Role string

// Role constants for conversation messages.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole validates a raw role string at the boundary. Anything other
// than "user" or "assistant" is rejected — stored history must never
// contain roles the downstream API would refuse.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Message is a single role-tagged content block in a model request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the input to a Provider.Complete call.
type Request struct {
	// System is the persona/system prompt, sent out-of-band from Messages.
	System string `json:"system,omitempty"`

	// Messages is the ordered conversation sequence.
	Messages []Message `json:"messages"`

	// MaxTokens caps the model's output length. 0 uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature overrides the provider's sampling temperature when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`

	// ThinkingBudget enables extended reasoning with the given token budget
	// when > 0. Providers without reasoning support ignore it.
	ThinkingBudget int `json:"thinking_budget,omitempty"`
}

// Usage carries the token counters reported by the model service.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Response is the output of a Provider.Complete call.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}
