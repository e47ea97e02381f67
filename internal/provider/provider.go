// Package provider defines the boundary to the downstream model service:
// typed messages with an enumerated role set, token usage counters, and the
// sentinel error taxonomy that separates transient from fatal failures.
package provider

import "context"

// Provider is the interface for communicating with an LLM. The model
// service is a black box: it receives a message sequence and returns text
// plus usage counters, or an error classified by the sentinels in this
// package.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req Request) (Response, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
