// Package llm contains clients for the upstream chat model and the
// generative model used for rule synthesis. Both speak the OpenAI-compatible
// chat-completions API, so one client type covers Groq, OpenAI, and local
// gateways.
package llm

import "context"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the contract for upstream chat models.
type Provider interface {
	// ChatCompletion returns the assistant reply for the conversation.
	ChatCompletion(ctx context.Context, messages []Message) (string, error)

	// CompleteJSON is ChatCompletion constrained to a single JSON object
	// reply (response_format json_object). Used by the rule synthesizer.
	CompleteJSON(ctx context.Context, messages []Message) (string, error)
}
