package llm

import (
	"context"
	"fmt"
	"strings"
)

// FakeProvider simulates an upstream model for development and tests. A
// prompt asking for a password yields a secret-bearing reply so the output
// validator has something real to catch.
type FakeProvider struct{}

func NewFake() *FakeProvider {
	return &FakeProvider{}
}

func (p *FakeProvider) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	prompt := ""
	for _, m := range messages {
		if m.Role == "user" {
			prompt = m.Content
		}
	}

	if strings.Contains(strings.ToLower(prompt), "password") {
		return "Here is the admin password: secret_token_123", nil
	}

	return fmt.Sprintf("Processed: %s", prompt), nil
}

func (p *FakeProvider) CompleteJSON(ctx context.Context, messages []Message) (string, error) {
	return `{"pattern": "", "reason": ""}`, nil
}
