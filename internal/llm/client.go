package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// Message is a single role-tagged turn sent to the provider. Role must be
// one of "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Client is the generative-text provider boundary used by the AI relay
// and the daily summarizer.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StatusCode extracts the provider-side HTTP status from an error returned
// by a Client, or 0 when the error carries no status.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
