package ai

import "context"

// JSONRequest is a single chat turn whose reply must be a JSON object.
type JSONRequest struct {
	// Operation labels metrics and spans, e.g. "find_errors".
	Operation string
	System    string
	User      string
	Images    []Image
}

// Image is a data or https URL attached to the user turn. A non-empty Label is sent as a
// text part directly before the image.
type Image struct {
	Label string
	URL   string
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completer sends a prompt to a chat model and decodes its JSON reply into out.
type Completer interface {
	CompleteJSON(ctx context.Context, req JSONRequest, out interface{}) (Usage, error)
	Model() string
}
