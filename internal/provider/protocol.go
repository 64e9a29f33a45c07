// Package provider implements the text-generation capability used by
// the review pipeline.
package provider

import "context"

// StopReasonMaxTokens signals that the response was cut off by the
// output-size bound. Callers must check for it before trusting Text.
const StopReasonMaxTokens = "max_tokens"

// GenerateRequest is a single text-generation request.
type GenerateRequest struct {
	Model       string
	System      string // optional system instruction
	Prompt      string // user message
	MaxTokens   int
	Temperature float64
}

// Usage reports token consumption for one request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GenerateResponse is the result of a text-generation request.
type GenerateResponse struct {
	Text       string
	StopReason string
	Usage      Usage
}

// Truncated reports whether the response was cut off by the
// output-size bound. A truncated response must never be committed.
func (r *GenerateResponse) Truncated() bool {
	return r.StopReason == StopReasonMaxTokens
}

// Generator is the text-generation capability consumed by the review
// pipeline.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}
