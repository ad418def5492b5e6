package ai

import "context"

// Assistant is the external AI collaborator. Both calls are one-shot and
// synchronous; implementations normalize whatever message shape the provider
// returns into plain text before it reaches the pipeline.
type Assistant interface {
	// Feedback reviews the resume image under the given instructions and
	// returns the raw feedback text.
	Feedback(ctx context.Context, imageRef, instructions string) (string, error)
	// Chat sends a free-form prompt about the resume image and returns the
	// raw response text.
	Chat(ctx context.Context, prompt, imageRef string) (string, error)
}
