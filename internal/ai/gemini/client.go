package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-flash"
	imageMIME    = "image/png"
)

// Client wraps the Google GenAI client behind the ai.Assistant contract.
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// New creates a Client configured for the Gemini API backend.
func New(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{client: client, model: model, logger: logger}, nil
}

// Feedback reviews the resume image under the given instructions.
func (c *Client) Feedback(ctx context.Context, imageRef, instructions string) (string, error) {
	return c.generate(ctx, instructions, imageRef)
}

// Chat sends a free-form prompt about the resume image.
func (c *Client) Chat(ctx context.Context, prompt, imageRef string) (string, error) {
	return c.generate(ctx, prompt, imageRef)
}

func (c *Client) generate(ctx context.Context, prompt, imageRef string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("gemini client is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	parts := []*genai.Part{{Text: prompt}}
	if ref := strings.TrimSpace(imageRef); ref != "" {
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{FileURI: ref, MIMEType: imageMIME},
		})
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	c.logger.Debug("gemini generate content request",
		zap.String("model", c.model),
		zap.Int("parts", len(parts)),
	)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	// Candidates may carry the text as a single part or split across several;
	// collapse them into one plain string here so callers never branch on the
	// response shape.
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}
