// Package extraction derives a canonical job title and skill list from the
// resume via the AI collaborator, with a deterministic fallback when the
// response cannot be parsed.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/resumer-app/resumer/internal/ai"
	"github.com/resumer-app/resumer/internal/record"
	"github.com/resumer-app/resumer/internal/utils"
	"go.uber.org/zap"
)

//go:embed prompt.md
var prompt string

// ErrExtractionFailed marks a recoverable extraction outcome: the returned
// info is the caller-supplied fallback and the pipeline should continue.
var ErrExtractionFailed = errors.New("extraction failed")

const defaultMaxLogLength = 200

type Extractor struct {
	assistant ai.Assistant
	logger    *zap.Logger
	maxLogLen int
}

func New(assistant ai.Assistant, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		assistant: assistant,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Extract issues one request to the AI collaborator and normalizes the
// response into {title, skills}. On any parse failure or empty response it
// returns {fallbackTitle, no skills} together with ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, imageRef, fallbackTitle string) (*record.ExtractedInfo, error) {
	fallback := &record.ExtractedInfo{Title: fallbackTitle, Skills: []string{}}

	raw, err := e.assistant.Chat(ctx, prompt, imageRef)
	if err != nil {
		e.logger.Warn("extraction request failed", zap.Error(err))
		return fallback, ErrExtractionFailed
	}

	e.logger.Debug("extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	info, err := parseResponse(raw)
	if err != nil {
		e.logger.Warn("parsing extraction response failed", zap.Error(err))
		return fallback, ErrExtractionFailed
	}

	if info.Title == "" {
		info.Title = fallbackTitle
	}

	return info, nil
}

func parseResponse(raw string) (*record.ExtractedInfo, error) {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return nil, errors.New("empty response")
	}

	var payload struct {
		Title  string          `json:"title"`
		Skills json.RawMessage `json:"skills"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, err
	}

	return &record.ExtractedInfo{
		Title:  strings.TrimSpace(payload.Title),
		Skills: flattenSkills(payload.Skills),
	}, nil
}

// CleanJSON strips the optional markdown code-fence wrapping models put
// around JSON. The exact substrings are removed globally, then the result is
// trimmed.
func CleanJSON(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// flattenSkills accepts either a flat list of strings or role buckets each
// carrying an "items" list, and flattens everything into one sequence
// preserving encounter order. Buckets without items are dropped.
func flattenSkills(raw json.RawMessage) []string {
	skills := make([]string, 0)
	if len(raw) == 0 {
		return skills
	}

	var entries []any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return skills
	}

	for _, entry := range entries {
		switch v := entry.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				skills = append(skills, s)
			}
		case map[string]any:
			items, ok := v["items"].([]any)
			if !ok {
				continue
			}
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					continue
				}
				if s = strings.TrimSpace(s); s != "" {
					skills = append(skills, s)
				}
			}
		}
	}

	return skills
}
