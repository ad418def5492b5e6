// Package jobmatch is the client for the external job-matching service. It
// performs exactly one attempt per call; retry policy, if any, belongs to the
// caller.
package jobmatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/resumer-app/resumer/internal/record"
	"go.uber.org/zap"
)

const (
	getJobsPath = "/get-jobs"
	contentType = "application/json"

	// DefaultTimeout bounds one request to the job service. Matching runs
	// upstream take ~30-40s, so the deadline sits well above that.
	DefaultTimeout = 60 * time.Second

	DefaultLimit     = 30
	DefaultSeniority = "Mid-level"
	defaultLocation  = "Remote"
)

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	Timeout    time.Duration
	Limit      int
	Seniority  string
	logger     *zap.Logger
}

func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		HTTPClient: &http.Client{},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Timeout:    DefaultTimeout,
		Limit:      DefaultLimit,
		Seniority:  DefaultSeniority,
		logger:     logger,
	}
}

type matchRequest struct {
	Role      string   `json:"role"`
	Skills    []string `json:"skills"`
	Seniority string   `json:"seniority"`
	Limit     int      `json:"limit"`
}

// rawJob covers the field naming variants the service integrations produce.
type rawJob struct {
	Role       string   `json:"role"`
	JobTitle   string   `json:"job_title"`
	Company    string   `json:"company"`
	Location   string   `json:"location"`
	URL        string   `json:"url"`
	Skills     []string `json:"skills"`
	MatchScore *float64 `json:"match_score"`
	Score      *float64 `json:"score"`
}

// RequestMatches posts {role, skills, seniority, limit} to the job service
// and returns the normalized matches in the service's ranking order,
// truncated to the configured limit. The call runs under its own deadline,
// detached from any caller cancellation.
func (c *Client) RequestMatches(ctx context.Context, role string, skills []string) ([]record.JobMatch, error) {
	if skills == nil {
		skills = []string{}
	}

	payload := matchRequest{
		Role:      role,
		Skills:    skills,
		Seniority: c.Seniority,
		Limit:     c.Limit,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.Timeout)
	defer cancel()

	url := c.BaseURL + getJobsPath
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("requesting job matches",
		zap.String("url", url),
		zap.String("role", role),
		zap.Int("skills", len(skills)),
		zap.Int("limit", c.Limit),
	)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("job service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}

	matches, err := normalize(items)
	if err != nil {
		return nil, err
	}

	if len(matches) > c.Limit {
		matches = matches[:c.Limit]
	}

	return matches, nil
}

// normalize maps the service's loosely named job objects onto JobMatch,
// preserving order. Missing locations default to Remote, missing scores to 0.
func normalize(items []map[string]any) ([]record.JobMatch, error) {
	var raws []rawJob
	cfg := &mapstructure.DecoderConfig{
		Result:           &raws,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode job items: %w", err)
	}

	matches := make([]record.JobMatch, 0, len(raws))
	for _, raw := range raws {
		role := raw.Role
		if role == "" {
			role = raw.JobTitle
		}

		location := raw.Location
		if location == "" {
			location = defaultLocation
		}

		var score float64
		switch {
		case raw.MatchScore != nil:
			score = *raw.MatchScore
		case raw.Score != nil:
			score = *raw.Score
		}

		skills := raw.Skills
		if skills == nil {
			skills = []string{}
		}

		matches = append(matches, record.JobMatch{
			Role:     role,
			Company:  raw.Company,
			Skills:   skills,
			Location: location,
			URL:      raw.URL,
			Score:    score,
		})
	}

	return matches, nil
}
