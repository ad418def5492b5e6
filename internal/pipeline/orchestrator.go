// Package pipeline owns the resume record lifecycle: the synchronous feedback
// step on the request path and the detached background run that extracts
// signals, requests job matches and drives jobFetchStatus to a terminal
// state. The record store is its only output channel.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/resumer-app/resumer/internal/ai"
	"github.com/resumer-app/resumer/internal/extraction"
	"github.com/resumer-app/resumer/internal/logger"
	"github.com/resumer-app/resumer/internal/record"
	"go.uber.org/zap"
)

//go:embed instructions.md
var feedbackInstructions string

type extractor interface {
	Extract(ctx context.Context, imageRef, fallbackTitle string) (*record.ExtractedInfo, error)
}

type matcher interface {
	RequestMatches(ctx context.Context, role string, skills []string) ([]record.JobMatch, error)
}

// Orchestrator runs the analysis pipeline. Exactly one orchestrator run owns
// a record for its lifetime; nothing else writes the same key.
type Orchestrator struct {
	repo      *record.Repository
	assistant ai.Assistant
	extractor extractor
	jobs      matcher
	logger    *zap.Logger

	// JobsCap truncates recommended jobs before the terminal persist.
	JobsCap int

	wg sync.WaitGroup
}

func New(repo *record.Repository, assistant ai.Assistant, ext extractor, jobs matcher, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{
		repo:      repo,
		assistant: assistant,
		extractor: ext,
		jobs:      jobs,
		logger:    log,
		JobsCap:   record.ViewJobsCap,
	}
}

// AnalyzeRequest carries the user-supplied context for one analysis.
type AnalyzeRequest struct {
	ResumePath     string
	ImagePath      string
	CompanyName    string
	JobTitle       string
	JobDescription string
}

// Analyze is the synchronous trigger path: it produces the initial AI
// feedback, persists the new record and launches the detached background run.
// Any failure before the first persist is returned to the caller and no
// background work starts.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalyzeRequest) (*record.ResumeRecord, error) {
	rec := record.New(record.NewParams{
		ResumePath:     req.ResumePath,
		ImagePath:      req.ImagePath,
		CompanyName:    req.CompanyName,
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
	})

	log := logger.WithRecordFields(o.logger, rec.ID, "")
	log.Info("analyzing resume", zap.String("image_path", req.ImagePath))

	raw, err := o.assistant.Feedback(ctx, req.ImagePath, prepareInstructions(req.JobTitle, req.JobDescription))
	if err != nil {
		return nil, fmt.Errorf("generate feedback: %w", err)
	}

	cleaned := extraction.CleanJSON(raw)
	if !json.Valid([]byte(cleaned)) {
		return nil, errors.New("ai returned invalid feedback json")
	}
	rec.Feedback = json.RawMessage(cleaned)

	if err := o.repo.Save(ctx, rec); err != nil {
		return nil, err
	}

	log.Info("feedback saved, starting job matching")
	o.launch(rec)

	return rec, nil
}

// launch starts the detached run. The goroutine outlives the triggering
// request and reports nothing back to it; a hosting process can drain
// in-flight runs with Wait.
func (o *Orchestrator) launch(rec *record.ResumeRecord) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx := context.Background()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("pipeline run panicked",
					zap.String(logger.FieldResumeID, rec.ID),
					zap.Any("panic", r),
				)
				o.fail(ctx, rec)
			}
		}()

		o.run(ctx, rec)
	}()
}

// Wait blocks until every launched run has reached a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run drives the record from processing to a terminal status, persisting the
// full record before each subsequent step so readers can observe incremental
// progress. Errors never escape; they become a failed terminal write.
func (o *Orchestrator) run(ctx context.Context, rec *record.ResumeRecord) {
	log := logger.WithFields(o.logger, zap.String(logger.FieldResumeID, rec.ID))

	rec.FetchStatus = record.StatusProcessing
	if err := o.repo.Save(ctx, rec); err != nil {
		log.Error("persisting processing status", zap.Error(err))
		o.fail(ctx, rec)
		return
	}

	info, err := o.extractor.Extract(ctx, rec.ImagePath, rec.JobTitle)
	if errors.Is(err, extraction.ErrExtractionFailed) {
		log.Warn("extraction fell back to submitted job title", zap.String("title", rec.JobTitle))
	} else if err != nil || info == nil {
		log.Error("extraction stage", zap.Error(err))
		o.fail(ctx, rec)
		return
	}

	rec.ExtractedInfo = info
	if err := o.repo.Save(ctx, rec); err != nil {
		log.Error("persisting extracted info", zap.Error(err))
		o.fail(ctx, rec)
		return
	}

	log.Info("requesting job matches",
		zap.String("role", info.Title),
		zap.Int("skills", len(info.Skills)),
	)

	matches, err := o.jobs.RequestMatches(ctx, info.Title, info.Skills)
	if err != nil {
		log.Warn("job matching failed", zap.Error(err))
		o.fail(ctx, rec)
		return
	}

	if len(matches) > o.JobsCap {
		matches = matches[:o.JobsCap]
	}
	if matches == nil {
		matches = []record.JobMatch{}
	}

	rec.Jobs = matches
	rec.FetchStatus = record.StatusDone
	if err := o.repo.Save(ctx, rec); err != nil {
		log.Error("persisting job matches", zap.Error(err))
		return
	}

	log.Info("job matching done", zap.Int("count", len(matches)))
}

// fail writes the failed terminal state with empty matches. A write failure
// here leaves the record stuck in processing, which readers treat as an
// operational failure signal after their attempt budget.
func (o *Orchestrator) fail(ctx context.Context, rec *record.ResumeRecord) {
	rec.Jobs = []record.JobMatch{}
	rec.FetchStatus = record.StatusFailed

	if err := o.repo.Save(ctx, rec); err != nil {
		o.logger.Error("persisting failed status",
			zap.String(logger.FieldResumeID, rec.ID),
			zap.Error(err),
		)
	}
}

func prepareInstructions(jobTitle, jobDescription string) string {
	instructions := strings.ReplaceAll(feedbackInstructions, "{{JOB_TITLE}}", jobTitle)
	return strings.ReplaceAll(instructions, "{{JOB_DESCRIPTION}}", jobDescription)
}
