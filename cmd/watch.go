package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	applog "github.com/resumer-app/resumer/internal/logger"
	"github.com/resumer-app/resumer/internal/pipeline"
	"github.com/resumer-app/resumer/internal/poller"
	"github.com/resumer-app/resumer/internal/record"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptResubmit = "Resubmit the resume for a new analysis"
	PromptExit     = "Exit"
)

var failurePrompt = promptui.Select{
	Label: "Job matching failed. What now?",
	Items: []string{PromptResubmit, PromptExit},
}

var watchCmd = &cobra.Command{
	Use:   "watch <resume-id>",
	Short: "Follow an existing analysis until job matching settles",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		watch(args[0])
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watch(id string) {
	ctx := context.Background()

	logger, err := applog.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	kv, closeStore, err := newKV(ctx, config)
	if err != nil {
		logger.Fatal("creating a record store", zap.Error(err))
	}
	defer closeStore()

	repo := record.NewRepository(kv)
	watcher := newWatcher(config, logger, repo)

	// The orchestrator is only needed for resubmission, so it is built
	// lazily on the first failed outcome.
	var orch *pipeline.Orchestrator

	for {
		rec, watchErr := watcher.Await(ctx, id)

		if !errors.Is(watchErr, poller.ErrMatchingFailed) {
			if orch != nil {
				orch.Wait()
			}
			reportOutcome(ctx, logger, repo, id, watchErr)
			return
		}

		logger.Warn("job matching failed", zap.String(applog.FieldResumeID, id))

		_, action, err := failurePrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if action != PromptResubmit {
			logger.Info("exiting", zap.String("reason", "got exit from prompt"))
			if orch != nil {
				orch.Wait()
			}
			return
		}

		if orch == nil {
			orch, err = newOrchestrator(ctx, config, logger, repo)
			if err != nil {
				logger.Fatal("building the analysis pipeline", zap.Error(err))
			}
		}

		// Resubmission starts a fresh record from the failed one's
		// immutable inputs. The failed record stays as it is.
		fresh, err := orch.Analyze(ctx, pipeline.AnalyzeRequest{
			ResumePath:     rec.ResumePath,
			ImagePath:      rec.ImagePath,
			CompanyName:    rec.CompanyName,
			JobTitle:       rec.JobTitle,
			JobDescription: rec.JobDescription,
		})
		if err != nil {
			logger.Fatal("resubmitting the resume", zap.Error(err))
		}

		logger.Info("resubmitted for a new analysis",
			zap.String(applog.FieldResumeID, fresh.ID),
		)

		id = fresh.ID
	}
}

// reportOutcome renders the terminal state of a watched record: the jobs view
// on success, a hint on timeout and the error otherwise.
func reportOutcome(ctx context.Context, logger *zap.Logger, repo *record.Repository, id string, watchErr error) {
	switch {
	case watchErr == nil:
		view, err := repo.View(ctx, id)
		if err != nil {
			logger.Fatal("loading the record view", zap.Error(err))
		}

		pretty, _ := json.MarshalIndent(view, "", "  ")
		logger.Info(string(pretty),
			zap.String(applog.FieldResumeID, id),
			zap.Int("jobs count", len(view.Jobs)),
		)
	case errors.Is(watchErr, poller.ErrTimeout):
		logger.Warn("job matching is taking longer than expected, check back later",
			zap.String(applog.FieldResumeID, id),
		)
	case errors.Is(watchErr, poller.ErrMatchingFailed):
		logger.Warn("job matching failed, no recommendations available",
			zap.String(applog.FieldResumeID, id),
		)
	default:
		logger.Fatal("watching the record", zap.Error(watchErr))
	}
}
