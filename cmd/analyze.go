package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	applog "github.com/resumer-app/resumer/internal/logger"
	"github.com/resumer-app/resumer/internal/pipeline"
	"github.com/resumer-app/resumer/internal/record"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a resume image, store AI feedback and fetch matching jobs",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("resume", "", "path of the stored resume document")
	analyzeCmd.Flags().String("image", "", "resume image reference passed to the AI provider")
	analyzeCmd.Flags().String("company", "", "target company name")
	analyzeCmd.Flags().String("job-title", "", "target job title")
	analyzeCmd.Flags().String("job-description", "", "target job description")

	_ = analyzeCmd.MarkFlagRequired("image")
	_ = analyzeCmd.MarkFlagRequired("job-title")
}

// analyze is the main entrypoint: it kicks off an analysis and then follows
// its own record until the background job matching settles.
func analyze(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := applog.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resumer", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	kv, closeStore, err := newKV(ctx, config)
	if err != nil {
		logger.Fatal("creating a record store", zap.Error(err))
	}
	defer closeStore()

	repo := record.NewRepository(kv)

	orch, err := newOrchestrator(ctx, config, logger, repo)
	if err != nil {
		logger.Fatal("building the analysis pipeline", zap.Error(err))
	}

	req := pipeline.AnalyzeRequest{
		ResumePath:     cmd.Flag("resume").Value.String(),
		ImagePath:      cmd.Flag("image").Value.String(),
		CompanyName:    cmd.Flag("company").Value.String(),
		JobTitle:       cmd.Flag("job-title").Value.String(),
		JobDescription: cmd.Flag("job-description").Value.String(),
	}

	rec, err := orch.Analyze(ctx, req)
	if err != nil {
		logger.Fatal("analyzing the resume", zap.Error(err))
	}

	logger.Info("analysis accepted, waiting for job matching",
		zap.String(applog.FieldResumeID, rec.ID),
	)

	watcher := newWatcher(config, logger, repo)

	_, watchErr := watcher.Await(ctx, rec.ID)
	orch.Wait()

	reportOutcome(ctx, logger, repo, rec.ID, watchErr)
}
