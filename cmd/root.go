package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resumer"
)

type Config struct {
	Store *StoreConfig `mapstructure:"store"`
	AI    *AIConfig    `mapstructure:"ai"`
	Jobs  *JobsConfig  `mapstructure:"jobs"`
	Poll  *PollConfig  `mapstructure:"poll"`
}

type StoreConfig struct {
	PostgresURL     string `mapstructure:"postgres-url"`
	PostgresURLFile string `mapstructure:"postgres-url-file"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type JobsConfig struct {
	ServiceURL     string `mapstructure:"service-url"`
	TimeoutSeconds int    `mapstructure:"timeout-seconds"`
	Limit          int    `mapstructure:"limit"`
	Seniority      string `mapstructure:"seniority"`
}

type PollConfig struct {
	IntervalMs  int `mapstructure:"interval-ms"`
	MaxAttempts int `mapstructure:"max-attempts"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resumer analyzes resumes with AI feedback and matches them against open positions",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	_ = godotenv.Load()

	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("store.postgres-url", "RESUMER_POSTGRES_URL"); err != nil {
		log.Fatalf("binding RESUMER_POSTGRES_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("jobs.service-url", "JOB_SERVICE_URL"); err != nil {
		log.Fatalf("binding JOB_SERVICE_URL environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resumer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().Bool("memory", false, "use an in-memory record store instead of postgres")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("memory", rootCmd.PersistentFlags().Lookup("memory"))
}

func initConfig() {
	// Config needed only for the analyze and watch commands. If neither is
	// called, we can skip initialization.
	if analyzeCmd.CalledAs() == "" && watchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
