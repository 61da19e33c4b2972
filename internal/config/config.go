package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all labeling-loop configuration
type Config struct {
	// Annotation store access
	APIKey   string
	Endpoint string

	// Target project and job
	ProjectID string
	JobName   string

	// Loop schedule
	Interval     time.Duration
	CronSchedule string

	// Asset fetching
	PageSize    int
	MaxAssets   int
	CallTimeout time.Duration

	// Training
	MinLabeled      int
	TrainBudget     time.Duration
	CandidateBudget time.Duration
	Seed            int64
	MaxFeatures     int
	TrainWorkers    int

	// Publishing
	ModelPrefix          string
	PublishProbabilities bool
}

// Load reads configuration from labelforge.yaml and environment variables
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"APIKey":               "LABELFORGE_API_KEY",
		"Endpoint":             "LABELFORGE_ENDPOINT",
		"ProjectID":            "LABELFORGE_PROJECT_ID",
		"JobName":              "LABELFORGE_JOB_NAME",
		"Interval":             "LABELFORGE_INTERVAL",
		"CronSchedule":         "LABELFORGE_CRON_SCHEDULE",
		"PageSize":             "LABELFORGE_PAGE_SIZE",
		"MaxAssets":            "LABELFORGE_MAX_ASSETS",
		"CallTimeout":          "LABELFORGE_CALL_TIMEOUT",
		"MinLabeled":           "LABELFORGE_MIN_LABELED",
		"TrainBudget":          "LABELFORGE_TRAIN_BUDGET",
		"CandidateBudget":      "LABELFORGE_CANDIDATE_BUDGET",
		"Seed":                 "LABELFORGE_SEED",
		"MaxFeatures":          "LABELFORGE_MAX_FEATURES",
		"TrainWorkers":         "LABELFORGE_TRAIN_WORKERS",
		"ModelPrefix":          "LABELFORGE_MODEL_PREFIX",
		"PublishProbabilities": "LABELFORGE_PUBLISH_PROBABILITIES",
	}
	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("labelforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.labelforge")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Interval", "10m")
	v.SetDefault("PageSize", 100)
	v.SetDefault("MaxAssets", 0)
	v.SetDefault("CallTimeout", "30s")
	v.SetDefault("MinLabeled", 10)
	v.SetDefault("TrainBudget", "2m")
	v.SetDefault("CandidateBudget", "30s")
	v.SetDefault("Seed", 42)
	v.SetDefault("MaxFeatures", 2000)
	v.SetDefault("TrainWorkers", 4)
	v.SetDefault("ModelPrefix", "labelforge")
	v.SetDefault("PublishProbabilities", false)
}

// validate checks the required fields. Missing or invalid configuration is
// fatal at process start, before the loop begins.
func validate(config *Config) error {
	var missingVars []string

	if config.APIKey == "" {
		missingVars = append(missingVars, "LABELFORGE_API_KEY")
	}
	if config.ProjectID == "" {
		missingVars = append(missingVars, "LABELFORGE_PROJECT_ID")
	}
	if config.JobName == "" {
		missingVars = append(missingVars, "LABELFORGE_JOB_NAME")
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missingVars, ", "))
	}

	if config.CronSchedule != "" {
		if _, err := cron.ParseStandard(config.CronSchedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", config.CronSchedule, err)
		}
	} else if config.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", config.Interval)
	}

	if config.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", config.PageSize)
	}

	return nil
}
