package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"finetuner/internal/core"
	"finetuner/internal/util"

	"gopkg.in/yaml.v3"
)

// Config holds everything a fine-tuning run needs.
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Project      string

	TrainingFileID   string
	TrainingFilePath string
	ValidationFileID string
	BaseModel        string
	Suffix           string
	Seed             *int
	Hyperparameters  core.Hyperparameters
	PollInterval     time.Duration

	TestPrompt   string
	SystemPrompt string
	Temperature  float64

	RedisURL  string
	StatsFile string

	HTTPClientSettings HTTPClientSettings
}

// HTTPClientSettings HTTP client configuration
type HTTPClientSettings struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	RequestTimeout        time.Duration
}

// DefaultHTTPClientSettings default HTTP client settings
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		MaxIdleConns:          core.HTTPMaxIdleConns,
		MaxIdleConnsPerHost:   core.HTTPMaxIdleConnsPerHost,
		IdleConnTimeout:       core.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   core.HTTPTLSHandshakeTimeout,
		ResponseHeaderTimeout: core.HTTPResponseHeaderTimeout,
		RequestTimeout:        core.HTTPRequestTimeout,
	}
}

// Default returns the standard run configuration, minus the credential.
func Default() Config {
	return Config{
		BaseURL:   core.DefaultAPIBaseURL,
		BaseModel: core.DefaultBaseModel,
		Suffix:    core.DefaultSuffix,
		Hyperparameters: core.Hyperparameters{
			NEpochs: core.Int(core.DefaultNEpochs),
		},
		PollInterval:       core.DefaultPollInterval,
		TestPrompt:         core.DefaultTestPrompt,
		Temperature:        core.DefaultTemperature,
		StatsFile:          core.StatsFilePath,
		HTTPClientSettings: DefaultHTTPClientSettings(),
	}
}

// JobSpec is the optional YAML job specification.
type JobSpec struct {
	Job       JobSpecJob       `yaml:"job"`
	Inference JobSpecInference `yaml:"inference"`
}

// JobSpecJob is the job section of a JobSpec.
type JobSpecJob struct {
	TrainingFile     string                 `yaml:"training_file"`
	TrainingFilePath string                 `yaml:"training_file_path"`
	ValidationFile   string                 `yaml:"validation_file"`
	Model            string                 `yaml:"model"`
	Suffix           string                 `yaml:"suffix"`
	Seed             *int                   `yaml:"seed"`
	Hyperparameters  JobSpecHyperparameters `yaml:"hyperparameters"`
	PollInterval     string                 `yaml:"poll_interval"`
}

// JobSpecHyperparameters accepts numbers or "auto" for each value.
type JobSpecHyperparameters struct {
	NEpochs                string `yaml:"n_epochs"`
	BatchSize              string `yaml:"batch_size"`
	LearningRateMultiplier string `yaml:"learning_rate_multiplier"`
}

// JobSpecInference is the test inference section of a JobSpec.
type JobSpecInference struct {
	Prompt       string   `yaml:"prompt"`
	SystemPrompt string   `yaml:"system_prompt"`
	Temperature  *float64 `yaml:"temperature"`
}

// ParseJobSpec parses a YAML job specification.
func ParseJobSpec(data []byte) (*JobSpec, error) {
	var spec JobSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &spec, nil
}

// LoadJobSpecFile reads and parses a YAML job specification file.
func LoadJobSpecFile(path string) (*JobSpec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseJobSpec(data)
}

// ApplySpec overlays non-empty spec values onto the config.
func (c *Config) ApplySpec(spec *JobSpec) error {
	if spec == nil {
		return nil
	}
	job := spec.Job
	if job.TrainingFile != "" {
		c.TrainingFileID = job.TrainingFile
	}
	if job.TrainingFilePath != "" {
		c.TrainingFilePath = job.TrainingFilePath
	}
	if job.ValidationFile != "" {
		c.ValidationFileID = job.ValidationFile
	}
	if job.Model != "" {
		c.BaseModel = job.Model
	}
	if job.Suffix != "" {
		c.Suffix = job.Suffix
	}
	if job.Seed != nil {
		seed := *job.Seed
		c.Seed = &seed
	}
	if job.PollInterval != "" {
		d, err := time.ParseDuration(job.PollInterval)
		if err != nil {
			return core.ErrInvalidConfig("job.poll_interval", err.Error())
		}
		c.PollInterval = d
	}

	hp := job.Hyperparameters
	for _, field := range []struct {
		name    string
		raw     string
		integer bool
		target  **core.AutoNumber
	}{
		{"job.hyperparameters.n_epochs", hp.NEpochs, true, &c.Hyperparameters.NEpochs},
		{"job.hyperparameters.batch_size", hp.BatchSize, true, &c.Hyperparameters.BatchSize},
		{"job.hyperparameters.learning_rate_multiplier", hp.LearningRateMultiplier, false, &c.Hyperparameters.LearningRateMultiplier},
	} {
		if field.raw == "" {
			continue
		}
		value, err := ParseAutoNumber(field.raw)
		if err != nil {
			return core.ErrInvalidConfig(field.name, err.Error())
		}
		if field.integer && !value.Auto && value.Value != math.Trunc(value.Value) {
			return core.ErrInvalidConfig(field.name, fmt.Sprintf("must be an integer or %q, got %s", core.HyperparameterAutoLiteral, field.raw))
		}
		*field.target = value
	}

	inf := spec.Inference
	if inf.Prompt != "" {
		c.TestPrompt = inf.Prompt
	}
	if inf.SystemPrompt != "" {
		c.SystemPrompt = inf.SystemPrompt
	}
	if inf.Temperature != nil {
		c.Temperature = *inf.Temperature
	}
	return nil
}

// ParseAutoNumber parses "auto" or a number.
func ParseAutoNumber(raw string) (*core.AutoNumber, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, core.HyperparameterAutoLiteral) {
		return core.Auto(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("expected a number or %q, got %q", core.HyperparameterAutoLiteral, raw)
	}
	return core.Float(v), nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() error {
	c.APIKey = util.GetEnvWithDefault("OPENAI_API_KEY", c.APIKey)
	c.BaseURL = strings.TrimRight(util.GetEnvWithDefault("OPENAI_BASE_URL", c.BaseURL), "/")
	c.Organization = util.GetEnvWithDefault("OPENAI_ORG_ID", c.Organization)
	c.Project = util.GetEnvWithDefault("OPENAI_PROJECT_ID", c.Project)

	c.TrainingFileID = util.GetEnvWithDefault("FINETUNE_TRAINING_FILE_ID", c.TrainingFileID)
	c.TrainingFilePath = util.GetEnvWithDefault("FINETUNE_TRAINING_FILE_PATH", c.TrainingFilePath)
	c.ValidationFileID = util.GetEnvWithDefault("FINETUNE_VALIDATION_FILE_ID", c.ValidationFileID)
	c.BaseModel = util.GetEnvWithDefault("FINETUNE_BASE_MODEL", c.BaseModel)
	c.Suffix = util.GetEnvWithDefault("FINETUNE_SUFFIX", c.Suffix)
	c.TestPrompt = util.GetEnvWithDefault("FINETUNE_TEST_PROMPT", c.TestPrompt)
	c.SystemPrompt = util.GetEnvWithDefault("FINETUNE_SYSTEM_PROMPT", c.SystemPrompt)
	c.RedisURL = util.GetEnvWithDefault("REDIS_URL", c.RedisURL)
	c.StatsFile = util.GetEnvWithDefault("FINETUNE_STATS_FILE", c.StatsFile)

	if epochs, ok, err := util.LookupEnvInt("FINETUNE_N_EPOCHS"); err != nil {
		return core.ErrInvalidConfig("FINETUNE_N_EPOCHS", err.Error())
	} else if ok {
		c.Hyperparameters.NEpochs = core.Int(epochs)
	}

	if seed, ok, err := util.LookupEnvInt("FINETUNE_SEED"); err != nil {
		return core.ErrInvalidConfig("FINETUNE_SEED", err.Error())
	} else if ok {
		c.Seed = &seed
	}

	if interval, ok, err := util.LookupEnvDuration("FINETUNE_POLL_INTERVAL"); err != nil {
		return core.ErrInvalidConfig("FINETUNE_POLL_INTERVAL", err.Error())
	} else if ok {
		c.PollInterval = interval
	}

	if temperature, ok, err := util.LookupEnvFloat("FINETUNE_TEMPERATURE"); err != nil {
		return core.ErrInvalidConfig("FINETUNE_TEMPERATURE", err.Error())
	} else if ok {
		c.Temperature = temperature
	}

	return nil
}

// Validate checks the config before any network call is made.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return core.ErrInvalidConfig("OPENAI_API_KEY", "must be set")
	}
	if c.BaseURL == "" {
		return core.ErrInvalidConfig("OPENAI_BASE_URL", "must not be empty")
	}
	if c.TrainingFileID == "" && c.TrainingFilePath == "" {
		return core.ErrInvalidConfig("FINETUNE_TRAINING_FILE_ID", "a training file ID or path is required")
	}
	if c.BaseModel == "" {
		return core.ErrInvalidConfig("FINETUNE_BASE_MODEL", "must not be empty")
	}
	if c.PollInterval <= 0 {
		return core.ErrInvalidConfig("FINETUNE_POLL_INTERVAL", "must be positive")
	}
	if n := c.Hyperparameters.NEpochs; n != nil && !n.Auto && n.Value < 1 {
		return core.ErrInvalidConfig("FINETUNE_N_EPOCHS", "must be at least 1")
	}
	if math.IsNaN(c.Temperature) || c.Temperature < core.MinTemperature || c.Temperature > core.MaxTemperature {
		return core.ErrInvalidConfig("FINETUNE_TEMPERATURE", fmt.Sprintf("must be within [%g, %g]", core.MinTemperature, core.MaxTemperature))
	}
	return nil
}

// Load builds the run configuration: defaults, then the optional YAML spec named by
// FINETUNE_SPEC_FILE, then environment variables.
func Load(logger core.Logger) (Config, error) {
	cfg := Default()

	if specPath := os.Getenv("FINETUNE_SPEC_FILE"); specPath != "" {
		spec, err := LoadJobSpecFile(specPath)
		if err != nil {
			return cfg, core.ErrConfigLoadFailed("job spec", err)
		}
		if err := cfg.ApplySpec(spec); err != nil {
			return cfg, err
		}
		logger.Info("Loaded job spec from %s", specPath)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	// The sample file ID only applies when no other training source was given.
	if cfg.TrainingFileID == "" && cfg.TrainingFilePath == "" {
		cfg.TrainingFileID = core.DefaultTrainingFileID
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	logger.Info("Using API %s with key %s", cfg.BaseURL, util.MaskSecret(cfg.APIKey))
	logger.Debug("Base model %s, suffix %q, poll interval %s", cfg.BaseModel, cfg.Suffix, cfg.PollInterval)
	return cfg, nil
}

// JobRequest builds the fine-tuning job creation payload. fileID overrides the
// configured training file ID when non-empty (used after an upload).
func (c *Config) JobRequest(fileID string) *core.FineTuningJobRequest {
	if fileID == "" {
		fileID = c.TrainingFileID
	}
	req := &core.FineTuningJobRequest{
		TrainingFile:   fileID,
		Model:          c.BaseModel,
		Suffix:         c.Suffix,
		ValidationFile: c.ValidationFileID,
		Seed:           c.Seed,
		Method: &core.Method{
			Type: core.MethodTypeSupervised,
			Supervised: &core.SupervisedMethod{
				Hyperparameters: c.Hyperparameters,
			},
		},
	}
	return req
}

// ChatRequest builds the single test inference request against model.
func (c *Config) ChatRequest(model string) *core.ChatCompletionRequest {
	messages := make([]core.ChatMessage, 0, 2)
	if c.SystemPrompt != "" {
		messages = append(messages, core.ChatMessage{Role: core.RoleSystem, Content: c.SystemPrompt})
	}
	messages = append(messages, core.ChatMessage{Role: core.RoleUser, Content: c.TestPrompt})

	temperature := c.Temperature
	return &core.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: &temperature,
	}
}
