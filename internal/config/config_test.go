package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"finetuner/internal/core"
)

var configEnvKeys = []string{
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_ORG_ID", "OPENAI_PROJECT_ID",
	"FINETUNE_TRAINING_FILE_ID", "FINETUNE_TRAINING_FILE_PATH", "FINETUNE_VALIDATION_FILE_ID",
	"FINETUNE_BASE_MODEL", "FINETUNE_SUFFIX", "FINETUNE_N_EPOCHS", "FINETUNE_SEED",
	"FINETUNE_POLL_INTERVAL", "FINETUNE_TEST_PROMPT", "FINETUNE_SYSTEM_PROMPT",
	"FINETUNE_TEMPERATURE", "FINETUNE_SPEC_FILE", "REDIS_URL", "FINETUNE_STATS_FILE",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func createSpecTempFile(t *testing.T, content string) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(filePath, []byte(content), core.FilePermissionReadWrite); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return filePath
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")

	cfg, err := Load(&core.NopLogger{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseURL != core.DefaultAPIBaseURL {
		t.Errorf("expected base URL %s, got %s", core.DefaultAPIBaseURL, cfg.BaseURL)
	}
	if cfg.TrainingFileID != core.DefaultTrainingFileID {
		t.Errorf("expected default training file, got %s", cfg.TrainingFileID)
	}
	if cfg.BaseModel != "gpt-4o-mini-2024-07-18" || cfg.Suffix != "MyChatbot" {
		t.Errorf("unexpected model/suffix: %s/%s", cfg.BaseModel, cfg.Suffix)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("expected 15s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.Hyperparameters.NEpochs == nil || cfg.Hyperparameters.NEpochs.Value != 4 {
		t.Errorf("expected 4 epochs, got %s", cfg.Hyperparameters.NEpochs)
	}
	if cfg.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %v", cfg.Temperature)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearConfigEnv(t)

	_, err := Load(&core.NopLogger{})
	if err == nil {
		t.Fatal("expected error without OPENAI_API_KEY")
	}
	if !core.HasCode(err, core.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1/")
	t.Setenv("FINETUNE_TRAINING_FILE_ID", "file-custom")
	t.Setenv("FINETUNE_N_EPOCHS", "2")
	t.Setenv("FINETUNE_POLL_INTERVAL", "500ms")
	t.Setenv("FINETUNE_TEMPERATURE", "0.7")
	t.Setenv("FINETUNE_SEED", "42")

	cfg, err := Load(&core.NopLogger{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("trailing slash should be trimmed, got %s", cfg.BaseURL)
	}
	if cfg.TrainingFileID != "file-custom" {
		t.Errorf("expected file-custom, got %s", cfg.TrainingFileID)
	}
	if cfg.Hyperparameters.NEpochs.Value != 2 {
		t.Errorf("expected 2 epochs, got %s", cfg.Hyperparameters.NEpochs)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %s", cfg.PollInterval)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("expected 0.7, got %v", cfg.Temperature)
	}
	if cfg.Seed == nil || *cfg.Seed != 42 {
		t.Errorf("expected seed 42, got %v", cfg.Seed)
	}
}

func TestLoad_TrainingPathSuppressesDefaultFileID(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")
	t.Setenv("FINETUNE_TRAINING_FILE_PATH", "data/train.jsonl")

	cfg, err := Load(&core.NopLogger{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TrainingFileID != "" {
		t.Errorf("default file ID should not apply when a path is set, got %s", cfg.TrainingFileID)
	}
	if cfg.TrainingFilePath != "data/train.jsonl" {
		t.Errorf("unexpected path %s", cfg.TrainingFilePath)
	}
}

func TestLoad_InvalidEnvValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"epochs not a number", "FINETUNE_N_EPOCHS", "four"},
		{"epochs zero", "FINETUNE_N_EPOCHS", "0"},
		{"interval garbage", "FINETUNE_POLL_INTERVAL", "often"},
		{"interval negative", "FINETUNE_POLL_INTERVAL", "-5s"},
		{"temperature too high", "FINETUNE_TEMPERATURE", "2.5"},
		{"temperature garbage", "FINETUNE_TEMPERATURE", "warm"},
		{"temperature NaN", "FINETUNE_TEMPERATURE", "NaN"},
		{"temperature infinite", "FINETUNE_TEMPERATURE", "+Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")
			t.Setenv(tt.key, tt.value)

			_, err := Load(&core.NopLogger{})
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
			if !core.HasCode(err, core.ErrCodeInvalidConfig) {
				t.Errorf("expected INVALID_CONFIG, got %v", err)
			}
		})
	}
}

func TestLoad_SpecFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")
	t.Setenv("FINETUNE_SPEC_FILE", createSpecTempFile(t, `
job:
  training_file: file-from-spec
  model: gpt-4.1-mini-2025-04-14
  suffix: portfolio
  seed: 7
  poll_interval: 30s
  hyperparameters:
    n_epochs: 3
    batch_size: auto
    learning_rate_multiplier: 1.8
inference:
  prompt: Who is Atishay?
  system_prompt: Answer questions about Atishay Jain professionally.
  temperature: 0.2
`))
	t.Setenv("FINETUNE_SUFFIX", "env-wins")

	cfg, err := Load(&core.NopLogger{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TrainingFileID != "file-from-spec" || cfg.BaseModel != "gpt-4.1-mini-2025-04-14" {
		t.Errorf("spec values not applied: %+v", cfg)
	}
	if cfg.Suffix != "env-wins" {
		t.Errorf("environment should override spec, got suffix %s", cfg.Suffix)
	}
	if cfg.Seed == nil || *cfg.Seed != 7 {
		t.Errorf("expected seed 7, got %v", cfg.Seed)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.PollInterval)
	}
	hp := cfg.Hyperparameters
	if hp.NEpochs.Value != 3 || !hp.BatchSize.Auto || hp.LearningRateMultiplier.Value != 1.8 {
		t.Errorf("unexpected hyperparameters %s/%s/%s", hp.NEpochs, hp.BatchSize, hp.LearningRateMultiplier)
	}
	if cfg.TestPrompt != "Who is Atishay?" || cfg.Temperature != 0.2 {
		t.Errorf("inference section not applied: %q %v", cfg.TestPrompt, cfg.Temperature)
	}
}

func TestLoad_SpecFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")
		t.Setenv("FINETUNE_SPEC_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := Load(&core.NopLogger{})
		if !core.HasCode(err, core.ErrCodeConfigLoadFailed) {
			t.Errorf("expected CONFIG_LOAD_FAILED, got %v", err)
		}
	})

	t.Run("bad hyperparameter", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")
		t.Setenv("FINETUNE_SPEC_FILE", createSpecTempFile(t, "job:\n  hyperparameters:\n    n_epochs: lots\n"))

		_, err := Load(&core.NopLogger{})
		if !core.HasCode(err, core.ErrCodeInvalidConfig) {
			t.Errorf("expected INVALID_CONFIG, got %v", err)
		}
	})

	t.Run("fractional epochs", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")
		t.Setenv("FINETUNE_SPEC_FILE", createSpecTempFile(t, "job:\n  hyperparameters:\n    n_epochs: 2.5\n"))

		_, err := Load(&core.NopLogger{})
		if !core.HasCode(err, core.ErrCodeInvalidConfig) {
			t.Errorf("expected INVALID_CONFIG, got %v", err)
		}
	})

	t.Run("fractional batch size", func(t *testing.T) {
		spec, err := ParseJobSpec([]byte("job:\n  hyperparameters:\n    batch_size: 0.5\n"))
		if err != nil {
			t.Fatalf("ParseJobSpec failed: %v", err)
		}
		cfg := Default()
		if err := cfg.ApplySpec(spec); !core.HasCode(err, core.ErrCodeInvalidConfig) {
			t.Errorf("expected INVALID_CONFIG, got %v", err)
		}
	})

	t.Run("NaN temperature", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk-test-key-123456")
		t.Setenv("FINETUNE_SPEC_FILE", createSpecTempFile(t, "inference:\n  temperature: .nan\n"))

		_, err := Load(&core.NopLogger{})
		if !core.HasCode(err, core.ErrCodeInvalidConfig) {
			t.Errorf("expected INVALID_CONFIG, got %v", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := ParseJobSpec([]byte("job: [unterminated")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestParseAutoNumber(t *testing.T) {
	tests := []struct {
		input     string
		expected  string
		wantError bool
	}{
		{"auto", "auto", false},
		{"AUTO", "auto", false},
		{"4", "4", false},
		{" 0.5 ", "0.5", false},
		{"many", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAutoNumber(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestJobRequest(t *testing.T) {
	cfg := Default()
	cfg.TrainingFileID = core.DefaultTrainingFileID

	req := cfg.JobRequest("")
	if req.TrainingFile != core.DefaultTrainingFileID {
		t.Errorf("expected configured file, got %s", req.TrainingFile)
	}
	if req.Method == nil || req.Method.Type != core.MethodTypeSupervised {
		t.Fatalf("expected supervised method, got %+v", req.Method)
	}
	if req.Method.Supervised.Hyperparameters.NEpochs.Value != 4 {
		t.Errorf("expected 4 epochs")
	}

	uploaded := cfg.JobRequest("file-uploaded")
	if uploaded.TrainingFile != "file-uploaded" {
		t.Errorf("uploaded file ID should win, got %s", uploaded.TrainingFile)
	}
}

func TestChatRequest(t *testing.T) {
	cfg := Default()

	req := cfg.ChatRequest("ft:gpt-4o-mini:org::abc")
	if req.Model != "ft:gpt-4o-mini:org::abc" {
		t.Errorf("unexpected model %s", req.Model)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != core.RoleUser || req.Messages[0].Content != core.DefaultTestPrompt {
		t.Errorf("unexpected messages %+v", req.Messages)
	}
	if req.Temperature == nil || *req.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1")
	}

	cfg.SystemPrompt = "Be brief."
	withSystem := cfg.ChatRequest("m")
	if len(withSystem.Messages) != 2 || withSystem.Messages[0].Role != core.RoleSystem {
		t.Errorf("system prompt should come first: %+v", withSystem.Messages)
	}
}

func TestDefaultHTTPClientSettings(t *testing.T) {
	settings := DefaultHTTPClientSettings()
	if settings.MaxIdleConns <= 0 {
		t.Error("MaxIdleConns should be positive")
	}
	if settings.RequestTimeout <= 0 {
		t.Error("RequestTimeout should be positive")
	}
}
