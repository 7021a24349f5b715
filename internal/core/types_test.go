package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		expected bool
	}{
		{JobStatusValidatingFiles, false},
		{JobStatusQueued, false},
		{JobStatusRunning, false},
		{JobStatusSucceeded, true},
		{JobStatusFailed, true},
		{JobStatusCanceled, true},
		{"cancelled", true},
		{"SUCCEEDED", true},
		{"paused", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("IsTerminal(%q) = %v, expected %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestJobStatus_Normalize(t *testing.T) {
	if got := JobStatus(" Cancelled ").Normalize(); got != JobStatusCanceled {
		t.Errorf("expected %q, got %q", JobStatusCanceled, got)
	}
	if got := JobStatus("running").Normalize(); got != JobStatusRunning {
		t.Errorf("expected %q, got %q", JobStatusRunning, got)
	}
}

func TestAutoNumber_Marshal(t *testing.T) {
	tests := []struct {
		name     string
		value    *AutoNumber
		expected string
	}{
		{"integer", Int(4), `{"n_epochs":4}`},
		{"float", Float(0.5), `{"n_epochs":0.5}`},
		{"auto", Auto(), `{"n_epochs":"auto"}`},
		{"omitted", nil, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := sonic.Marshal(Hyperparameters{NEpochs: tt.value})
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, string(data))
			}
		})
	}
}

func TestAutoNumber_Unmarshal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantAuto  bool
		wantValue float64
		wantError bool
	}{
		{"number", `3`, false, 3, false},
		{"float", `1.8`, false, 1.8, false},
		{"auto", `"auto"`, true, 0, false},
		{"numeric string", `"16"`, false, 16, false},
		{"garbage string", `"many"`, false, 0, true},
		{"object", `{"x":1}`, false, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n AutoNumber
			err := sonic.Unmarshal([]byte(tt.input), &n)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error for %s", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n.Auto != tt.wantAuto || n.Value != tt.wantValue {
				t.Errorf("got %+v", n)
			}
		})
	}
}

func TestFineTuningJob_DecodeAPIResponse(t *testing.T) {
	body := `{
		"object": "fine_tuning.job",
		"id": "ftjob-abc123",
		"model": "gpt-4o-mini-2024-07-18",
		"created_at": 1721764800,
		"finished_at": null,
		"fine_tuned_model": null,
		"organization_id": "org-123",
		"result_files": [],
		"status": "queued",
		"validation_file": null,
		"training_file": "file-abc123",
		"error": null,
		"method": {
			"type": "supervised",
			"supervised": {"hyperparameters": {"batch_size": "auto", "learning_rate_multiplier": "auto", "n_epochs": 4}}
		}
	}`

	var job FineTuningJob
	if err := sonic.Unmarshal([]byte(body), &job); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if job.ID != "ftjob-abc123" || job.Status != JobStatusQueued {
		t.Errorf("unexpected job: %+v", job)
	}
	if job.FineTunedModel != "" {
		t.Errorf("fine_tuned_model should be empty before success, got %q", job.FineTunedModel)
	}
	if job.HasError() {
		t.Error("null error should not count as an error")
	}
	hp := job.Method.Supervised.Hyperparameters
	if !hp.BatchSize.Auto || hp.NEpochs.Value != 4 {
		t.Errorf("unexpected hyperparameters: batch=%s epochs=%s", hp.BatchSize, hp.NEpochs)
	}
}

func TestFineTuningJobRequest_Encode(t *testing.T) {
	req := FineTuningJobRequest{
		TrainingFile: DefaultTrainingFileID,
		Model:        DefaultBaseModel,
		Suffix:       DefaultSuffix,
		Method: &Method{
			Type: MethodTypeSupervised,
			Supervised: &SupervisedMethod{
				Hyperparameters: Hyperparameters{NEpochs: Int(DefaultNEpochs)},
			},
		},
	}
	data, err := sonic.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`"training_file":"file-LKymkdQVjywvhXMCuskyrM"`,
		`"suffix":"MyChatbot"`,
		`"method":{"type":"supervised","supervised":{"hyperparameters":{"n_epochs":4}}}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded request %s missing %s", out, want)
		}
	}
	if strings.Contains(out, "validation_file") {
		t.Errorf("empty validation_file should be omitted: %s", out)
	}
}

func TestChatCompletionResponse_FirstContent(t *testing.T) {
	var nilResp *ChatCompletionResponse
	if nilResp.FirstContent() != "" {
		t.Error("nil response should yield empty content")
	}
	resp := &ChatCompletionResponse{Choices: []ChatCompletionChoice{
		{Message: ChatMessage{Role: RoleAssistant, Content: "Atishay is an engineer."}},
	}}
	if got := resp.FirstContent(); got != "Atishay is an engineer." {
		t.Errorf("unexpected content %q", got)
	}
}

func TestAppError(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrAPIRequestFailed(OpRetrieveJob, cause)

	if !errors.Is(err, cause) {
		t.Error("AppError should unwrap to its cause")
	}
	if !HasCode(err, ErrCodeAPIRequestFailed) {
		t.Error("HasCode should match API_REQUEST_FAILED")
	}
	if !strings.Contains(err.Error(), "[API_REQUEST_FAILED] retrieve_job failed: connection refused") {
		t.Errorf("unexpected message %q", err.Error())
	}

	plain := ErrInvalidConfig("OPENAI_API_KEY", "must be set")
	if plain.Error() != "[INVALID_CONFIG] Invalid configuration for OPENAI_API_KEY: must be set" {
		t.Errorf("unexpected message %q", plain.Error())
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 401, Code: "invalid_api_key", Message: "Incorrect API key provided"}
	if err.Error() != "api error (status 401, code invalid_api_key): Incorrect API key provided" {
		t.Errorf("unexpected message %q", err.Error())
	}
	bare := &APIError{StatusCode: 502, Body: "bad gateway"}
	if bare.Error() != "api error (status 502): bad gateway" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}
