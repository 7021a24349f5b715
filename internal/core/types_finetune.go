package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// JobStatus is the lifecycle state of a fine-tuning job as reported by the API.
type JobStatus string

// Job status constants. The set is owned by the remote service.
const (
	JobStatusValidatingFiles JobStatus = "validating_files"
	JobStatusQueued          JobStatus = "queued"
	JobStatusRunning         JobStatus = "running"
	JobStatusSucceeded       JobStatus = "succeeded"
	JobStatusFailed          JobStatus = "failed"
	JobStatusCanceled        JobStatus = "canceled"
)

// jobStatusCancelledAlt is the British spelling the production API returns.
const jobStatusCancelledAlt JobStatus = "cancelled"

// Normalize lowercases the status and folds "cancelled" into JobStatusCanceled.
func (s JobStatus) Normalize() JobStatus {
	n := JobStatus(strings.ToLower(strings.TrimSpace(string(s))))
	if n == jobStatusCancelledAlt {
		return JobStatusCanceled
	}
	return n
}

// IsTerminal reports whether no further transitions are expected.
// Unknown statuses are non-terminal.
func (s JobStatus) IsTerminal() bool {
	switch s.Normalize() {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (s JobStatus) String() string {
	return string(s)
}

// AutoNumber is a hyperparameter that is either a number or the literal "auto".
type AutoNumber struct {
	Value float64
	Auto  bool
}

// Int returns an AutoNumber holding an integer value.
func Int(v int) *AutoNumber {
	return &AutoNumber{Value: float64(v)}
}

// Float returns an AutoNumber holding a float value.
func Float(v float64) *AutoNumber {
	return &AutoNumber{Value: v}
}

// Auto returns an AutoNumber that lets the service choose the value.
func Auto() *AutoNumber {
	return &AutoNumber{Auto: true}
}

// MarshalJSON encodes "auto" or the bare number.
func (n AutoNumber) MarshalJSON() ([]byte, error) {
	if n.Auto {
		return []byte(`"` + HyperparameterAutoLiteral + `"`), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a number, a numeric string or "auto".
func (n *AutoNumber) UnmarshalJSON(data []byte) error {
	var num float64
	if err := sonic.Unmarshal(data, &num); err == nil {
		*n = AutoNumber{Value: num}
		return nil
	}

	var str string
	if err := sonic.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid hyperparameter value %s", string(data))
	}
	if str == HyperparameterAutoLiteral {
		*n = AutoNumber{Auto: true}
		return nil
	}
	num, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("invalid hyperparameter value %q", str)
	}
	*n = AutoNumber{Value: num}
	return nil
}

// String renders the value the way the API would.
func (n *AutoNumber) String() string {
	if n == nil {
		return ""
	}
	if n.Auto {
		return HyperparameterAutoLiteral
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Hyperparameters holds training hyperparameters.
type Hyperparameters struct {
	NEpochs                *AutoNumber `json:"n_epochs,omitempty"`
	BatchSize              *AutoNumber `json:"batch_size,omitempty"`
	LearningRateMultiplier *AutoNumber `json:"learning_rate_multiplier,omitempty"`
}

// SupervisedMethod configures supervised fine-tuning.
type SupervisedMethod struct {
	Hyperparameters Hyperparameters `json:"hyperparameters"`
}

// Method selects the fine-tuning method and its settings.
type Method struct {
	Type       string            `json:"type"`
	Supervised *SupervisedMethod `json:"supervised,omitempty"`
}

// FineTuningJobRequest is the payload for creating a fine-tuning job.
type FineTuningJobRequest struct {
	TrainingFile   string  `json:"training_file"`
	Model          string  `json:"model"`
	Suffix         string  `json:"suffix,omitempty"`
	ValidationFile string  `json:"validation_file,omitempty"`
	Seed           *int    `json:"seed,omitempty"`
	Method         *Method `json:"method,omitempty"`
}

// JobError describes why a job failed.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// FineTuningJob is the remote job as returned by create and retrieve calls.
type FineTuningJob struct {
	ID              string    `json:"id"`
	Object          string    `json:"object"`
	Model           string    `json:"model"`
	Status          JobStatus `json:"status"`
	FineTunedModel  string    `json:"fine_tuned_model,omitempty"`
	TrainingFile    string    `json:"training_file"`
	ValidationFile  string    `json:"validation_file,omitempty"`
	OrganizationID  string    `json:"organization_id,omitempty"`
	ResultFiles     []string  `json:"result_files,omitempty"`
	CreatedAt       int64     `json:"created_at"`
	FinishedAt      *int64    `json:"finished_at,omitempty"`
	EstimatedFinish *int64    `json:"estimated_finish,omitempty"`
	TrainedTokens   *int64    `json:"trained_tokens,omitempty"`
	Seed            *int      `json:"seed,omitempty"`
	Suffix          string    `json:"suffix,omitempty"`
	Method          *Method   `json:"method,omitempty"`
	Error           *JobError `json:"error,omitempty"`
}

// HasError reports whether the job carries a populated error object.
func (j *FineTuningJob) HasError() bool {
	return j != nil && j.Error != nil && (j.Error.Code != "" || j.Error.Message != "")
}

// File is an uploaded file object.
type File struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
}
