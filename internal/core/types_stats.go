package core

import "time"

// RunStats holds aggregated API call statistics and recent run summaries.
type RunStats struct {
	TotalCalls      int64        `json:"total_calls"`
	SuccessfulCalls int64        `json:"successful_calls"`
	FailedCalls     int64        `json:"failed_calls"`
	TotalLatency    int64        `json:"total_latency"`
	LastCallTime    time.Time    `json:"last_call_time"`
	CallHistory     []CallRecord `json:"call_history"`
	Runs            []RunRecord  `json:"runs"`
}

// CallRecord is a single API call's metadata.
type CallRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Success   bool      `json:"success"`
	Latency   int64     `json:"latency"`
	RequestID string    `json:"request_id,omitempty"`
}

// RunRecord summarizes one finished run. It is a report, not resumable state.
type RunRecord struct {
	StartedAt      time.Time `json:"started_at"`
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	FineTunedModel string    `json:"fine_tuned_model,omitempty"`
	Polls          int       `json:"polls"`
	ElapsedMillis  int64     `json:"elapsed_ms"`
}

// RunResult is what a completed run produced.
type RunResult struct {
	JobID          string
	Status         JobStatus
	FineTunedModel string
	Reply          string
	Polls          int
	Inferred       bool
	StartedAt      time.Time
	Elapsed        time.Duration
	Job            *FineTuningJob
}

// Record converts the result to its persisted summary.
func (r *RunResult) Record() RunRecord {
	return RunRecord{
		StartedAt:      r.StartedAt,
		JobID:          r.JobID,
		Status:         r.Status,
		FineTunedModel: r.FineTunedModel,
		Polls:          r.Polls,
		ElapsedMillis:  r.Elapsed.Milliseconds(),
	}
}

// OperationStats summarizes the calls made for one API operation.
type OperationStats struct {
	Calls      int64   `json:"calls"`
	Failures   int64   `json:"failures"`
	AvgLatency int64   `json:"avg_latency"`
	ErrorRate  float64 `json:"error_rate"`
}
