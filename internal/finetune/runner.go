// Package finetune drives one fine-tuning run: submit the job, poll it until it
// reaches a terminal status, then test the resulting model once.
package finetune

import (
	"context"
	"fmt"
	"io"
	"time"

	"finetuner/internal/config"
	"finetuner/internal/core"
)

// Runner executes a single sequential run against a FineTuningClient.
type Runner struct {
	client  core.FineTuningClient
	cfg     config.Config
	out     io.Writer
	logger  core.Logger
	metrics core.MetricsCollector

	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner that writes its console report to out.
func NewRunner(client core.FineTuningClient, cfg config.Config, out io.Writer, logger core.Logger, metrics core.MetricsCollector) *Runner {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = &core.NopLogger{}
	}
	if metrics == nil {
		metrics = &core.NopMetrics{}
	}
	return &Runner{
		client:    client,
		cfg:       cfg,
		out:       out,
		logger:    logger,
		metrics:   metrics,
		sleepFunc: contextSleep,
	}
}

// SetSleepFunc overrides the sleep function (for testing).
func (r *Runner) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Poll fetches the job status until it is terminal and returns the final job
// together with the number of fetches made. The first fetch is immediate; the
// configured interval is slept only between non-terminal observations. There is
// no retry and no timeout: a failed fetch or a cancelled ctx ends the loop with
// an error.
func (r *Runner) Poll(ctx context.Context, jobID string) (*core.FineTuningJob, int, error) {
	polls := 0
	for {
		job, err := r.client.RetrieveFineTuningJob(ctx, jobID)
		if err != nil {
			return nil, polls, fmt.Errorf("poll job %s: %w", jobID, err)
		}
		polls++

		status := job.Status.Normalize()
		r.printf("Job status: %s\n", status)
		r.logger.Debug("Job %s poll %d: %s", jobID, polls, status)

		if status.IsTerminal() {
			job.Status = status
			return job, polls, nil
		}

		if err := r.sleepFunc(ctx, r.cfg.PollInterval); err != nil {
			return job, polls, fmt.Errorf("poll job %s: %w", jobID, err)
		}
	}
}

// Run performs the whole run. A job that ends failed or canceled is reported on
// the console and is not an error; only call failures are.
func (r *Runner) Run(ctx context.Context) (*core.RunResult, error) {
	result := &core.RunResult{StartedAt: time.Now()}

	fileID, err := r.trainingFile(ctx)
	if err != nil {
		return result, err
	}

	job, err := r.client.CreateFineTuningJob(ctx, r.cfg.JobRequest(fileID))
	if err != nil {
		return result, fmt.Errorf("create fine-tuning job: %w", err)
	}
	result.JobID = job.ID
	result.Job = job
	result.Status = job.Status
	r.printf("Fine-tune job started: %s\n", job.ID)
	r.logger.Info("Submitted job %s (model %s, training file %s)", job.ID, r.cfg.BaseModel, fileID)

	defer func() {
		result.Elapsed = time.Since(result.StartedAt)
		r.metrics.RecordRun(result.Record())
	}()

	final, polls, err := r.Poll(ctx, job.ID)
	result.Polls = polls
	if final != nil {
		result.Job = final
		result.Status = final.Status
	}
	if err != nil {
		return result, err
	}

	if final.Status != core.JobStatusSucceeded {
		r.printf("Fine-tuning job did not succeed. Status: %s\n", final.Status)
		if final.HasError() {
			r.printf("Error: %s (%s)\n", final.Error.Message, final.Error.Code)
		}
		r.logger.Warn("Job %s finished with status %s", job.ID, final.Status)
		return result, nil
	}

	result.FineTunedModel = final.FineTunedModel
	r.printf("Fine-tuning succeeded! Model name: %s\n", final.FineTunedModel)

	reply, err := r.client.CreateChatCompletion(ctx, r.cfg.ChatRequest(final.FineTunedModel))
	result.Inferred = true
	if err != nil {
		return result, fmt.Errorf("test fine-tuned model: %w", err)
	}
	result.Reply = reply.FirstContent()
	r.printf("Response from fine-tuned model:\n%s\n", result.Reply)
	return result, nil
}

// trainingFile returns the file ID to train on, uploading the configured local
// file when no ID was given.
func (r *Runner) trainingFile(ctx context.Context) (string, error) {
	if r.cfg.TrainingFileID != "" || r.cfg.TrainingFilePath == "" {
		return r.cfg.TrainingFileID, nil
	}

	file, err := r.client.UploadFile(ctx, r.cfg.TrainingFilePath, core.FilePurposeFineTune)
	if err != nil {
		return "", err
	}
	r.printf("Uploaded training file: %s\n", file.ID)
	r.logger.Info("Uploaded %s as %s (%d bytes)", r.cfg.TrainingFilePath, file.ID, file.Bytes)
	return file.ID, nil
}
