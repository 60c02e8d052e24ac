package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/auth-probe-go/pkg/models"
)

// AuthProbeWorkflow runs one login-and-inspect probe as a sequence of
// activities against a single browser session.
func AuthProbeWorkflow(ctx workflow.Context, input models.ProbeInput) (models.ProbeResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting auth probe workflow", "runID", input.RunID, "target", input.Config.BaseURL)

	result := models.ProbeResult{
		RunID:       input.RunID,
		Status:      models.StatusRunning,
		StepResults: make([]models.StepResult, 0, len(models.ProbeSteps())),
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, "getProgress", func() (models.ProbeResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	startTime := workflow.Now(ctx)

	// A probe step drives a live, stateful browser session: replays are not
	// idempotent, so activities never retry.
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Launch the browser session
	var session ProbeSession
	err = workflow.ExecuteActivity(ctx, "InitializeProbeActivity", ProbeInitInput{
		RunID:  input.RunID,
		Config: input.Config,
	}).Get(ctx, &session)
	if err != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = "Failed to initialize browser: " + err.Error()
		return result, nil
	}

	defer func() {
		// Cleanup browser session
		_ = workflow.ExecuteActivity(ctx, "CloseProbeActivity", session.SessionID).Get(ctx, nil)
	}()

	// Execute the fixed probe sequence
	for _, step := range models.ProbeSteps() {
		logger.Info("Executing probe step", "step", step)

		var stepResult models.StepResult
		err := workflow.ExecuteActivity(ctx, "ExecuteProbeStepActivity", StepInput{
			SessionID: session.SessionID,
			Step:      step,
		}).Get(ctx, &stepResult)

		if err != nil {
			stepResult = models.StepResult{
				Step:         step,
				Status:       models.StatusFailed,
				ErrorMessage: err.Error(),
			}
		}
		result.StepResults = append(result.StepResults, stepResult)

		if stepResult.Status == models.StatusFailed {
			result.Status = models.StatusFailed
			result.ErrorMessage = "Step " + string(step) + " failed: " + stepResult.ErrorMessage
			break
		}
	}

	// Collect whatever the probe observed, even after a failed step; a partial
	// report is still the product of the run.
	var report models.ProbeReport
	err = workflow.ExecuteActivity(ctx, "CollectReportActivity", CollectInput{
		SessionID: session.SessionID,
		RunID:     input.RunID,
	}).Get(ctx, &report)
	if err != nil {
		logger.Warn("Failed to collect probe report", "error", err)
	} else {
		result.Report = &report
	}

	result.TotalDuration = workflow.Now(ctx).Sub(startTime).Milliseconds()

	if result.Status != models.StatusFailed {
		result.Status = models.StatusSuccess
	}

	// Persist the final status; best effort, the workflow result is canonical.
	_ = workflow.ExecuteActivity(ctx, "RecordRunStatusActivity", RunStatusInput{
		RunID:        input.RunID,
		Status:       result.Status,
		ErrorMessage: result.ErrorMessage,
	}).Get(ctx, nil)

	logger.Info("Probe workflow completed", "status", result.Status, "duration", result.TotalDuration)
	return result, nil
}

// ProbeSession holds browser session information
type ProbeSession struct {
	SessionID string `json:"session_id"`
}

// ProbeInitInput is the input for browser initialization
type ProbeInitInput struct {
	RunID  string             `json:"run_id"`
	Config models.ProbeConfig `json:"config"`
}

// StepInput is the input for executing one probe step
type StepInput struct {
	SessionID string          `json:"session_id"`
	Step      models.StepKind `json:"step"`
}

// CollectInput is the input for collecting the final report
type CollectInput struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
}

// RunStatusInput is the input for persisting the final run status
type RunStatusInput struct {
	RunID        string           `json:"run_id"`
	Status       models.RunStatus `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
}
