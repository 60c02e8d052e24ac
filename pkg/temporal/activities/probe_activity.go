package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"dev/bravebird/auth-probe-go/pkg/database"
	"dev/bravebird/auth-probe-go/pkg/models"
	"dev/bravebird/auth-probe-go/pkg/probe"
	"dev/bravebird/auth-probe-go/pkg/temporal/workflows"
)

// ProbePool manages live browser probe sessions
type ProbePool struct {
	sessions map[string]*ProbeSessionData
	mu       sync.RWMutex
}

// ProbeSessionData holds data for one probe session
type ProbeSessionData struct {
	Prober    *probe.Prober
	CreatedAt time.Time
}

var probePool = &ProbePool{
	sessions: make(map[string]*ProbeSessionData),
}

// Activities holds activity implementations
type Activities struct {
	DB            *database.DB
	ScreenshotDir string
}

// NewActivities creates new activities
func NewActivities(db *database.DB, screenshotDir string) *Activities {
	return &Activities{
		DB:            db,
		ScreenshotDir: screenshotDir,
	}
}

// InitializeProbeActivity launches a browser session for one probe run
func (a *Activities) InitializeProbeActivity(ctx context.Context, input workflows.ProbeInitInput) (workflows.ProbeSession, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Initializing probe session", "runID", input.RunID, "target", input.Config.BaseURL, "headless", input.Config.Headless)

	cfg := input.Config

	// Screenshots go into a per-run subdirectory so the API can serve them.
	cfg.ScreenshotDir = filepath.Join(a.ScreenshotDir, input.RunID)

	// The transcript goes to the worker log; the structured report carries
	// the same information back to the caller.
	prober := probe.New(input.RunID, cfg, os.Stdout)
	if err := prober.Start(); err != nil {
		return workflows.ProbeSession{}, fmt.Errorf("failed to start probe: %w", err)
	}

	sessionID := uuid.New().String()
	probePool.mu.Lock()
	probePool.sessions[sessionID] = &ProbeSessionData{
		Prober:    prober,
		CreatedAt: time.Now(),
	}
	probePool.mu.Unlock()

	logger.Info("Probe session created", "sessionID", sessionID)

	return workflows.ProbeSession{SessionID: sessionID}, nil
}

// CloseProbeActivity closes a probe session
func (a *Activities) CloseProbeActivity(ctx context.Context, sessionID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Closing probe session", "sessionID", sessionID)

	probePool.mu.Lock()
	defer probePool.mu.Unlock()

	session, ok := probePool.sessions[sessionID]
	if !ok {
		return nil // Already closed
	}

	if err := session.Prober.Close(); err != nil {
		logger.Warn("Failed to close browser", "error", err)
	}

	delete(probePool.sessions, sessionID)
	return nil
}

// ExecuteProbeStepActivity executes one probe step against a live session.
// Step failures are reported in the result, not as activity errors, so the
// workflow decides whether to continue.
func (a *Activities) ExecuteProbeStepActivity(ctx context.Context, input workflows.StepInput) (models.StepResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Executing probe step", "step", input.Step, "sessionID", input.SessionID)

	prober, err := a.getProber(input.SessionID)
	if err != nil {
		return models.StepResult{}, err
	}

	activity.RecordHeartbeat(ctx, fmt.Sprintf("Running step %s", input.Step))

	result := prober.ExecuteStep(input.Step)
	if result.Status == models.StatusFailed {
		logger.Warn("Probe step failed", "step", input.Step, "error", result.ErrorMessage)
	}

	return result, nil
}

// CollectReportActivity prints the probe summary, finalizes the report and
// persists it.
func (a *Activities) CollectReportActivity(ctx context.Context, input workflows.CollectInput) (models.ProbeReport, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Collecting probe report", "runID", input.RunID, "sessionID", input.SessionID)

	prober, err := a.getProber(input.SessionID)
	if err != nil {
		return models.ProbeReport{}, err
	}

	prober.PrintSummary()
	report := prober.Report()

	if a.DB != nil {
		if err := a.DB.SaveProbeReport(ctx, &report); err != nil {
			logger.Error("Failed to persist probe report", "runID", input.RunID, "error", err)
		}
	}

	return report, nil
}

// RecordRunStatusActivity persists the final run status
func (a *Activities) RecordRunStatusActivity(ctx context.Context, input workflows.RunStatusInput) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.UpdateProbeRunStatus(ctx, input.RunID, input.Status, input.ErrorMessage)
}

func (a *Activities) getProber(sessionID string) (*probe.Prober, error) {
	probePool.mu.RLock()
	session, ok := probePool.sessions[sessionID]
	probePool.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("probe session not found: %s", sessionID)
	}
	return session.Prober, nil
}
