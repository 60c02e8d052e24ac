package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/sdk/client"

	"dev/bravebird/auth-probe-go/pkg/database"
	"dev/bravebird/auth-probe-go/pkg/models"
)

const TaskQueue = "auth-probe"

// Handlers contains API handlers
type Handlers struct {
	db             *database.DB
	temporalClient client.Client
	screenshotDir  string
	upgrader       websocket.Upgrader
}

// NewHandlers creates new API handlers
func NewHandlers(db *database.DB, temporalClient client.Client, screenshotDir string) *Handlers {
	return &Handlers{
		db:             db,
		temporalClient: temporalClient,
		screenshotDir:  screenshotDir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ==================== Probe Handlers ====================

// ExecuteProbe starts a new probe run
func (h *Handlers) ExecuteProbe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg := models.DefaultProbeConfig()
	if req.TargetURL != "" {
		cfg.BaseURL = req.TargetURL
	}
	if req.Username != "" {
		cfg.Username = req.Username
	}
	if req.Password != "" {
		cfg.Password = req.Password
	}
	cfg.Headless = req.Headless

	runID := uuid.New().String()
	now := time.Now()

	run := &models.ProbeRun{
		ID:        runID,
		TargetURL: cfg.BaseURL,
		Status:    models.StatusPending,
		StartedAt: &now,
	}

	if h.db != nil {
		if err := h.db.CreateProbeRun(ctx, run); err != nil {
			http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("auth-probe-%s", runID),
		TaskQueue: TaskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, "AuthProbeWorkflow", models.ProbeInput{
		RunID:  runID,
		Config: cfg,
	})
	if err != nil {
		if h.db != nil {
			h.db.UpdateProbeRunStatus(ctx, runID, models.StatusFailed, err.Error())
		}
		http.Error(w, "Failed to start probe: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Record the Temporal IDs so the run can be cancelled later
	run.TemporalWorkflowID = we.GetID()
	run.TemporalRunID = we.GetRunID()
	run.Status = models.StatusRunning
	if h.db != nil {
		h.db.CreateProbeRun(ctx, run)
	}

	respondJSON(w, map[string]interface{}{
		"run_id":               runID,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               "running",
	})
}

// ListProbes lists recent probe runs
func (h *Handlers) ListProbes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	runs, err := h.db.ListProbeRuns(ctx, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, runs)
}

// GetProbe retrieves a probe run with its stored report
func (h *Handlers) GetProbe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.db.GetProbeRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	report, _ := h.db.GetProbeReport(ctx, id)
	run.Report = report

	respondJSON(w, run)
}

// CancelProbe cancels a running probe
func (h *Handlers) CancelProbe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.db.GetProbeRun(ctx, id)
	if err != nil || run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	if run.TemporalWorkflowID != "" {
		err = h.temporalClient.CancelWorkflow(ctx, run.TemporalWorkflowID, run.TemporalRunID)
		if err != nil {
			http.Error(w, "Failed to cancel probe: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	h.db.UpdateProbeRunStatus(ctx, id, models.StatusCanceled, "Cancelled by user")

	respondJSON(w, map[string]string{"status": "canceled"})
}

// StreamProbeUpdates streams probe progress via WebSocket
func (h *Handlers) StreamProbeUpdates(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()

	// Poll for updates
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastStatus := ""
	lastStepCount := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var status models.RunStatus
			var steps []models.StepResult

			// Query the live workflow first for real-time progress
			if h.temporalClient != nil {
				queryResp, err := h.temporalClient.QueryWorkflow(ctx, fmt.Sprintf("auth-probe-%s", runID), "", "getProgress")
				if err == nil {
					var result models.ProbeResult
					if queryResp.Get(&result) == nil {
						status = result.Status
						steps = result.StepResults
					}
				}
			}

			// Fall back to DB if the workflow query didn't work
			if status == "" && h.db != nil {
				run, err := h.db.GetProbeRun(ctx, runID)
				if err != nil || run == nil {
					continue
				}
				status = run.Status
			}

			// Send update if status or step progress changed
			if string(status) != lastStatus || len(steps) != lastStepCount {
				msg := models.WSMessage{
					Type: "probe_update",
					Payload: map[string]interface{}{
						"run_id": runID,
						"status": status,
						"steps":  steps,
					},
				}
				conn.WriteJSON(msg)

				lastStatus = string(status)
				lastStepCount = len(steps)

				// Close if completed
				if status == models.StatusSuccess || status == models.StatusFailed || status == models.StatusCanceled {
					return
				}
			}
		}
	}
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file from a run's directory
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["run_id"]
	filename := vars["filename"]

	// Security: Only allow files from the per-run screenshot directory
	filePath := filepath.Join(h.screenshotDir, filepath.Base(runID), filepath.Base(filename))

	// Check file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	// Serve the file
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
