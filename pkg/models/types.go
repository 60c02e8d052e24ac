package models

import (
	"time"
)

// ==================== Probe Configuration ====================

// ProbeConfig describes the target application and the fixed constants the
// probe checks against.
type ProbeConfig struct {
	BaseURL     string `json:"base_url"`
	LoginPath   string `json:"login_path"`
	LandingPath string `json:"landing_path"`
	LogsPath    string `json:"logs_path"`

	Username string `json:"username"`
	Password string `json:"password"`

	// localStorage keys the frontend uses for auth state
	TokenStorageKey string `json:"token_storage_key"`
	UserStorageKey  string `json:"user_storage_key"`

	// RequiredScope is the authorization tag that gates the logs page.
	RequiredScope string `json:"required_scope"`

	// DeniedMarkers are page-text fragments that indicate a permission error.
	DeniedMarkers []string `json:"denied_markers"`

	// ConsoleKeywords filter the console transcript in the summary.
	ConsoleKeywords []string `json:"console_keywords"`

	SelectorTimeout time.Duration `json:"selector_timeout"`
	RedirectTimeout time.Duration `json:"redirect_timeout"`

	ScreenshotDir string `json:"screenshot_dir"`
	Headless      bool   `json:"headless"`
}

// DefaultProbeConfig returns the configuration matching the local test stack.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		BaseURL:         "http://localhost:3000",
		LoginPath:       "/login",
		LandingPath:     "/inbox",
		LogsPath:        "/settings/logs",
		Username:        "wudao",
		Password:        "test123",
		TokenStorageKey: "superinbox_auth_token",
		UserStorageKey:  "superinbox_user",
		RequiredScope:   "admin:full",
		DeniedMarkers:   []string{"权限不足", "Admin permission required"},
		ConsoleKeywords: []string{"auth", "permission", "scope", "role", "admin"},
		SelectorTimeout: 5 * time.Second,
		RedirectTimeout: 5 * time.Second,
		ScreenshotDir:   "/tmp",
		Headless:        false,
	}
}

// ==================== Capture Types ====================

// ConsoleMessage is one console API call observed on the page.
type ConsoleMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Location string `json:"location"`
}

// ExchangeType classifies a recorded API exchange.
type ExchangeType string

const (
	ExchangeLogin ExchangeType = "login"
	ExchangeLogs  ExchangeType = "logs"
)

// APIExchange is a response that matched one of the capture filters.
type APIExchange struct {
	Type   ExchangeType   `json:"type"`
	URL    string         `json:"url"`
	Status int            `json:"status"`
	Body   map[string]any `json:"body,omitempty"`
}

// ==================== Probe Steps ====================

// StepKind names one step of the probe procedure. Steps always run in the
// order listed by ProbeSteps.
type StepKind string

const (
	StepOpenLogin       StepKind = "open_login"
	StepFillCredentials StepKind = "fill_credentials"
	StepSubmitLogin     StepKind = "submit_login"
	StepInspectToken    StepKind = "inspect_token"
	StepOpenLogsPage    StepKind = "open_logs_page"
	StepVerifyAccess    StepKind = "verify_access"
)

// ProbeSteps returns the fixed step sequence.
func ProbeSteps() []StepKind {
	return []StepKind{
		StepOpenLogin,
		StepFillCredentials,
		StepSubmitLogin,
		StepInspectToken,
		StepOpenLogsPage,
		StepVerifyAccess,
	}
}

// RunStatus represents the status of a probe run or a single step.
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusCanceled RunStatus = "canceled"
)

// StepResult is the outcome of executing one probe step.
type StepResult struct {
	Step           StepKind  `json:"step"`
	Status         RunStatus `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
	Duration       int64     `json:"duration_ms"`
}

// ==================== Probe Report ====================

// TokenSummary records what the probe found in localStorage.
type TokenSummary struct {
	Present          bool           `json:"present"`
	Payload          map[string]any `json:"payload,omitempty"`
	HasScopes        bool           `json:"has_scopes"`
	Scopes           []string       `json:"scopes,omitempty"`
	HasRequiredScope bool           `json:"has_required_scope"`
	UserJSON         string         `json:"user_json,omitempty"`
}

// ProbeReport is the full diagnostic output of one probe run.
type ProbeReport struct {
	RunID       string       `json:"run_id"`
	TargetURL   string       `json:"target_url"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Steps       []StepResult `json:"steps"`

	// Login verdicts
	LoginRedirected bool   `json:"login_redirected"`
	FinalURL        string `json:"final_url"`

	Token TokenSummary `json:"token"`

	// Logs page verdicts
	PermissionDenied bool   `json:"permission_denied"`
	DeniedMarker     string `json:"denied_marker,omitempty"`
	AlertText        string `json:"alert_text,omitempty"`
	TableRendered    bool   `json:"table_rendered"`

	Console     []ConsoleMessage `json:"console"`
	Exchanges   []APIExchange    `json:"exchanges"`
	Screenshots []string         `json:"screenshots"`
}

// ==================== Run Records ====================

// ProbeRun is a stored probe execution.
type ProbeRun struct {
	ID                 string     `json:"id" db:"id"`
	TargetURL          string     `json:"target_url" db:"target_url"`
	TemporalRunID      string     `json:"temporal_run_id" db:"temporal_run_id"`
	TemporalWorkflowID string     `json:"temporal_workflow_id" db:"temporal_workflow_id"`
	Status             RunStatus  `json:"status" db:"status"`
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`

	// Computed field, loaded from probe_reports
	Report *ProbeReport `json:"report,omitempty"`
}

// ProbeInput is the workflow input for an orchestrated probe run.
type ProbeInput struct {
	RunID  string      `json:"run_id"`
	Config ProbeConfig `json:"config"`
}

// ProbeResult is the workflow result.
type ProbeResult struct {
	RunID         string       `json:"run_id"`
	Status        RunStatus    `json:"status"`
	StepResults   []StepResult `json:"step_results"`
	Report        *ProbeReport `json:"report,omitempty"`
	TotalDuration int64        `json:"total_duration_ms"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

// ==================== API Request/Response Types ====================

// ExecuteRequest is a request to start a probe run.
type ExecuteRequest struct {
	TargetURL string `json:"target_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Headless  bool   `json:"headless"`
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
