// Package probe drives a real browser through the login flow and the
// permission-gated logs page, collecting console output, API exchanges and
// screenshots along the way.
package probe

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"dev/bravebird/auth-probe-go/pkg/capture"
	"dev/bravebird/auth-probe-go/pkg/models"
	"dev/bravebird/auth-probe-go/pkg/token"
)

// Selector fallback chains. The frontend markup is not under our control, so
// each lookup tries the most specific selector first.
const (
	usernameSelector = `input[type="text"], input[type="email"], input[name="username"]`
	passwordSelector = `input[type="password"]`
	submitSelector   = `button[type="submit"]`
	submitTextMatch  = `登录|Login`
	alertSelector    = `[role="alert"], .alert, [data-testid*="permission"]`
	tableSelector    = `table, [role="table"]`
)

// Prober owns one browser session and executes the probe steps against it.
type Prober struct {
	cfg models.ProbeConfig
	out io.Writer

	browser *rod.Browser
	page    *rod.Page

	console *capture.ConsoleLog
	network *capture.ExchangeLog

	report         models.ProbeReport
	lastScreenshot string
}

// New creates a Prober. Transcript output goes to out; pass nil to discard it.
func New(runID string, cfg models.ProbeConfig, out io.Writer) *Prober {
	if out == nil {
		out = io.Discard
	}
	return &Prober{
		cfg:     cfg,
		out:     out,
		console: &capture.ConsoleLog{},
		network: &capture.ExchangeLog{},
		report: models.ProbeReport{
			RunID:     runID,
			TargetURL: cfg.BaseURL,
		},
	}
}

// Start launches the browser, opens a blank page and attaches the console and
// network listeners.
func (p *Prober) Start() error {
	l := launcher.New()

	// Use CHROME_BIN if set (Docker environment)
	if chromeBin := os.Getenv("CHROME_BIN"); chromeBin != "" {
		l = l.Bin(chromeBin)
	}

	l = l.Headless(p.cfg.Headless)
	l = l.Set("no-sandbox")
	l = l.Set("disable-gpu")
	l = l.Set("disable-dev-shm-usage")

	url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return fmt.Errorf("failed to create page: %w", err)
	}

	p.browser = browser
	p.page = page
	p.report.StartedAt = time.Now()

	p.attachListeners()
	return nil
}

// Close terminates the browser session.
func (p *Prober) Close() error {
	if p.browser == nil {
		return nil
	}
	return p.browser.Close()
}

// attachListeners subscribes to console and network events. Rod delivers the
// callbacks on the page's event loop until the page closes.
func (p *Prober) attachListeners() {
	go p.page.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			msg := models.ConsoleMessage{
				Type:     string(e.Type),
				Text:     consoleText(p.page, e),
				Location: frameLocation(e.StackTrace),
			}
			p.console.Append(msg)
			fmt.Fprintf(p.out, "[Console %s] %s\n", msg.Type, msg.Text)
		},
		func(e *proto.NetworkRequestWillBeSent) {
			if capture.MatchesAPIFilter(e.Request.URL) {
				fmt.Fprintf(p.out, "[API Request] %s %s\n", e.Request.Method, e.Request.URL)
			}
		},
		func(e *proto.NetworkResponseReceived) {
			if !capture.MatchesAPIFilter(e.Response.URL) {
				return
			}
			body := p.responseBody(e.RequestID)
			p.echoResponse(e.Response.URL, e.Response.Status, body)
			p.network.Record(e.Response.URL, e.Response.Status, body)
		},
	)()
}

// Run executes the full probe sequence in order, then prints the summary.
// The redirect wait inside submit_login is tolerated; any other step failure
// stops the run.
func (p *Prober) Run(ctx context.Context) error {
	for _, step := range models.ProbeSteps() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if res := p.ExecuteStep(step); res.Status == models.StatusFailed {
			p.PrintSummary()
			return fmt.Errorf("step %s failed: %s", step, res.ErrorMessage)
		}
	}
	p.PrintSummary()
	return nil
}

// ExecuteStep runs one named step and records its result.
func (p *Prober) ExecuteStep(step models.StepKind) models.StepResult {
	start := time.Now()
	p.lastScreenshot = ""

	var err error
	switch step {
	case models.StepOpenLogin:
		err = p.OpenLogin()
	case models.StepFillCredentials:
		err = p.FillCredentials()
	case models.StepSubmitLogin:
		err = p.SubmitLogin()
	case models.StepInspectToken:
		err = p.InspectToken()
	case models.StepOpenLogsPage:
		err = p.OpenLogsPage()
	case models.StepVerifyAccess:
		err = p.VerifyAccess()
	default:
		err = fmt.Errorf("unknown probe step: %s", step)
	}

	res := models.StepResult{
		Step:           step,
		Status:         models.StatusSuccess,
		ScreenshotPath: p.lastScreenshot,
		Duration:       time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Status = models.StatusFailed
		res.ErrorMessage = err.Error()
	}

	p.report.Steps = append(p.report.Steps, res)
	return res
}

// OpenLogin navigates to the login page.
func (p *Prober) OpenLogin() error {
	p.banner("STEP 1: Navigate to login page")

	if err := p.page.Navigate(p.cfg.BaseURL + p.cfg.LoginPath); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	p.settle()
	p.screenshot("01_login_page.png")
	return nil
}

// FillCredentials locates the username and password inputs and fills them.
func (p *Prober) FillCredentials() error {
	p.banner("STEP 2: Fill login form")

	username, err := p.element(usernameSelector)
	if err != nil {
		return fmt.Errorf("username input not found: %w", err)
	}
	password, err := p.element(passwordSelector)
	if err != nil {
		return fmt.Errorf("password input not found: %w", err)
	}

	fmt.Fprintln(p.out, "Filling in credentials...")
	if err := username.Input(p.cfg.Username); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	if err := password.Input(p.cfg.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}

	p.screenshot("02_form_filled.png")
	return nil
}

// SubmitLogin clicks the submit control and waits for the authenticated
// landing route. A missed redirect is reported but not treated as an error;
// the probe's job is to observe what happens next.
func (p *Prober) SubmitLogin() error {
	p.banner("STEP 3: Submit login form")

	button, err := p.element(submitSelector)
	if err != nil {
		button, err = p.elementR("button", submitTextMatch)
		if err != nil {
			return fmt.Errorf("login button not found: %w", err)
		}
	}
	if err := button.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click login button: %w", err)
	}

	waitErr := p.page.Timeout(p.cfg.RedirectTimeout).Wait(rod.Eval(
		`(path) => window.location.pathname.endsWith(path)`, p.cfg.LandingPath))
	if waitErr == nil {
		p.report.LoginRedirected = true
		fmt.Fprintf(p.out, "Login successful! Redirected to %s.\n", p.cfg.LandingPath)
	} else {
		fmt.Fprintf(p.out, "Did not redirect to %s, checking current URL...\n", p.cfg.LandingPath)
		fmt.Fprintf(p.out, "Current URL: %s\n", p.currentURL())
	}

	p.settle()
	p.report.FinalURL = p.currentURL()
	p.screenshot("03_after_login.png")
	return nil
}

// InspectToken reads the auth token and user blob out of localStorage and
// decodes the token payload.
func (p *Prober) InspectToken() error {
	p.banner("STEP 4: Check localStorage for auth data")

	obj, err := p.page.Eval(
		`(tokenKey, userKey) => ({
			token: localStorage.getItem(tokenKey),
			user: localStorage.getItem(userKey),
		})`,
		p.cfg.TokenStorageKey, p.cfg.UserStorageKey,
	)
	if err != nil {
		return fmt.Errorf("failed to read localStorage: %w", err)
	}

	tok := obj.Value.Get("token").Str()
	user := obj.Value.Get("user").Str()

	if tok != "" {
		fmt.Fprintf(p.out, "Token in localStorage: %s...\n", truncate(tok, 50))
	} else {
		fmt.Fprintln(p.out, "Token in localStorage: None")
	}
	fmt.Fprintf(p.out, "User in localStorage: %s\n", user)

	p.report.Token.UserJSON = user
	if tok == "" {
		return nil
	}
	p.report.Token.Present = true

	claims := token.DecodePayload(tok)
	p.report.Token.Payload = claims

	fmt.Fprintln(p.out, "\nJWT Token Payload:")
	fmt.Fprintln(p.out, prettyJSON(claims))

	if claims == nil {
		return nil
	}

	if _, ok := claims["scopes"]; ok {
		scopes := token.Scopes(claims)
		p.report.Token.HasScopes = true
		p.report.Token.Scopes = scopes
		fmt.Fprintf(p.out, "\n✅ Token contains scopes: %v\n", scopes)

		if token.HasScope(claims, p.cfg.RequiredScope) {
			p.report.Token.HasRequiredScope = true
			fmt.Fprintf(p.out, "✅ Token has '%s' scope!\n", p.cfg.RequiredScope)
		} else {
			fmt.Fprintf(p.out, "❌ Token does NOT have '%s' scope!\n", p.cfg.RequiredScope)
		}
	} else {
		fmt.Fprintln(p.out, "\n❌ Token does NOT contain 'scopes' field!")
	}
	return nil
}

// OpenLogsPage navigates to the protected logs route.
func (p *Prober) OpenLogsPage() error {
	p.banner("STEP 5: Navigate to logs page")

	if err := p.page.Navigate(p.cfg.BaseURL + p.cfg.LogsPath); err != nil {
		return fmt.Errorf("failed to open logs page: %w", err)
	}
	p.settle()
	p.screenshot("04_logs_page.png")
	return nil
}

// VerifyAccess scans the rendered page for permission-denied markers and for
// the presence of the logs table.
func (p *Prober) VerifyAccess() error {
	p.banner("STEP 6: Check page content and console logs")

	html, err := p.page.HTML()
	if err != nil {
		return fmt.Errorf("failed to read page content: %w", err)
	}

	if marker := firstMarker(html, p.cfg.DeniedMarkers); marker != "" {
		p.report.PermissionDenied = true
		p.report.DeniedMarker = marker
		fmt.Fprintln(p.out, "❌ PERMISSION DENIED message found on page!")
		fmt.Fprintln(p.out, "Looking for permission error details...")

		if alert, err := p.page.Timeout(time.Second).Element(alertSelector); err == nil {
			if text, err := alert.CancelTimeout().Text(); err == nil {
				p.report.AlertText = text
				fmt.Fprintf(p.out, "Alert text: %s\n", text)
			}
		}
	} else {
		fmt.Fprintln(p.out, "✅ No permission denied message found")
	}

	if has, _, err := p.page.Has(tableSelector); err == nil && has {
		p.report.TableRendered = true
		fmt.Fprintln(p.out, "✅ Table is rendered on the page")
	} else {
		fmt.Fprintln(p.out, "❌ Table NOT found on page")
	}
	return nil
}

// Report finalizes and returns the accumulated probe report.
func (p *Prober) Report() models.ProbeReport {
	p.report.CompletedAt = time.Now()
	p.report.Console = p.console.Messages()
	p.report.Exchanges = p.network.Exchanges()
	return p.report
}

// ==================== page helpers ====================

// element waits up to the selector timeout for a match.
func (p *Prober) element(selector string) (*rod.Element, error) {
	el, err := p.page.Timeout(p.cfg.SelectorTimeout).Element(selector)
	if err != nil {
		return nil, err
	}
	return el.CancelTimeout(), nil
}

// elementR waits for an element whose text matches the regex.
func (p *Prober) elementR(selector, regex string) (*rod.Element, error) {
	el, err := p.page.Timeout(p.cfg.SelectorTimeout).ElementR(selector, regex)
	if err != nil {
		return nil, err
	}
	return el.CancelTimeout(), nil
}

// settle waits for the load event and then for the DOM to stop changing,
// which is as close to "network idle" as the probe needs. Failures here are
// not fatal; the next lookup has its own wait.
func (p *Prober) settle() {
	if err := p.page.WaitLoad(); err != nil {
		return
	}
	_ = p.page.Timeout(10 * time.Second).WaitDOMStable(500*time.Millisecond, 0)
}

func (p *Prober) currentURL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// screenshot captures a full-page PNG into the configured directory.
func (p *Prober) screenshot(filename string) {
	if err := os.MkdirAll(p.cfg.ScreenshotDir, 0755); err != nil {
		fmt.Fprintf(p.out, "[screenshot] failed to create dir: %v\n", err)
		return
	}

	data, err := p.page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		fmt.Fprintf(p.out, "[screenshot] capture failed: %v\n", err)
		return
	}

	path := filepath.Join(p.cfg.ScreenshotDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(p.out, "[screenshot] save failed: %v\n", err)
		return
	}

	p.lastScreenshot = path
	p.report.Screenshots = append(p.report.Screenshots, path)
}

// responseBody fetches a response body over CDP. Bodies that are already gone
// (evicted or still streaming) come back nil and the transcript falls back to
// status only.
func (p *Prober) responseBody(id proto.NetworkRequestID) []byte {
	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(p.page)
	if err != nil {
		return nil
	}
	if res.Base64Encoded {
		raw, err := base64.StdEncoding.DecodeString(res.Body)
		if err != nil {
			return nil
		}
		return raw
	}
	return []byte(res.Body)
}

// ==================== event helpers ====================

// consoleText renders the console call arguments the way devtools would.
func consoleText(page *rod.Page, e *proto.RuntimeConsoleAPICalled) string {
	var text string
	err := rod.Try(func() {
		text = page.MustObjectsToJSON(e.Args).Join(" ")
	})
	if err != nil {
		// Remote objects can vanish before serialization; fall back to the
		// preview values.
		parts := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			parts = append(parts, arg.Value.String())
		}
		text = strings.Join(parts, " ")
	}
	return text
}

func frameLocation(st *proto.RuntimeStackTrace) string {
	if st == nil || len(st.CallFrames) == 0 {
		return ""
	}
	frame := st.CallFrames[0]
	return fmt.Sprintf("%s:%d", frame.URL, frame.LineNumber)
}
