package probe

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"dev/bravebird/auth-probe-go/pkg/models"
)

const bannerWidth = 80

// banner prints a step heading to the transcript.
func (p *Prober) banner(title string) {
	line := strings.Repeat("=", bannerWidth)
	fmt.Fprintf(p.out, "\n%s\n%s\n%s\n", line, title, line)
}

// echoResponse prints one captured API response to the transcript. Bodies
// that are not JSON fall back to a status-only line.
func (p *Prober) echoResponse(url string, status int, body []byte) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		fmt.Fprintf(p.out, "[API Response] %s - Status: %d\n", url, status)
		return
	}
	fmt.Fprintf(p.out, "[API Response] %s\n", url)
	fmt.Fprintf(p.out, "  Status: %d\n", status)
	fmt.Fprintf(p.out, "  Body: %s\n", truncate(prettyJSON(parsed), 500))
}

// PrintSummary prints the filtered console transcript, the API exchange
// summary and the screenshot paths.
func (p *Prober) PrintSummary() {
	p.banner("STEP 7: Summary")

	fmt.Fprintln(p.out, "\nConsole Logs (filtered for auth/permission):")
	for _, msg := range p.console.Filtered(p.cfg.ConsoleKeywords) {
		fmt.Fprintf(p.out, "  - [%s] %s\n", msg.Type, msg.Text)
	}

	fmt.Fprintln(p.out, "\nAPI Requests Summary:")
	for _, ex := range p.network.Exchanges() {
		fmt.Fprintf(p.out, "  - %s: %s (Status: %d)\n", ex.Type, ex.URL, ex.Status)
		if ex.Type == models.ExchangeLogin && ex.Status == 200 && ex.Body != nil {
			fmt.Fprintf(p.out, "    Response: %s\n", truncate(prettyJSON(ex.Body), 200))
		}
	}

	fmt.Fprintf(p.out, "\nScreenshots saved to %s:\n", p.cfg.ScreenshotDir)
	for _, path := range p.report.Screenshots {
		fmt.Fprintf(p.out, "  - %s\n", filepath.Base(path))
	}
}

// firstMarker returns the first denied marker found in the page HTML, or "".
func firstMarker(html string, markers []string) string {
	for _, m := range markers {
		if m != "" && strings.Contains(html, m) {
			return m
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
