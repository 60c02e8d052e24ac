package probe

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/auth-probe-go/pkg/models"
)

func TestFirstMarker(t *testing.T) {
	markers := []string{"权限不足", "Admin permission required"}

	tests := []struct {
		name string
		html string
		want string
	}{
		{"chinese marker", `<div class="alert">权限不足，请联系管理员</div>`, "权限不足"},
		{"english marker", `<p>Admin permission required to view logs</p>`, "Admin permission required"},
		{"no marker", `<table><tr><td>log line</td></tr></table>`, ""},
		{"empty page", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstMarker(tt.html, markers))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab", truncate("abc", 2))
}

func TestEchoResponseFallsBackToStatusOnly(t *testing.T) {
	var buf bytes.Buffer
	p := New("test", models.DefaultProbeConfig(), &buf)

	p.echoResponse("http://localhost:3000/api/auth/logs", 403, []byte("<html>nope</html>"))
	assert.Equal(t, "[API Response] http://localhost:3000/api/auth/logs - Status: 403\n", buf.String())

	buf.Reset()
	p.echoResponse("http://localhost:3000/api/auth/login", 200, []byte(`{"token":"abc"}`))
	out := buf.String()
	assert.Contains(t, out, "Status: 200")
	assert.Contains(t, out, `"token": "abc"`)
}

func TestExecuteStepRejectsUnknownStep(t *testing.T) {
	p := New("test", models.DefaultProbeConfig(), nil)

	res := p.ExecuteStep(models.StepKind("teleport"))
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Contains(t, res.ErrorMessage, "unknown probe step")

	report := p.Report()
	require.Len(t, report.Steps, 1)
	assert.Equal(t, models.StatusFailed, report.Steps[0].Status)
	assert.False(t, report.CompletedAt.IsZero())
	assert.True(t, report.CompletedAt.Before(time.Now().Add(time.Second)))
}

func TestPrintSummaryListsExchangesAndConsole(t *testing.T) {
	var buf bytes.Buffer
	p := New("test", models.DefaultProbeConfig(), &buf)

	p.console.Append(models.ConsoleMessage{Type: "error", Text: "permission denied: admin:full required"})
	p.console.Append(models.ConsoleMessage{Type: "log", Text: "layout mounted"})
	p.network.Record("http://localhost:3000/api/auth/login", 200, []byte(`{"token":"abc"}`))
	p.network.Record("http://localhost:3000/api/auth/logs", 403, nil)

	p.PrintSummary()
	out := buf.String()

	assert.Contains(t, out, "STEP 7: Summary")
	assert.Contains(t, out, "- [error] permission denied: admin:full required")
	assert.NotContains(t, out, "layout mounted")
	assert.Contains(t, out, "- login: http://localhost:3000/api/auth/login (Status: 200)")
	assert.Contains(t, out, "- logs: http://localhost:3000/api/auth/logs (Status: 403)")
	assert.Contains(t, out, `"token": "abc"`)
}
