package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/auth-probe-go/pkg/models"
)

func TestConsoleLogFiltered(t *testing.T) {
	log := &ConsoleLog{}
	log.Append(models.ConsoleMessage{Type: "log", Text: "Auth token refreshed"})
	log.Append(models.ConsoleMessage{Type: "error", Text: "PERMISSION denied for logs"})
	log.Append(models.ConsoleMessage{Type: "log", Text: "render complete"})
	log.Append(models.ConsoleMessage{Type: "warn", Text: "missing scope admin:full"})

	filtered := log.Filtered([]string{"auth", "permission", "scope", "role", "admin"})

	require.Len(t, filtered, 3)
	assert.Equal(t, "Auth token refreshed", filtered[0].Text)
	assert.Equal(t, "PERMISSION denied for logs", filtered[1].Text)
	assert.Equal(t, "missing scope admin:full", filtered[2].Text)
}

func TestMatchesAPIFilter(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://localhost:3000/api/messages", true},
		{"http://localhost:3000/v1/auth/login", true},
		{"http://localhost:3000/static/app.js", false},
		{"http://localhost:3000/login", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesAPIFilter(tt.url), tt.url)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		status   int
		wantType models.ExchangeType
		wantOK   bool
	}{
		{"successful login", "http://localhost:3000/api/auth/login", 200, models.ExchangeLogin, true},
		{"failed login is not recorded", "http://localhost:3000/api/auth/login", 401, "", false},
		{"logs ok", "http://localhost:3000/api/auth/logs", 200, models.ExchangeLogs, true},
		{"logs forbidden still recorded", "http://localhost:3000/api/auth/logs?page=1", 403, models.ExchangeLogs, true},
		{"unrelated endpoint", "http://localhost:3000/api/messages", 200, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, ok := Classify(tt.url, tt.status)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantType, typ)
		})
	}
}

func TestExchangeLogRecord(t *testing.T) {
	log := &ExchangeLog{}

	ex, ok := log.Record("http://localhost:3000/api/auth/login", 200, []byte(`{"token":"abc","user":{"name":"wudao"}}`))
	require.True(t, ok)
	assert.Equal(t, models.ExchangeLogin, ex.Type)
	assert.Equal(t, 200, ex.Status)
	assert.Equal(t, "abc", ex.Body["token"])

	// Non-JSON body falls back to status only.
	ex, ok = log.Record("http://localhost:3000/api/auth/logs", 403, []byte("<html>forbidden</html>"))
	require.True(t, ok)
	assert.Equal(t, models.ExchangeLogs, ex.Type)
	assert.Nil(t, ex.Body)

	// Unmatched responses leave the log untouched.
	_, ok = log.Record("http://localhost:3000/api/messages", 200, []byte(`{}`))
	assert.False(t, ok)

	exchanges := log.Exchanges()
	require.Len(t, exchanges, 2)
	assert.Equal(t, models.ExchangeLogin, exchanges[0].Type)
	assert.Equal(t, models.ExchangeLogs, exchanges[1].Type)
}
