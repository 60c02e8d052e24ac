// Package capture holds the append-only recorders fed by browser events while
// a probe runs. Event callbacks fire on the page's event goroutine, so the
// recorders are mutex-guarded; readers only run after the probe sequence has
// finished its waits.
package capture

import (
	"encoding/json"
	"strings"
	"sync"

	"dev/bravebird/auth-probe-go/pkg/models"
)

// ==================== Console ====================

// ConsoleLog records console messages in observation order.
type ConsoleLog struct {
	mu       sync.Mutex
	messages []models.ConsoleMessage
}

// Append records one console message.
func (l *ConsoleLog) Append(msg models.ConsoleMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// Messages returns a copy of everything recorded so far.
func (l *ConsoleLog) Messages() []models.ConsoleMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ConsoleMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Filtered returns messages whose text contains any keyword, case-insensitive.
func (l *ConsoleLog) Filtered(keywords []string) []models.ConsoleMessage {
	var out []models.ConsoleMessage
	for _, msg := range l.Messages() {
		text := strings.ToLower(msg.Text)
		for _, kw := range keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}

// ==================== Network ====================

// URL substring filters, matching what the frontend actually calls.
const (
	apiPathFragment   = "/api/"
	v1PathFragment    = "/v1/"
	loginPathFragment = "/auth/login"
	logsPathFragment  = "/auth/logs"
)

// MatchesAPIFilter reports whether a URL belongs to the application API and is
// worth echoing to the transcript.
func MatchesAPIFilter(url string) bool {
	return strings.Contains(url, apiPathFragment) || strings.Contains(url, v1PathFragment)
}

// Classify maps a response to the exchange type the probe stores. Login
// responses are only interesting when they succeeded; logs responses are
// stored regardless of status since a 403 is exactly what the probe is after.
func Classify(url string, status int) (models.ExchangeType, bool) {
	switch {
	case strings.Contains(url, loginPathFragment) && status == 200:
		return models.ExchangeLogin, true
	case strings.Contains(url, logsPathFragment):
		return models.ExchangeLogs, true
	}
	return "", false
}

// ExchangeLog records classified API exchanges in observation order.
type ExchangeLog struct {
	mu        sync.Mutex
	exchanges []models.APIExchange
}

// Record classifies a response and stores it when it matches the login or
// logs filter. The body is stored only when it parses as a JSON object.
// Returns the stored exchange and whether anything was recorded.
func (l *ExchangeLog) Record(url string, status int, body []byte) (models.APIExchange, bool) {
	typ, ok := Classify(url, status)
	if !ok {
		return models.APIExchange{}, false
	}

	ex := models.APIExchange{
		Type:   typ,
		URL:    url,
		Status: status,
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		ex.Body = parsed
	}

	l.mu.Lock()
	l.exchanges = append(l.exchanges, ex)
	l.mu.Unlock()

	return ex, true
}

// Exchanges returns a copy of everything recorded so far.
func (l *ExchangeLog) Exchanges() []models.APIExchange {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.APIExchange, len(l.exchanges))
	copy(out, l.exchanges)
	return out
}
