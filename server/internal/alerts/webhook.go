package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// severityStyle is how a severity renders in chat targets.
type severityStyle struct {
	label string
	color string
}

var severityStyles = map[string]severityStyle{
	"critical": {"CRITICAL", "FF4F6A"},
	"warning":  {"WARNING", "FFAB40"},
	"info":     {"INFO", "00D4FF"},
}

func styleFor(severity string) severityStyle {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return severityStyles["info"]
}

// fact is one labelled line of alert detail shared by every chat format.
type fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// facts describes the report behind a. The measured value is only shown for
// numeric rules; for state rules the source state already carries it.
func facts(a *Alert) []fact {
	out := []fact{
		{"Source", a.SourceID},
		{"Rule", a.RuleName},
		{"Condition", a.Condition},
		{"Source state", a.SourceState},
	}
	if a.Field != "" && a.Field != "state" {
		out = append(out, fact{a.Field, strconv.FormatFloat(a.Value, 'f', -1, 64)})
	}
	return out
}

func headline(a *Alert) string {
	verb := "firing"
	if a.State == StateResolved {
		verb = "resolved"
	}
	return fmt.Sprintf("[%s] %s %s on %s", styleFor(a.Severity).label, a.RuleName, verb, a.SourceID)
}

// payloaders build the request body for each webhook type.
var payloaders = map[string]func(*Alert) any{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  httpPayload,
}

func slackPayload(a *Alert) any {
	fields := make([]map[string]any, 0, 5)
	for _, f := range facts(a) {
		fields = append(fields, map[string]any{"title": f.Name, "value": f.Value, "short": true})
	}
	return map[string]any{
		"text": headline(a),
		"attachments": []map[string]any{{
			"color":  "#" + styleFor(a.Severity).color,
			"text":   a.Message,
			"fields": fields,
		}},
	}
}

func teamsPayload(a *Alert) any {
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": styleFor(a.Severity).color,
		"summary":    headline(a),
		"title":      "bitdiag: " + headline(a),
		"sections": []map[string]any{{
			"text":  a.Message,
			"facts": facts(a),
		}},
	}
}

func httpPayload(a *Alert) any {
	return map[string]any{
		"event": "alert." + a.State,
		"alert": a,
	}
}

// deliver posts a to every configured webhook with a resolvable URL.
// Failures are logged; the caller never sees them.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		build, ok := payloaders[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		body, err := json.Marshal(build(a))
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"source", a.SourceID,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
