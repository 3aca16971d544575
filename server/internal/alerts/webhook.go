package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// deliver posts a to every webhook whose minimum severity it meets.
// Failures are logged; the engine never retries.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		if !wh.Wants(a.Severity) {
			continue
		}
		url := wh.URL()
		if url == "" {
			slog.Debug("alerts: webhook url unset, skipping", "type", wh.Type, "url_env", wh.URLEnv)
			continue
		}

		var payload interface{}
		switch wh.Type {
		case "slack":
			payload = slackPayload(a)
		case "teams":
			payload = teamsPayload(a)
		case "http":
			payload = map[string]interface{}{"alert": a}
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		body, err := json.Marshal(payload)
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"subject", a.Subject,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type,
			"rule", a.RuleName,
			"state", a.State,
		)
	}
}

func slackPayload(a *Alert) map[string]interface{} {
	prefix := severityLabel(a.Severity)
	if a.State == StateResolved {
		prefix = "[RESOLVED]"
	}
	return map[string]interface{}{
		"text": fmt.Sprintf("*%s* %s", prefix, a.Message),
		"attachments": []map[string]interface{}{{
			"color": "#" + severityColor(a),
			"fields": []map[string]interface{}{
				{"title": "Guide", "value": a.Subject, "short": true},
				{"title": "Value", "value": strconv.FormatFloat(a.Value, 'f', 2, 64), "short": true},
				{"title": "Report", "value": a.ReportID, "short": false},
			},
		}},
	}
}

func teamsPayload(a *Alert) map[string]interface{} {
	title := fmt.Sprintf("GuideSense Alert: %s (%s)", a.RuleName, a.Subject)
	if a.State == StateResolved {
		title = fmt.Sprintf("GuideSense Resolved: %s (%s)", a.RuleName, a.Subject)
	}
	return map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a),
		"summary":    a.RuleName,
		"title":      title,
		"text":       a.Message,
		"sections": []map[string]interface{}{{
			"facts": []map[string]string{
				{"name": "Severity", "value": a.Severity},
				{"name": "Value", "value": strconv.FormatFloat(a.Value, 'f', 2, 64)},
				{"name": "Report", "value": a.ReportID},
				{"name": "Fired", "value": a.FiredAt.UTC().Format("2006-01-02 15:04:05 MST")},
			},
		}},
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

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(a *Alert) string {
	if a.State == StateResolved {
		return "2EB67D"
	}
	switch a.Severity {
	case "critical":
		return "E01E5A"
	case "warning":
		return "ECB22E"
	default:
		return "36C5F0"
	}
}
