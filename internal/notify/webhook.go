package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

// Webhook posts adaptive cards to an incoming-webhook URL. The card layout
// mirrors what channel clients render: a tinted title container, the message
// body, then a two-column fact list.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *Webhook) Publish(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(adaptiveCard(n))
	if err != nil {
		return errors.Wrap(err, "encode card")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "deliver webhook")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook rejected: %s", resp.Status)
	}
	return nil
}

func cardStyle(s model.Severity) string {
	switch s {
	case model.SeveritySuccess:
		return "good"
	case model.SeverityError:
		return "attention"
	case model.SeverityWarning:
		return "warning"
	default:
		return "accent"
	}
}

func adaptiveCard(n model.Notification) map[string]any {
	body := []map[string]any{
		{
			"type":  "Container",
			"style": cardStyle(n.Severity),
			"bleed": true,
			"items": []map[string]any{{
				"type":   "TextBlock",
				"text":   n.Title,
				"weight": "Bolder",
				"size":   "Medium",
				"wrap":   true,
			}},
		},
		{
			"type": "TextBlock",
			"text": n.Message,
			"wrap": true,
		},
	}
	for _, f := range n.Facts {
		body = append(body, map[string]any{
			"type": "ColumnSet",
			"columns": []map[string]any{
				{
					"type":  "Column",
					"width": "auto",
					"items": []map[string]any{{
						"type":   "TextBlock",
						"text":   f.Label,
						"weight": "Bolder",
						"wrap":   true,
					}},
				},
				{
					"type":  "Column",
					"width": "stretch",
					"items": []map[string]any{{
						"type": "TextBlock",
						"text": f.Value,
						"wrap": true,
					}},
				},
			},
		})
	}
	return map[string]any{
		"type": "message",
		"attachments": []map[string]any{{
			"contentType": "application/vnd.microsoft.card.adaptive",
			"content": map[string]any{
				"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
				"type":    "AdaptiveCard",
				"version": "1.4",
				"body":    body,
			},
		}},
	}
}
