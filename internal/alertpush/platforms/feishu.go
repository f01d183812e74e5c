package platforms

import (
	"context"
	"strings"
)

type FeishuAdapter struct {
	client *HTTPClient
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client}
}

func (a *FeishuAdapter) Name() string { return "feishu" }

// Send posts an interactive card. A non-empty secret is sent as the
// X-Lark-Signature header.
func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	elements := []map[string]string{{
		"tag":  "markdown",
		"text": fallback(msg.Description, msg.Content),
	}}
	for _, f := range msg.Fields {
		elements = append(elements, map[string]string{
			"tag":  "markdown",
			"text": "**" + f.Name + "**: " + f.Value,
		})
	}
	if msg.Footer != "" {
		elements = append(elements, map[string]string{"tag": "markdown", "text": "_" + msg.Footer + "_"})
	}
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]string{"tag": "plain_text", "content": msg.Title},
				"template": cardTemplate(msg.Color),
			},
			"elements": elements,
		},
	}
	var headers map[string]string
	if s := strings.TrimSpace(secret); s != "" {
		headers = map[string]string{"X-Lark-Signature": s}
	}
	return a.client.PostJSON(ctx, endpoint, headers, payload)
}

// cardTemplate maps an embed color onto the closest card header template.
func cardTemplate(color int) string {
	switch color {
	case ColorCritical:
		return "red"
	case ColorWarn:
		return "orange"
	case ColorOK:
		return "green"
	default:
		return "blue"
	}
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
