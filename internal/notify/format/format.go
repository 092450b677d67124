// Package format renders escalation alerts for outbound delivery: a
// Markdown template is expanded with the alert's fields, converted to
// HTML with goldmark, and sanitized with bluemonday before it is
// handed to a Telegram parseMode=HTML send.
package format

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// AlertData is the set of fields a template may reference.
type AlertData struct {
	ChatTitle      string
	RequestID      string
	AlertType      string
	Level          int
	MinutesElapsed int
	RecipientTier  string
	AckToken       string
}

// DefaultTemplate is used when no admin-configured override exists.
const DefaultTemplate = `**SLA {{.AlertType}} — level {{.Level}}**

Chat: {{.ChatTitle}}
Request: ` + "`{{.RequestID}}`" + `
Elapsed: {{.MinutesElapsed}} min
Recipients: {{.RecipientTier}}

Ack: ` + "`{{.AckToken}}`"

var (
	tmpl       = template.Must(template.New("alert").Parse(DefaultTemplate))
	htmlPolicy = bluemonday.UGCPolicy()
)

// RenderAlertHTML renders the default alert template to Markdown, then
// to sanitized HTML suitable for a Telegram parseMode=HTML send.
func RenderAlertHTML(a AlertData) string {
	md := renderTemplate(a)

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return htmlPolicy.Sanitize(md)
	}
	return htmlPolicy.Sanitize(buf.String())
}

// RenderAlertPlain renders the alert as a short plain-text summary,
// used for channels (PagerDuty, webhook) that want a single line
// rather than formatted Markdown.
func RenderAlertPlain(a AlertData) string {
	return fmt.Sprintf("[%s L%d] %s: request %s breached after %d min (%s)",
		strings.ToUpper(a.AlertType), a.Level, a.ChatTitle, a.RequestID, a.MinutesElapsed, a.RecipientTier)
}

// RenderTemplate expands a custom admin-configured Markdown template
// against the alert's fields; on a template error it falls back to the
// default template so a malformed override never blocks delivery.
func RenderTemplate(custom string, a AlertData) string {
	t, err := template.New("custom-alert").Parse(custom)
	if err != nil {
		return renderTemplate(a)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, a); err != nil {
		return renderTemplate(a)
	}
	return buf.String()
}

func renderTemplate(a AlertData) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, a)
	return buf.String()
}
