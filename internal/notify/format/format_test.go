package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sample() AlertData {
	return AlertData{
		ChatTitle:      "Acme <Corp>",
		RequestID:      "req-1",
		AlertType:      "breach",
		Level:          2,
		MinutesElapsed: 45,
		RecipientTier:  "manager",
		AckToken:       "ack-abc",
	}
}

func TestRenderAlertHTMLEscapesAndBolds(t *testing.T) {
	out := RenderAlertHTML(sample())
	require.Contains(t, out, "<strong>")
	require.Contains(t, out, "req-1")
	require.NotContains(t, out, "<script>")
}

func TestRenderAlertPlainIsSingleLine(t *testing.T) {
	out := RenderAlertPlain(sample())
	require.False(t, strings.Contains(out, "\n"))
	require.Contains(t, out, "BREACH")
	require.Contains(t, out, "req-1")
}

func TestRenderTemplateFallsBackOnBadTemplate(t *testing.T) {
	out := RenderTemplate("{{.Nope.Broken", sample())
	require.Contains(t, out, "req-1")
}

func TestRenderTemplateCustom(t *testing.T) {
	out := RenderTemplate("Request {{.RequestID}} at level {{.Level}}", sample())
	require.Equal(t, "Request req-1 at level 2", out)
}
