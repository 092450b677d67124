package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatsla/sentinel/internal/slaerr"
	"github.com/chatsla/sentinel/internal/store"
)

// fakeChatCompletionServer stands in for the OpenAI-compatible endpoint,
// returning the canned JSON-mode content for every request.
func fakeChatCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
					"finish_reason": "stop",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestClassifySuccess(t *testing.T) {
	srv := fakeChatCompletionServer(t, `{"classification":"REQUEST","confidence":0.92,"reasoning":"asks for an invoice"}`)
	defer srv.Close()

	c := New(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	res, err := c.Classify(context.Background(), "can you send the invoice?", nil)
	require.NoError(t, err)
	require.Equal(t, store.ClassificationRequest, res.Classification)
	require.InDelta(t, 0.92, res.Confidence, 0.001)
}

func TestClassifyWithContextMessages(t *testing.T) {
	srv := fakeChatCompletionServer(t, `{"classification":"GRATITUDE","confidence":0.5,"reasoning":"thanks"}`)
	defer srv.Close()

	c := New(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	res, err := c.Classify(context.Background(), "thanks a lot!", []contextMessage{
		NewContextMessage("user", "when will this be fixed?"),
		NewContextMessage("assistant", "tomorrow"),
	})
	require.NoError(t, err)
	require.Equal(t, store.ClassificationGratitude, res.Classification)
}

func TestClassifyMalformedJSONIsTypedError(t *testing.T) {
	srv := fakeChatCompletionServer(t, `not json`)
	defer srv.Close()

	c := New(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	_, err := c.Classify(context.Background(), "hello", nil)
	var ce *slaerr.ClassifierError
	require.ErrorAs(t, err, &ce)
}

func TestClassifyUnknownLabelIsTypedError(t *testing.T) {
	srv := fakeChatCompletionServer(t, `{"classification":"UNKNOWN","confidence":0.1,"reasoning":""}`)
	defer srv.Close()

	c := New(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	_, err := c.Classify(context.Background(), "???", nil)
	var ce *slaerr.ClassifierError
	require.ErrorAs(t, err, &ce)
}
