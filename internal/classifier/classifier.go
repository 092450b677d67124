// Package classifier is the classifier client (C4): given a message
// text and recent chat context, it returns one of the four labels
// {REQUEST, CLARIFICATION, SPAM, GRATITUDE} with a confidence score.
//
// The engine treats the classifier as an opaque HTTP collaborator; this
// implementation talks to an OpenAI-compatible chat-completions
// endpoint in JSON mode, the same way the teacher's ai/core/llm
// package talks to its configured LLM provider, constrained to the
// four-label schema via a JSON-mode system prompt.
package classifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/chatsla/sentinel/internal/slaerr"
	"github.com/chatsla/sentinel/internal/store"
)

// defaultTimeout is the §5 classifier call timeout.
const defaultTimeout = 10 * time.Second

// Result is the classifier's verdict for one message.
type Result struct {
	Classification store.Classification
	Confidence     float64
	Model          string
	Reasoning      string
}

// Client classifies client messages via an OpenAI-compatible API.
type Client struct {
	oa    *openai.Client
	model string
}

// Config configures the classifier client. AuthMode selects between a
// static API key and an OAuth2 client-credentials flow (§2 domain
// stack: "an alternate mode").
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	AuthMode string // "apikey" | "oauth2"

	OAuth2ClientID     string
	OAuth2ClientSecret string
	OAuth2TokenURL     string
}

func New(cfg Config) *Client {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	if cfg.AuthMode == "oauth2" {
		ccCfg := clientcredentials.Config{
			ClientID:     cfg.OAuth2ClientID,
			ClientSecret: cfg.OAuth2ClientSecret,
			TokenURL:     cfg.OAuth2TokenURL,
		}
		oaCfg.HTTPClient = ccCfg.Client(context.Background())
	} else {
		oaCfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{oa: openai.NewClientWithConfig(oaCfg), model: cfg.Model}
}

const systemPrompt = `You are a message triage classifier for a client-support chat. Classify the
user's message into exactly one label:
- REQUEST: an actionable client question or task needing a reply.
- CLARIFICATION: a follow-up or minor clarifying remark, already effectively answered.
- SPAM: unrelated or promotional content.
- GRATITUDE: a thank-you or acknowledgement needing no further reply.

Respond with JSON only: {"classification": "...", "confidence": 0.0-1.0, "reasoning": "..."}`

// contextMessage is one prior message supplied for disambiguation.
type contextMessage struct {
	Role string
	Text string
}

type wireResult struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

var validLabels = map[string]store.Classification{
	"REQUEST":       store.ClassificationRequest,
	"CLARIFICATION": store.ClassificationClarification,
	"SPAM":          store.ClassificationSpam,
	"GRATITUDE":     store.ClassificationGratitude,
}

// Classify calls the classifier for a single message. Errors are
// surfaced typed so the ingress pipeline can drop the message per
// spec.md §4.4/§4.10.
func (c *Client) Classify(ctx context.Context, text string, context_ []contextMessage) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, m := range context_ {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})

	resp, err := c.oa.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		slog.Warn("classifier: request failed", "error", err)
		return nil, &slaerr.ClassifierError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &slaerr.ClassifierError{Err: errEmptyResponse}
	}

	var wr wireResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &wr); err != nil {
		slog.Warn("classifier: malformed JSON response", "error", err, "raw", resp.Choices[0].Message.Content)
		return nil, &slaerr.ClassifierError{Err: err}
	}
	label, ok := validLabels[wr.Classification]
	if !ok {
		slog.Warn("classifier: unknown label", "label", wr.Classification)
		return nil, &slaerr.ClassifierError{Err: errUnknownLabel}
	}

	return &Result{
		Classification: label,
		Confidence:     wr.Confidence,
		Model:          resp.Model,
		Reasoning:      wr.Reasoning,
	}, nil
}

// NewContextMessage constructs a context entry for a prior chat message.
func NewContextMessage(role, text string) contextMessage {
	return contextMessage{Role: role, Text: text}
}

var (
	errEmptyResponse = classifierErr("empty response from classifier")
	errUnknownLabel  = classifierErr("unknown classification label")
)

type classifierErr string

func (e classifierErr) Error() string { return string(e) }
