package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/m3rciful/intakebot/convo"
	"github.com/m3rciful/intakebot/core/logger"
)

// ErrUnavailable reports that the model could not produce a reply.
var ErrUnavailable = errors.New("llm: model unavailable")

const (
	// DefaultModel is used when the configuration names no model.
	DefaultModel = openai.GPT3Dot5Turbo
	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 30 * time.Second
	// DefaultWindow is the maximum number of transcript turns sent to the model.
	DefaultWindow = 32
	// DefaultPrompt is sent when the transcript carries no user content to react to.
	DefaultPrompt = "Generate the next relevant question."
)

// OpenAIAPI is the slice of the OpenAI client the completer needs.
type OpenAIAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes the completion client.
type Config struct {
	Model   string
	Timeout time.Duration
	Window  int
}

func (c *Config) normalize() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
}

// Client produces the next assistant reply from a conversation transcript.
type Client struct {
	api OpenAIAPI
	cfg Config
}

// New builds a Client around an existing API handle.
func New(api OpenAIAPI, cfg Config) *Client {
	cfg.normalize()
	return &Client{api: api, cfg: cfg}
}

// NewFromToken builds a Client with the default OpenAI transport.
func NewFromToken(token string, cfg Config) *Client {
	return New(openai.NewClient(token), cfg)
}

// Complete asks the model for the next reply given the transcript so far.
// The transcript is windowed before sending; the stored copy is never cut.
func (c *Client) Complete(ctx context.Context, transcript convo.Transcript) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	msgs := c.buildMessages(transcript)

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: msgs,
	})
	if err != nil {
		logger.LLM.LogAttrs(ctx, slog.LevelError, "completion failed",
			slog.String("event", "complete"),
			slog.String("model", c.cfg.Model),
			slog.Int("window", len(msgs)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choice list", ErrUnavailable)
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}

	logger.LLM.LogAttrs(ctx, slog.LevelDebug, "completion ok",
		slog.String("event", "complete"),
		slog.String("status", "ok"),
		slog.String("model", c.cfg.Model),
		slog.Int("turns", len(transcript)),
		slog.Int("window", len(msgs)),
		slog.Duration("duration", logger.Took(start)),
	)
	return reply, nil
}

// buildMessages maps the transcript into chat messages, keeping the leading
// system turn and the most recent turns within the window.
func (c *Client) buildMessages(transcript convo.Transcript) []openai.ChatCompletionMessage {
	windowed := window(transcript, c.cfg.Window)

	msgs := make([]openai.ChatCompletionMessage, 0, len(windowed)+1)
	for _, turn := range windowed {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    apiRole(turn.Role),
			Content: turn.Content,
		})
	}
	if transcript.CountRole(convo.RoleUser) == 0 {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: DefaultPrompt,
		})
	}
	return msgs
}

// window keeps the first system turn plus the newest turns up to limit.
func window(transcript convo.Transcript, limit int) convo.Transcript {
	if len(transcript) <= limit {
		return transcript
	}
	out := make(convo.Transcript, 0, limit)
	rest := transcript
	if transcript[0].Role == convo.RoleSystem {
		out = append(out, transcript[0])
		rest = transcript[1:]
		limit--
	}
	return append(out, rest[len(rest)-limit:]...)
}

func apiRole(r convo.Role) string {
	switch r {
	case convo.RoleSystem:
		return openai.ChatMessageRoleSystem
	case convo.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
