package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/m3rciful/intakebot/convo"
)

type fakeAPI struct {
	reply string
	err   error
	last  openai.ChatCompletionRequest
	calls int
}

func (f *fakeAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

func TestCompleteMapsTranscript(t *testing.T) {
	api := &fakeAPI{reply: "Tell me more about that."}
	client := New(api, Config{})

	tr := convo.Transcript{
		{Role: convo.RoleSystem, Content: "intake assistant"},
		{Role: convo.RoleAssistant, Content: "What is your age?"},
		{Role: convo.RoleUser, Content: "34"},
	}
	reply, err := client.Complete(context.Background(), tr)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Tell me more about that." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if api.last.Model != DefaultModel {
		t.Fatalf("expected default model, got %q", api.last.Model)
	}
	if len(api.last.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(api.last.Messages))
	}
	if api.last.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected system role first, got %q", api.last.Messages[0].Role)
	}
	if api.last.Messages[2].Role != openai.ChatMessageRoleUser || api.last.Messages[2].Content != "34" {
		t.Fatalf("unexpected trailing message %+v", api.last.Messages[2])
	}
}

func TestCompleteDefaultPromptWithoutUserTurns(t *testing.T) {
	api := &fakeAPI{reply: "What brings you here today?"}
	client := New(api, Config{})

	tr := convo.Transcript{{Role: convo.RoleSystem, Content: "intake assistant"}}
	if _, err := client.Complete(context.Background(), tr); err != nil {
		t.Fatalf("complete: %v", err)
	}

	last := api.last.Messages[len(api.last.Messages)-1]
	if last.Role != openai.ChatMessageRoleUser || last.Content != DefaultPrompt {
		t.Fatalf("expected default prompt tail, got %+v", last)
	}
}

func TestCompleteWindowsTranscript(t *testing.T) {
	api := &fakeAPI{reply: "ok"}
	client := New(api, Config{Window: 4})

	tr := convo.Transcript{{Role: convo.RoleSystem, Content: "intake assistant"}}
	for i := 0; i < 10; i++ {
		tr = tr.Append(convo.RoleUser, fmt.Sprintf("answer %d", i))
	}
	if _, err := client.Complete(context.Background(), tr); err != nil {
		t.Fatalf("complete: %v", err)
	}

	msgs := api.last.Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 windowed messages, got %d", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected system turn retained, got %q", msgs[0].Role)
	}
	if msgs[3].Content != "answer 9" {
		t.Fatalf("expected newest turn last, got %q", msgs[3].Content)
	}
}

func TestCompleteWrapsFailures(t *testing.T) {
	api := &fakeAPI{err: errors.New("upstream 500")}
	client := New(api, Config{Timeout: time.Second})

	_, err := client.Complete(context.Background(), convo.Transcript{
		{Role: convo.RoleUser, Content: "hello"},
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCompleteRejectsEmptyCompletion(t *testing.T) {
	api := &fakeAPI{reply: "   "}
	client := New(api, Config{})

	_, err := client.Complete(context.Background(), convo.Transcript{
		{Role: convo.RoleUser, Content: "hello"},
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for blank reply, got %v", err)
	}
}

func TestConfigNormalize(t *testing.T) {
	api := &fakeAPI{reply: "ok"}
	client := New(api, Config{Model: "gpt-4o-mini", Timeout: 5 * time.Second, Window: 8})
	if client.cfg.Model != "gpt-4o-mini" || client.cfg.Timeout != 5*time.Second || client.cfg.Window != 8 {
		t.Fatalf("explicit config overridden: %+v", client.cfg)
	}

	def := New(api, Config{})
	if def.cfg.Model != DefaultModel || def.cfg.Timeout != DefaultTimeout || def.cfg.Window != DefaultWindow {
		t.Fatalf("defaults not applied: %+v", def.cfg)
	}
}
