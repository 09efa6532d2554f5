package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/m3rciful/intakebot/convo"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	last  convo.Transcript
}

func (f *fakeCompleter) Complete(_ context.Context, tr convo.Transcript) (string, error) {
	f.calls++
	f.last = tr.Clone()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type sentMessage struct {
	text    string
	options []string
}

type recordingSender struct {
	sent []sentMessage
	log  *[]string
}

func (s *recordingSender) Send(text string, options []string) error {
	s.sent = append(s.sent, sentMessage{text: text, options: options})
	if s.log != nil {
		*s.log = append(*s.log, "send")
	}
	return nil
}

func (s *recordingSender) lastText(t *testing.T) string {
	t.Helper()
	if len(s.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return s.sent[len(s.sent)-1].text
}

// orderedStore records when Upsert happens relative to sends.
type orderedStore struct {
	convo.Store
	log *[]string
}

func (s orderedStore) Upsert(ctx context.Context, chatID int64, tr convo.Transcript) error {
	*s.log = append(*s.log, "persist")
	return s.Store.Upsert(ctx, chatID, tr)
}

func newTestController(model Completer) (*Controller, *convo.MemoryStore) {
	store := convo.NewMemoryStore()
	return NewController(DefaultScript(), store, model), store
}

func TestScriptedFlowReachesModel(t *testing.T) {
	model := &fakeCompleter{reply: "Thanks! Anything else on your mind?"}
	ctl, store := newTestController(model)
	ctx := context.Background()
	script := DefaultScript()

	sender := &recordingSender{}
	if err := ctl.OnSessionStart(ctx, 1, sender); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := sender.lastText(t); !strings.Contains(got, script.Questions[0].Text) {
		t.Fatalf("expected first question, got %q", got)
	}

	answers := []string{"Alice Doe", "34", "Female", "No"}
	for i, answer := range answers {
		sender = &recordingSender{}
		if err := ctl.OnUserMessage(ctx, 1, answer, sender); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if i < len(answers)-1 {
			if got := sender.lastText(t); got != script.Questions[i+1].Text {
				t.Fatalf("after answer %d expected %q, got %q", i, script.Questions[i+1].Text, got)
			}
		}
	}

	if model.calls != 1 {
		t.Fatalf("expected one model call after last scripted answer, got %d", model.calls)
	}
	if got := sender.lastText(t); got != model.reply {
		t.Fatalf("expected model reply, got %q", got)
	}

	tr, found, _ := store.Find(ctx, 1)
	if !found {
		t.Fatal("transcript not persisted")
	}
	// system + 4 questions + 4 answers + model reply
	if len(tr) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(tr))
	}
	if tr[0].Role != convo.RoleSystem {
		t.Fatalf("expected system turn first, got %q", tr[0].Role)
	}
	if tr[len(tr)-1] != (convo.Turn{Role: convo.RoleAssistant, Content: model.reply}) {
		t.Fatalf("unexpected final turn %+v", tr[len(tr)-1])
	}
}

func TestStartIsIdempotent(t *testing.T) {
	ctl, store := newTestController(&fakeCompleter{reply: "ok"})
	ctx := context.Background()
	script := DefaultScript()

	if err := ctl.OnSessionStart(ctx, 5, &recordingSender{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := ctl.OnUserMessage(ctx, 5, "Bob", &recordingSender{}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	before, _, _ := store.Find(ctx, 5)

	sender := &recordingSender{}
	if err := ctl.OnSessionStart(ctx, 5, sender); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if got := sender.lastText(t); got != script.Questions[1].Text {
		t.Fatalf("expected pending question re-sent, got %q", got)
	}

	after, _, _ := store.Find(ctx, 5)
	if len(after) != len(before) {
		t.Fatalf("repeated /start changed transcript: %d -> %d turns", len(before), len(after))
	}
	if after.CountRole(convo.RoleSystem) != 1 {
		t.Fatalf("expected single system turn, got %d", after.CountRole(convo.RoleSystem))
	}
}

func TestModelFailureSendsFallback(t *testing.T) {
	model := &fakeCompleter{err: errors.New("timeout")}
	ctl, store := newTestController(model)
	ctx := context.Background()
	script := DefaultScript()

	ctl.OnSessionStart(ctx, 9, &recordingSender{})
	for _, answer := range []string{"A", "B", "C"} {
		ctl.OnUserMessage(ctx, 9, answer, &recordingSender{})
	}

	sender := &recordingSender{}
	if err := ctl.OnUserMessage(ctx, 9, "D", sender); err != nil {
		t.Fatalf("final answer: %v", err)
	}
	if got := sender.lastText(t); got != script.Fallback {
		t.Fatalf("expected fallback message, got %q", got)
	}

	tr, _, _ := store.Find(ctx, 9)
	last := tr[len(tr)-1]
	if last.Role != convo.RoleUser || last.Content != "D" {
		t.Fatalf("expected user turn kept and no apology appended, got %+v", last)
	}

	// The next message retries the model with the intact transcript.
	model.err = nil
	model.reply = "Back online."
	sender = &recordingSender{}
	if err := ctl.OnUserMessage(ctx, 9, "still there?", sender); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := sender.lastText(t); got != "Back online." {
		t.Fatalf("expected model reply on retry, got %q", got)
	}
	if model.last.CountRole(convo.RoleAssistant) != len(script.Questions) {
		t.Fatalf("apology leaked into model transcript: %d assistant turns", model.last.CountRole(convo.RoleAssistant))
	}
}

func TestRehydrationDerivesQuestionIndex(t *testing.T) {
	ctx := context.Background()
	script := DefaultScript()
	store := convo.NewMemoryStore()

	// Stored state of a chat that answered two questions before a restart.
	tr := convo.Transcript{}.
		Append(convo.RoleSystem, script.Greeting).
		Append(convo.RoleAssistant, script.Questions[0].Text).
		Append(convo.RoleUser, "Alice").
		Append(convo.RoleAssistant, script.Questions[1].Text).
		Append(convo.RoleUser, "34").
		Append(convo.RoleAssistant, script.Questions[2].Text)
	if err := store.Upsert(ctx, 3, tr); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctl := NewController(script, store, &fakeCompleter{reply: "ok"})
	sender := &recordingSender{}
	if err := ctl.OnUserMessage(ctx, 3, "Female", sender); err != nil {
		t.Fatalf("message: %v", err)
	}
	if got := sender.lastText(t); got != script.Questions[3].Text {
		t.Fatalf("expected fourth question after rehydration, got %q", got)
	}

	stored, _, _ := store.Find(ctx, 3)
	if len(stored) != len(tr)+2 {
		t.Fatalf("expected transcript extended by 2 turns, got %d", len(stored))
	}
}

func TestTextBeforeStartBootstraps(t *testing.T) {
	ctl, store := newTestController(&fakeCompleter{reply: "ok"})
	ctx := context.Background()
	script := DefaultScript()

	sender := &recordingSender{}
	if err := ctl.OnUserMessage(ctx, 11, "hello?", sender); err != nil {
		t.Fatalf("message: %v", err)
	}
	if got := sender.lastText(t); !strings.Contains(got, script.Questions[0].Text) {
		t.Fatalf("expected greeting with first question, got %q", got)
	}

	tr, _, _ := store.Find(ctx, 11)
	if tr.CountRole(convo.RoleUser) != 0 {
		t.Fatalf("stray pre-start text counted as an answer: %+v", tr)
	}
}

func TestQuestionIndexBounded(t *testing.T) {
	model := &fakeCompleter{reply: "noted"}
	ctl, _ := newTestController(model)
	ctx := context.Background()
	script := DefaultScript()

	ctl.OnSessionStart(ctx, 2, &recordingSender{})
	for i := 0; i < len(script.Questions)+5; i++ {
		ctl.OnUserMessage(ctx, 2, fmt.Sprintf("msg %d", i), &recordingSender{})
	}

	s := ctl.sessions.acquire(2)
	if s.questionIndex != len(script.Questions) {
		t.Fatalf("question index escaped script bounds: %d", s.questionIndex)
	}
	if model.calls != 6 {
		t.Fatalf("expected model call per open-ended message, got %d", model.calls)
	}
}

func TestPersistHappensAfterSend(t *testing.T) {
	var log []string
	store := convo.NewMemoryStore()
	ctl := NewController(DefaultScript(), orderedStore{Store: store, log: &log}, &fakeCompleter{reply: "ok"})
	ctx := context.Background()

	ctl.OnSessionStart(ctx, 4, &recordingSender{log: &log})
	ctl.OnUserMessage(ctx, 4, "Alice", &recordingSender{log: &log})

	want := []string{"send", "persist", "send", "persist"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, log)
		}
	}
}

func TestOptionsReachSender(t *testing.T) {
	ctl, _ := newTestController(&fakeCompleter{reply: "ok"})
	ctx := context.Background()
	script := DefaultScript()

	ctl.OnSessionStart(ctx, 6, &recordingSender{})
	ctl.OnUserMessage(ctx, 6, "Alice", &recordingSender{})

	sender := &recordingSender{}
	ctl.OnUserMessage(ctx, 6, "34", sender)
	last := sender.sent[len(sender.sent)-1]
	if last.text != script.Questions[2].Text {
		t.Fatalf("expected gender question, got %q", last.text)
	}
	if len(last.options) != len(script.Questions[2].Options) {
		t.Fatalf("expected options forwarded, got %v", last.options)
	}
}

func TestStoreFailureDoesNotBlockChat(t *testing.T) {
	ctl := NewController(DefaultScript(), failingStore{}, &fakeCompleter{reply: "ok"})
	ctx := context.Background()
	script := DefaultScript()

	sender := &recordingSender{}
	if err := ctl.OnSessionStart(ctx, 8, sender); err != nil {
		t.Fatalf("start should survive store failure: %v", err)
	}
	sender = &recordingSender{}
	if err := ctl.OnUserMessage(ctx, 8, "Alice", sender); err != nil {
		t.Fatalf("message should survive store failure: %v", err)
	}
	if got := sender.lastText(t); got != script.Questions[1].Text {
		t.Fatalf("dialog stalled on store failure, got %q", got)
	}
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, int64, convo.Transcript) error {
	return errors.New("connection refused")
}

func (failingStore) Find(context.Context, int64) (convo.Transcript, bool, error) {
	return nil, false, errors.New("connection refused")
}
