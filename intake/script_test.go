package intake

import (
	"fmt"
	"testing"

	"github.com/m3rciful/intakebot/convo"
)

func TestScriptValidate(t *testing.T) {
	s := DefaultScript()
	if err := s.Validate(); err != nil {
		t.Fatalf("default script invalid: %v", err)
	}

	empty := Script{Greeting: "hi"}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected error for script without questions")
	}

	noGreeting := Script{Questions: []Question{{Text: "q"}}}
	if err := noGreeting.Validate(); err == nil {
		t.Fatal("expected error for script without greeting")
	}

	blank := Script{Greeting: "hi", Questions: []Question{{Text: "q"}, {}}}
	if err := blank.Validate(); err == nil {
		t.Fatal("expected error for blank question text")
	}

	noFallback := Script{Greeting: "hi", Questions: []Question{{Text: "q"}}}
	if err := noFallback.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if noFallback.Fallback != DefaultFallback {
		t.Fatalf("expected default fallback filled in, got %q", noFallback.Fallback)
	}
}

func TestSessionHydrateCapsIndex(t *testing.T) {
	script := DefaultScript()
	s := &Session{ChatID: 1}

	tr := convo.Transcript{}.Append(convo.RoleSystem, script.Greeting)
	for i := 0; i < 7; i++ {
		tr = tr.Append(convo.RoleUser, fmt.Sprintf("answer %d", i))
	}
	s.hydrate(&script, tr)
	if s.questionIndex != len(script.Questions) {
		t.Fatalf("expected index capped at %d, got %d", len(script.Questions), s.questionIndex)
	}
	if !s.openEnded(&script) {
		t.Fatal("expected open-ended session after more answers than questions")
	}
}
