// Package intake drives the scripted question flow and its handoff to the
// language model once the script is exhausted.
package intake

import "fmt"

// Question is one scripted prompt. Options, when present, are offered as a
// reply keyboard but free-form answers are accepted all the same.
type Question struct {
	Text    string   `yaml:"text"`
	Options []string `yaml:"options"`
}

// Script is the fixed part of the dialog: a greeting, an ordered question
// list, and the apology sent when the model cannot answer.
type Script struct {
	Greeting  string     `yaml:"greeting"`
	Fallback  string     `yaml:"fallback"`
	Questions []Question `yaml:"questions"`
}

// Validate checks that the script can actually drive a dialog.
func (s *Script) Validate() error {
	if s.Greeting == "" {
		return fmt.Errorf("intake: script greeting is empty")
	}
	if len(s.Questions) == 0 {
		return fmt.Errorf("intake: script has no questions")
	}
	for i, q := range s.Questions {
		if q.Text == "" {
			return fmt.Errorf("intake: question %d has no text", i)
		}
	}
	if s.Fallback == "" {
		s.Fallback = DefaultFallback
	}
	return nil
}

// DefaultFallback is used when the script configures no apology message.
const DefaultFallback = "Sorry, I could not process that right now. Please try again."

// DefaultScript is the built-in insurance intake used when the configuration
// supplies no questions of its own.
func DefaultScript() Script {
	return Script{
		Greeting: "Hi! I will ask you a few questions to get started.",
		Fallback: DefaultFallback,
		Questions: []Question{
			{Text: "What is your full name?"},
			{Text: "What is your age?"},
			{Text: "What is your gender?", Options: []string{"Male", "Female", "Other"}},
			{Text: "Do you currently have health insurance?", Options: []string{"Yes", "No"}},
		},
	}
}
