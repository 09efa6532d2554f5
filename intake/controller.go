package intake

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/intakebot/convo"
	"github.com/m3rciful/intakebot/core/logger"
)

// Completer produces the next assistant reply from a transcript.
type Completer interface {
	Complete(ctx context.Context, transcript convo.Transcript) (string, error)
}

// Sender delivers one outgoing message. Options, when non-empty, are offered
// as quick-reply choices; an empty option list removes any previous keyboard.
type Sender interface {
	Send(text string, options []string) error
}

// Controller owns the dialog flow: it holds one session per chat, serializes
// updates within a chat, and persists the transcript after every exchange.
type Controller struct {
	script   Script
	store    convo.Store
	model    Completer
	sessions *sessions
}

// NewController wires the dialog flow together.
func NewController(script Script, store convo.Store, model Completer) *Controller {
	return &Controller{
		script:   script,
		store:    store,
		model:    model,
		sessions: newSessions(),
	}
}

// OnSessionStart handles /start. A fresh chat gets the greeting and the first
// question; a chat that already started is nudged with its current prompt and
// nothing is appended, so repeated /start never duplicates turns.
func (ctl *Controller) OnSessionStart(ctx context.Context, chatID int64, send Sender) error {
	s := ctl.sessions.acquire(chatID)
	s.lock()
	defer s.unlock()
	ctl.ensureHydrated(ctx, s)

	if len(s.transcript) > 0 {
		text, options := ctl.currentPrompt(s)
		logger.Intake.LogAttrs(ctx, slog.LevelInfo, "session resumed",
			slog.String("event", "session.start"),
			slog.Int64("chat_id", chatID),
			slog.Int("question_index", s.questionIndex),
			slog.Int("questions_total", len(ctl.script.Questions)),
			slog.Int("turns", len(s.transcript)),
		)
		return send.Send(text, options)
	}

	first := ctl.script.Questions[0]
	s.transcript = s.transcript.Append(convo.RoleSystem, ctl.script.Greeting)
	s.transcript = s.transcript.Append(convo.RoleAssistant, first.Text)

	logger.Intake.LogAttrs(ctx, slog.LevelInfo, "session started",
		slog.String("event", "session.start"),
		slog.Int64("chat_id", chatID),
		slog.Int("questions_total", len(ctl.script.Questions)),
	)

	sendErr := send.Send(ctl.script.Greeting+"\n\n"+first.Text, first.Options)
	ctl.persist(ctx, s)
	return sendErr
}

// OnUserMessage handles one free-form text update. The user turn is appended
// first, then the reply is computed and appended, then sent, then the whole
// transcript is persisted. A text message before any /start bootstraps the
// session as /start would; the stray text is not counted as an answer.
func (ctl *Controller) OnUserMessage(ctx context.Context, chatID int64, text string, send Sender) error {
	s := ctl.sessions.acquire(chatID)
	s.lock()
	defer s.unlock()
	ctl.ensureHydrated(ctx, s)

	if len(s.transcript) == 0 {
		logger.Intake.LogAttrs(ctx, slog.LevelDebug, "text before start",
			slog.String("event", "message"),
			slog.Int64("chat_id", chatID),
		)
		first := ctl.script.Questions[0]
		s.transcript = s.transcript.Append(convo.RoleSystem, ctl.script.Greeting)
		s.transcript = s.transcript.Append(convo.RoleAssistant, first.Text)
		sendErr := send.Send(ctl.script.Greeting+"\n\n"+first.Text, first.Options)
		ctl.persist(ctx, s)
		return sendErr
	}

	s.transcript = s.transcript.Append(convo.RoleUser, text)
	if s.questionIndex < len(ctl.script.Questions) {
		s.questionIndex++
	}

	var (
		reply   string
		options []string
	)
	if !s.openEnded(&ctl.script) {
		q := ctl.script.Questions[s.questionIndex]
		reply, options = q.Text, q.Options
		s.transcript = s.transcript.Append(convo.RoleAssistant, reply)
	} else {
		start := time.Now()
		completion, err := ctl.model.Complete(ctx, s.transcript)
		if err != nil {
			logger.Intake.LogAttrs(ctx, slog.LevelWarn, "model fallback",
				slog.String("event", "message"),
				slog.Int64("chat_id", chatID),
				slog.Int("turns", len(s.transcript)),
				slog.Duration("duration", logger.Took(start)),
				slog.String("err", err.Error()),
			)
			// The user turn stays; the apology is not part of the transcript.
			reply = ctl.script.Fallback
		} else {
			reply = completion
			s.transcript = s.transcript.Append(convo.RoleAssistant, reply)
		}
	}

	logger.Intake.LogAttrs(ctx, slog.LevelDebug, "message handled",
		slog.String("event", "message"),
		slog.Int64("chat_id", chatID),
		slog.Int("question_index", s.questionIndex),
		slog.Int("questions_total", len(ctl.script.Questions)),
		slog.Int("turns", len(s.transcript)),
	)

	sendErr := send.Send(reply, options)
	ctl.persist(ctx, s)
	return sendErr
}

// currentPrompt returns the message to re-send on a repeated /start.
func (ctl *Controller) currentPrompt(s *Session) (string, []string) {
	if !s.openEnded(&ctl.script) {
		q := ctl.script.Questions[s.questionIndex]
		return q.Text, q.Options
	}
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Role == convo.RoleAssistant {
			return s.transcript[i].Content, nil
		}
	}
	return ctl.script.Greeting, nil
}

// ensureHydrated loads the stored transcript into a freshly created session.
// A store read failure degrades to an empty session instead of blocking the
// chat.
func (ctl *Controller) ensureHydrated(ctx context.Context, s *Session) {
	if s.hydrated {
		return
	}
	transcript, found, err := ctl.store.Find(ctx, s.ChatID)
	if err != nil {
		logger.Intake.LogAttrs(ctx, slog.LevelError, "rehydrate failed",
			slog.String("event", "rehydrate"),
			slog.Int64("chat_id", s.ChatID),
			slog.String("err", err.Error()),
		)
		s.hydrated = true
		return
	}
	if !found {
		s.hydrated = true
		return
	}
	s.hydrate(&ctl.script, transcript)
	logger.Intake.LogAttrs(ctx, slog.LevelInfo, "session rehydrated",
		slog.String("event", "rehydrate"),
		slog.Bool("rehydrated", true),
		slog.Int64("chat_id", s.ChatID),
		slog.Int("question_index", s.questionIndex),
		slog.Int("turns", len(s.transcript)),
	)
}

// persist upserts the transcript. Write failures are logged and swallowed so
// the chat keeps moving; the next exchange retries with the full transcript.
func (ctl *Controller) persist(ctx context.Context, s *Session) {
	if err := ctl.store.Upsert(ctx, s.ChatID, s.transcript); err != nil {
		logger.Intake.LogAttrs(ctx, slog.LevelError, "persist failed",
			slog.String("event", "persist"),
			slog.Int64("chat_id", s.ChatID),
			slog.Int("turns", len(s.transcript)),
			slog.String("err", err.Error()),
		)
	}
}
