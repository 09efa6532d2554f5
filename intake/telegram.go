package intake

import (
	"github.com/m3rciful/intakebot/core/telegram/helpers"
	"github.com/m3rciful/intakebot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// teleSender delivers replies for one update, attaching a reply keyboard when
// the prompt carries options and removing it otherwise.
type teleSender struct {
	c tele.Context
}

func (s teleSender) Send(text string, options []string) error {
	if len(options) == 0 {
		return helpers.SendWithKeyboard(s.c, text, keyboard.RemoveKeyboard())
	}
	return helpers.SendWithKeyboard(s.c, text, keyboard.ReplyButtons(keyboard.ChunkLabels(options, 3)...))
}

// Telegram adapts the Controller to telebot handlers.
type Telegram struct {
	ctl *Controller
}

// NewTelegram wraps a controller for use as bot handlers.
func NewTelegram(ctl *Controller) *Telegram {
	return &Telegram{ctl: ctl}
}

// Start is the /start command handler.
func (t *Telegram) Start(c tele.Context) error {
	ctx := helpers.WithHandler(c, "start")
	return t.ctl.OnSessionStart(ctx, c.Chat().ID, teleSender{c: c})
}

// HandleText feeds a free-form text update into the dialog flow.
func (t *Telegram) HandleText(c tele.Context) error {
	ctx := helpers.WithHandler(c, "conversation")
	return t.ctl.OnUserMessage(ctx, c.Chat().ID, c.Text(), teleSender{c: c})
}
