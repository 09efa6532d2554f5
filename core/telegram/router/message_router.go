package router

import (
	"time"

	tg "github.com/m3rciful/intakebot/core/telegram"
	"github.com/m3rciful/intakebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the minimal interface for a dialog engine that consumes
// free-form text updates.
type Conversation interface {
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for text routing. Slash commands found in the
// registry win over the conversation engine; everything else is treated as
// dialog input.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if conv != nil {
			return handleWithSummary(c, "conversation", start, "", "", func() error {
				return conv.HandleText(c)
			})
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
