// Package app wires the intake bot together: configuration, storage, the
// language-model client, and the Telegram runtime.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/intakebot/convo"
	"github.com/m3rciful/intakebot/core/bootstrap"
	coretelegram "github.com/m3rciful/intakebot/core/telegram"
	"github.com/m3rciful/intakebot/core/telegram/commands"
	"github.com/m3rciful/intakebot/core/telegram/router"
	"github.com/m3rciful/intakebot/intake"
	"github.com/m3rciful/intakebot/llm"
)

// App is the assembled bot: ready to produce Telegram run options.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	handlers *intake.Telegram
}

// New bootstraps infrastructure and builds the dialog flow.
func New(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	store := convo.NewPostgresStore(res.DB)
	model := llm.NewFromToken(cfg.OpenAI.APIKey, cfg.OpenAI.LLMConfig())
	ctl := intake.NewController(cfg.Intake, store, model)

	return &App{
		cfg:      cfg,
		db:       res.DB,
		handlers: intake.NewTelegram(ctl),
	}, nil
}

// TelegramRunOptions assembles registry, middleware, and routes for the runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handlers.Start,
		Description: "Begin or resume the intake dialog",
	})

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.TextRoutes(a.handlers, reg, router.TextOptions{})...)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
