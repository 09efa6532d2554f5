package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/m3rciful/intakebot/app"
	corecmd "github.com/m3rciful/intakebot/core/cmd"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(cfg.(*app.Config))
		},
	})
	if err != nil {
		log.Fatalf("intakebot: %v", err)
	}
}
