package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/wardenhq/warden/cmd/bot/config"
	"github.com/wardenhq/warden/pkg/logging"
)

func main() {
	a, err := InitializeApp()
	if err != nil {
		log.Fatalln(err)
	}
	config.Parse(a.Log())
	a.Info("Starting application")
	if err := a.Run(); err != nil {
		a.Error("Error running application", slog.String(logging.KeyError, err.Error()))
		os.Exit(1)
	}
}
