package main

import (
	"log/slog"

	"github.com/cadenzahq/cadenza/pkg/cadenza"
)

func main() {

	//you may do your own logger setup here or use this default one with slog
	cadenza.SetupLogger()

	if err := cadenza.Start(nil); err != nil {
		slog.Error("Engine exited with error", "error", err)
	}
}
