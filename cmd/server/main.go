package main

import (
	"context"
	"log"

	"github.com/sundayezeilo/shortlinks/internal/app"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// Redis, the pool and the trace exporter close even if one fails.
		if err := application.Shutdown(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	// Blocks until SIGINT/SIGTERM or a listener error.
	return application.Start(ctx)
}
