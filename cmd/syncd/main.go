package main

import (
	"context"
	"log"

	"github.com/sapatrack/sapatrack/internal/app"
	"github.com/sapatrack/sapatrack/internal/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer a.Close()

	a.Run(ctx)
}
