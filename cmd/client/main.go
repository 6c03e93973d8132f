package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/jimrelay/internal/client/cli"
	"github.com/dmitrijs2005/jimrelay/internal/client/config"
	"github.com/dmitrijs2005/jimrelay/internal/logging"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(os.Stderr, "warn", "text")
	if err != nil {
		log.Fatalf("%v", err)
	}

	app := cli.NewApp(cfg, os.Stdin, os.Stdout, logger)
	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
