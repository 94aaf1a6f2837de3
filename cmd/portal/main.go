package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"elearning/internal/app"
	"elearning/internal/config"
	"elearning/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file read before the environment")
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*envFile)
	if err != nil {
		glog.Fatalf("error loading configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	portal, err := app.Open(ctx, cfg)
	if err != nil {
		glog.Fatalf("error opening portal: %v", err)
	}
	defer portal.Close()

	if portal.Gateway.NeedsBootstrap(ctx) {
		if _, err := portal.Gateway.BootstrapAdmin(ctx); err != nil {
			glog.Errorf("error bootstrapping administrator: %v", err)
		}
	}

	if err := server.Start(ctx, portal.API()); err != nil {
		glog.Errorf("server stopped: %v", err)
	}
}
