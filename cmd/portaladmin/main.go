package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	"elearning/internal/app"
	"elearning/internal/config"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file read before the environment")
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*envFile)
	errAndDie(err)

	ctx := context.Background()
	portal, err := app.Open(ctx, cfg)
	errAndDie(err)

	cli := commandLine{
		gateway:    portal.Gateway,
		repo:       portal.Repo,
		coursework: portal.Coursework,
	}
	// Subcommands follow the global flags.
	args := append([]string{os.Args[0]}, flag.Args()...)
	runErr := cli.run(ctx, args)
	_ = portal.Close()

	if runErr != nil {
		if runErr != errHelp {
			glog.Errorf("error: %s", runErr)
		}
		glog.Flush()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		glog.Fatal(err)
	}
}
