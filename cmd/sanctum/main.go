package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/lumensanctum/sanctum/internal/buildinfo"
	"github.com/lumensanctum/sanctum/internal/client/cli"
	"github.com/lumensanctum/sanctum/internal/client/client"
	"github.com/lumensanctum/sanctum/internal/client/config"
	"github.com/lumensanctum/sanctum/internal/cryptox"
	"github.com/lumensanctum/sanctum/internal/logging"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	classifier, err := client.NewRelayClient(cfg.RelayURL, cfg.RelaySecret, cfg.UseStub(), logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(ctx, cfg, classifier, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "client stopped", "error", err)
	}
}

// hashPassword prints the salt and verifier for a privileged account entry
// in the JSON config.
func hashPassword() error {
	pw, err := cli.GetPassword(os.Stderr)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	salt, verifier, err := cryptox.NewVerifier(pw)
	if err != nil {
		return err
	}
	fmt.Printf("\"salt\": %q,\n\"verifier\": %q\n", salt, verifier)
	return nil
}
