package main

import (
	"log"
	"os"

	"github.com/arrstack/gatearr/internal/gateway/app"
)

const defaultConfigPath = "config.yaml"

func main() {
	path, explicit := os.LookupEnv("GATEARR_CONFIG")
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := app.LoadConfig(path, explicit)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
