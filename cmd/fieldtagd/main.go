package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"fieldtag/internal/config"
	"fieldtag/internal/daemon"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	cfg, path, exists, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		fmt.Fprintf(os.Stderr, "config file %s not found; using defaults\n", path)
	}

	if err := daemon.Run(context.Background(), cfg); err != nil {
		log.Fatalf("fieldtagd: %v", err)
	}
}
