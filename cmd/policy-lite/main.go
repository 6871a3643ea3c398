// Package main provides the standalone policy pipeline entry point. It
// reads one JSON batch of section requests from stdin, runs the full
// validate/scrub/triage/assemble pipeline, and writes the bounded page to
// stdout. Audit records go to the structured log on stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/caremap-policy-core/internal/audit"
	"github.com/caremap-policy-core/internal/config"
	"github.com/caremap-policy-core/internal/service"
)

func main() {
	configPath := flag.String("config", "", "directory containing policy.yaml (optional; built-in defaults apply)")
	flag.Parse()

	// A malformed rule table must abort startup, never degrade.
	manager, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatalf("Failed to load policy configuration: %v", err)
	}
	policy := manager.Policy()

	logger := config.NewLogger(policy.Logging)

	pipeline, err := service.NewPipeline(policy, logger, audit.NewLogRecorder(logger))
	if err != nil {
		log.Fatalf("Failed to initialize policy pipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cancelling in-flight request")
		cancel()
	}()

	var requests []service.SectionRequest
	if err := json.NewDecoder(os.Stdin).Decode(&requests); err != nil {
		log.Fatalf("Failed to decode section requests from stdin: %v", err)
	}

	page, err := pipeline.Process(ctx, requests)
	if err != nil {
		log.Fatalf("Policy pipeline failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(page); err != nil {
		log.Fatalf("Failed to encode page: %v", err)
	}
}
