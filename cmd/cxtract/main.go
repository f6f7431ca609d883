package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dejo1307/cxtract/internal/analyzer"
	"github.com/dejo1307/cxtract/internal/config"
	"github.com/dejo1307/cxtract/internal/server"
)

func main() {
	// Ensure log output goes to stderr, never stdout (MCP uses stdout for JSON-RPC)
	log.SetOutput(os.Stderr)

	ctx := context.Background()

	// Check for one-shot flags
	analyzeMode := false
	verifyMode := false
	cfgPath := "cxtract.yaml"
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--analyze":
			analyzeMode = true
		case "--verify":
			analyzeMode = true
			verifyMode = true
		default:
			cfgPath = arg
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// If config file doesn't exist, use defaults
		fmt.Fprintf(os.Stderr, "warning: %v, using defaults\n", err)
		cfg = config.Default()
	}

	session := analyzer.NewSession(cfg)

	// One-shot analysis mode
	if analyzeMode {
		repoPath, err := filepath.Abs(cfg.Repo)
		if err != nil {
			log.Fatalf("failed to resolve repo path: %v", err)
		}

		report, err := session.Run(ctx, repoPath)
		if err != nil {
			log.Fatalf("analysis failed: %v", err)
		}

		if err := session.WriteArtifacts(repoPath); err != nil {
			log.Fatalf("failed to write artifacts: %v", err)
		}

		fmt.Fprintf(os.Stderr, "\nAnalysis complete:\n")
		fmt.Fprintf(os.Stderr, "  Repository:   %s\n", report.Repo)
		fmt.Fprintf(os.Stderr, "  Files:        %d\n", len(report.Files))
		fmt.Fprintf(os.Stderr, "  Entities:     %d\n", report.Entities)
		fmt.Fprintf(os.Stderr, "  Diagnostics:  %d\n", report.Diagnostics)
		fmt.Fprintf(os.Stderr, "  Duration:     %s\n", report.Duration)
		fmt.Fprintf(os.Stderr, "  Output:       %s\n", filepath.Join(repoPath, cfg.Output.Dir))

		if verifyMode {
			reports, err := session.Verify()
			if err != nil {
				log.Fatalf("verification failed: %v", err)
			}
			clean := true
			for _, r := range reports {
				fmt.Fprintf(os.Stderr, "\n%s: matched %d, missing %d, extra %d\n",
					r.File, r.Stats.Matched, r.Stats.Missing, r.Stats.Extra)
				for _, ref := range r.Missing {
					fmt.Fprintf(os.Stderr, "  missing %s %s %s\n", ref.Kind, ref.Name, ref.Detail)
				}
				for _, ref := range r.Extra {
					fmt.Fprintf(os.Stderr, "  extra   %s %s %s\n", ref.Kind, ref.Name, ref.Detail)
				}
				if !r.Clean() {
					clean = false
				}
			}
			if !clean {
				os.Exit(1)
			}
		}
		os.Exit(0)
	}

	// MCP server mode (default)
	srv, err := server.New(session, cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
