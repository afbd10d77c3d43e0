// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/version"
	"gopkg.in/yaml.v3"
)

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printConfigUsage(stderr)
		return 2
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printConfigUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  streamgate config validate [--config|-f config.yaml]")
}

// runConfigValidate loads the configuration exactly like the daemon does and
// prints the effective result with secrets masked.
func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath string
	fs.StringVar(&configPath, "config", "", "path to config.yaml")
	fs.StringVar(&configPath, "f", "", "path to config.yaml (shorthand)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath = resolveConfigPath(strings.TrimSpace(configPath))
	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		source := configPath
		if source == "" {
			source = "environment"
		}
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", source, err)
		return 1
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
		return 1
	}
	_ = enc.Close()
	return 0
}
