// Package main provides the athina CLI for logging inferences and user
// feedback from scripts and shells.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/jdziat/athina-go"
)

const timeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	// A missing .env is fine; the environment alone may be enough.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Error: reading .env: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	switch args[0] {
	case "log":
		err = logInference(ctx, args[1:], stdin, stdout)
	case "feedback":
		err = sendFeedback(ctx, args[1:], stdout)
	case "config":
		err = showConfig(args[1:], stdout)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "athina version %s\n", athina.Version)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newClient builds a client from .athina.yaml (or -config) and ATHINA_*
// variables.
func newClient(configPath string, opts ...athina.ConfigOption) (*athina.Client, error) {
	return athina.NewFromFile(configPath, opts...)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `athina - log LLM inferences and user feedback to Athina

Usage:
  athina <command> [flags]

Commands:
  log        Log an inference read as JSON from -file or stdin
  feedback   Attach user feedback to a logged inference
  config     Print the resolved configuration with the API key masked
  version    Print version information
  help       Show this help message

Environment Variables:
  ATHINA_API_KEY      Athina API key (required)
  ATHINA_BASE_URL     Override the API base URL
  ATHINA_ENVIRONMENT  Default environment for logged inferences
  ATHINA_DEBUG        Set to "true" for debug logging

A .env file in the working directory is loaded first. Settings may also be
kept in .athina.yaml in the working directory or one of its parents.`)
}
