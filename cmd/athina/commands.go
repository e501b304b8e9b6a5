package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/internal/config"
)

func logInference(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	file := fs.String("file", "", "JSON file holding the inference (default stdin)")
	cfgPath := fs.String("config", "", "path to an athina YAML config file")
	env := fs.String("environment", "", "environment to log under")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in, err := readInference(*file, stdin)
	if err != nil {
		return err
	}
	if *env != "" {
		in.Environment = *env
	}
	if err := in.Validate(); err != nil {
		return err
	}

	client, err := newClient(*cfgPath)
	if err != nil {
		return err
	}
	if err := client.LogInference(ctx, in); err != nil {
		client.Shutdown(ctx)
		return err
	}
	if err := client.Shutdown(ctx); err != nil {
		return err
	}
	if stats := client.Stats(); stats.Errors > 0 {
		return fmt.Errorf("inference was not accepted (%d delivery errors)", stats.Errors)
	}
	fmt.Fprintln(stdout, "inference logged")
	return nil
}

func readInference(path string, stdin io.Reader) (*athina.Inference, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var in athina.Inference
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decoding inference: %w", err)
	}
	return &in, nil
}

func sendFeedback(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("feedback", flag.ContinueOnError)
	ref := fs.String("ref", "", "external reference id of the inference")
	score := fs.Int("score", 0, "feedback value, e.g. 1 for positive and -1 for negative")
	comment := fs.String("comment", "", "optional comment")
	cfgPath := fs.String("config", "", "path to an athina YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fb := &athina.UserFeedback{ExternalReferenceID: *ref, UserFeedback: *score}
	if *comment != "" {
		fb.Comment = comment
	}
	if err := fb.Validate(); err != nil {
		return err
	}

	client, err := newClient(*cfgPath)
	if err != nil {
		return err
	}
	defer client.Shutdown(ctx)
	if err := client.LogUserFeedback(ctx, fb); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "feedback recorded")
	return nil
}

func showConfig(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to an athina YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *cfgPath
	if path == "" {
		path = config.FindFile()
	}
	f, err := config.Load(path)
	if err != nil {
		return err
	}

	source := path
	if source == "" {
		source = "(environment only)"
	}
	baseURL := f.BaseURL
	if baseURL == "" {
		baseURL = athina.DefaultBaseURL
	}
	environment := f.Environment
	if environment == "" {
		environment = athina.DefaultEnvironment
	}
	fmt.Fprintf(stdout, "source:      %s\n", source)
	fmt.Fprintf(stdout, "api_key:     %s\n", athina.MaskAPIKey(f.APIKey))
	fmt.Fprintf(stdout, "base_url:    %s\n", baseURL)
	fmt.Fprintf(stdout, "environment: %s\n", environment)
	fmt.Fprintf(stdout, "debug:       %t\n", f.Debug)
	return nil
}
