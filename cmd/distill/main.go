// Package main provides the distill command line entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/distill/internal/config"
	"github.com/thebtf/distill/internal/pipeline"
	"github.com/thebtf/distill/internal/recap"
	"github.com/thebtf/distill/internal/report"
	"github.com/thebtf/distill/internal/server"
	"github.com/thebtf/distill/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file path (YAML)")
	input := flag.String("in", "", "Input log file (default: stdin)")
	output := flag.String("out", "", "Output file (default: stdout)")
	format := flag.String("format", "md", "Output format: md or json")
	strategy := flag.String("strategy", "", "Clustering strategy: flat or hierarchical")
	batch := flag.Int("batch", 0, "Batch size override")
	workers := flag.Int("workers", 0, "Worker pool size (0 = NumCPU, negative disables)")
	serve := flag.String("serve", "", "Run HTTP server on this address instead of one-shot mode")
	watch := flag.Bool("watch", false, "Re-run whenever the input file changes (requires -in)")
	withRecap := flag.Bool("recap", false, "Prepend a conversation recap to markdown output")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Report output goes to stdout, so log to stderr
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	cfg.Normalize()

	if *format != "md" && *format != "json" {
		log.Fatal().Str("format", *format).Msg("Unknown output format")
	}
	if *strategy != "" && *strategy != pipeline.StrategyFlat && *strategy != pipeline.StrategyHierarchical {
		log.Fatal().Str("strategy", *strategy).Msg("Unknown clustering strategy")
	}
	if *watch && *input == "" {
		log.Fatal().Msg("-watch requires -in")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	pipe := pipeline.New(cfg, *workers)
	defer pipe.Close()

	opts := pipeline.Options{
		BatchSize: *batch,
		Strategy:  *strategy,
	}

	if *serve != "" {
		svc := server.New(pipe, Version)
		if err := svc.ListenAndServe(ctx, *serve); err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
		return
	}

	out := outputOptions{path: *output, format: *format, recap: *withRecap}

	if *watch {
		runWatch(ctx, pipe, opts, *input, out)
		return
	}

	if err := runOnce(ctx, pipe, opts, *input, out); err != nil {
		log.Fatal().Err(err).Msg("Distillation failed")
	}
}

// outputOptions control where and how the report is written.
type outputOptions struct {
	path   string
	format string
	recap  bool
}

// runOnce reads the input, distills it, and writes the report.
func runOnce(ctx context.Context, pipe *pipeline.Pipeline, opts pipeline.Options, input string, out outputOptions) error {
	text, err := readInput(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	result, err := pipe.Distill(ctx, text, opts)
	if err != nil {
		return err
	}

	renderer := report.NewRenderer()
	var body string
	switch out.format {
	case "json":
		data, err := renderer.JSON(result)
		if err != nil {
			return fmt.Errorf("render json: %w", err)
		}
		body = string(data)
	default:
		body = renderer.Markdown(result)
		if out.recap {
			body = recap.Summarize(text).Markdown() + "\n" + body
		}
		body = report.WithTokenFooter(body)
	}

	return writeOutput(out.path, body)
}

// runWatch runs once immediately, then re-runs on every settled change
// to the input file until the context is cancelled.
func runWatch(ctx context.Context, pipe *pipeline.Pipeline, opts pipeline.Options, input string, out outputOptions) {
	run := func() {
		if err := runOnce(ctx, pipe, opts, input, out); err != nil {
			log.Error().Err(err).Msg("Distillation failed")
		}
	}
	run()

	w, err := watcher.New(input, run)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create watcher")
	}
	if err := w.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start watcher")
	}
	defer w.Stop()

	log.Info().Str("path", input).Msg("Watching for changes")
	<-ctx.Done()
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeOutput(path, body string) error {
	if path == "" {
		_, err := fmt.Fprintln(os.Stdout, body)
		return err
	}
	return os.WriteFile(path, []byte(body), 0o644)
}
