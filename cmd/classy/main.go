package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"classy/internal/cfg"
	"classy/internal/logging"
	"classy/internal/metrics"
	"classy/internal/ml"
	"classy/internal/predict"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// PredictCmd holds the flags of "classy predict".
type PredictCmd struct {
	Text       bool     `arg:"--text" help:"read raw text rows instead of an inverted index"`
	Index      []string `arg:"--index" placeholder:"PATH" help:"inverted index file, or text files with --text (default: stdin)"`
	Model      string   `arg:"--model,required" placeholder:"PATH" help:"fitted pipeline: .yaml/.json linear model, .pkl/.joblib file or http(s) URL"`
	Scores     bool     `arg:"--scores" help:"append confidence scores to each line"`
	Label      []string `arg:"--label" placeholder:"NAME" help:"display names of the label indices, in order"`
	Vocabulary string   `arg:"--vocabulary" placeholder:"VOCAB" help:"vocabulary file (required with --text)"`
	CSV        bool     `arg:"--csv" help:"comma separated text input instead of tab separated"`
	Encoding   string   `arg:"--encoding" default:"utf-8" help:"encoding of text input files"`
	Annotate   []int    `arg:"--annotate" placeholder:"COL" help:"1-based columns to annotate; use --annotate=-1 for columns from the end"`
	Feature    []int    `arg:"--feature" placeholder:"COL" help:"1-based columns holding pre-extracted features"`
	NoID       bool     `arg:"--no_id" help:"rows have no id column; number them from 1"`
	IDSecond   bool     `arg:"--id_second" help:"the id is in the second column"`
	IDLast     bool     `arg:"--id_last" help:"the id is in the last column"`
}

// Args are the command line arguments of classy.
type Args struct {
	Predict *PredictCmd `arg:"subcommand:predict" help:"predict text labels using a model and vocabulary"`

	Config      string `arg:"--config" placeholder:"PATH" help:"YAML settings file (default: $CLASSY_CONFIG)"`
	LogLevel    string `arg:"--log-level" placeholder:"LEVEL" help:"trace, debug, info, warn or error"`
	LogFormat   string `arg:"--log-format" placeholder:"FORMAT" help:"console or json"`
	MetricsFile string `arg:"--metrics-file" placeholder:"PATH" help:"write run metrics in Prometheus text format on exit"`
}

func (Args) Description() string {
	return "classy predicts text labels with a fitted classification pipeline."
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr})

	var args Args
	parser, err := arg.NewParser(arg.Config{Program: "classy"}, &args)
	if err != nil {
		log.Error().Err(err).Msg("Invalid argument definition")
		return exitError
	}

	if err := parser.Parse(argv); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			parser.WriteHelpForSubcommand(stdout, parser.SubcommandNames()...)
			return exitOK
		}
		parser.WriteUsageForSubcommand(stderr, parser.SubcommandNames()...)
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	if args.Predict == nil {
		parser.WriteUsage(stderr)
		fmt.Fprintln(stderr, "error: missing command: predict")
		return exitUsage
	}

	settings, err := cfg.Load(args.Config, cfg.Overrides{
		LogLevel:    args.LogLevel,
		LogFormat:   args.LogFormat,
		MetricsFile: args.MetricsFile,
	})
	if errors.Is(err, cfg.ErrInvalidSettings) {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	if err != nil {
		log.Error().Err(err).Msg("Config load failed")
		return exitError
	}

	logger, err := logging.New(settings.LogLevel, settings.LogFormat, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if settings.MetricsFile != "" {
		defer func() {
			if err := m.WriteTextfile(settings.MetricsFile); err != nil {
				logger.Error().Err(err).Str("path", settings.MetricsFile).Msg("Failed to write metrics")
			}
		}()
	}

	err = predict.PredictLabels(ctx, args.Predict.toArgs(), predict.Config{
		Stdin:   stdin,
		Stdout:  stdout,
		Logger:  logger,
		Metrics: metrics.NewWrapper(m),
		Pipeline: ml.Options{
			Timeout:    settings.ModelTimeout,
			Retries:    settings.RemoteRetries,
			PythonPath: settings.PythonPath,
		},
	})

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, predict.ErrUsage):
		parser.WriteUsageForSubcommand(stderr, parser.SubcommandNames()...)
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	default:
		logger.Error().Err(err).Str("model", args.Predict.Model).Msg("Prediction failed")
		return exitError
	}
}

func (c *PredictCmd) toArgs() predict.Args {
	return predict.Args{
		Text:       c.Text,
		Index:      c.Index,
		Model:      c.Model,
		Scores:     c.Scores,
		Labels:     c.Label,
		Vocabulary: c.Vocabulary,
		CSV:        c.CSV,
		Encoding:   c.Encoding,
		Annotate:   c.Annotate,
		Feature:    c.Feature,
		NoID:       c.NoID,
		IDSecond:   c.IDSecond,
		IDLast:     c.IDLast,
	}
}
