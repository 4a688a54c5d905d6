package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"classy/internal/data"
	"classy/internal/extract"
	"classy/internal/ml"
	"classy/internal/sparse"
	"classy/internal/transform"
)

// StreamPredictor encodes text rows from stdin, or from each index path, and
// predicts them one at a time, writing each line as soon as it is known.
func StreamPredictor(ctx context.Context, args Args, cfg Config) error {
	cfg = cfg.withDefaults()

	if args.Vocabulary == "" {
		return fmt.Errorf("%w: missing required option for text input: --vocabulary VOCAB", ErrUsage)
	}

	annotate, err := transform.FixColumnOffset(args.Annotate)
	if err != nil {
		return fmt.Errorf("%w: --annotate: %v", ErrUsage, err)
	}
	feature, err := transform.FixColumnOffset(args.Feature)
	if err != nil {
		return fmt.Errorf("%w: --feature: %v", ErrUsage, err)
	}

	vocab, err := data.LoadVocabulary(args.Vocabulary)
	if err != nil {
		return err
	}

	pipeline, err := loadPipeline(ctx, args.Model, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	s := &stream{
		pipeline:  pipeline,
		vocab:     vocab,
		opts:      transform.Options{Annotate: annotate, Feature: feature},
		idCol:     findIDCol(args),
		makeLabel: LabelResolver(args.Labels),
		cfg:       cfg,
	}
	if args.Scores {
		if s.scorer, err = ml.NewScorer(pipeline); err != nil {
			return err
		}
	}

	dialect := extract.Plain
	if args.CSV {
		dialect = extract.Excel
	}

	if len(args.Index) == 0 {
		rows, err := extract.RowGenerator(cfg.Stdin, dialect)
		if err != nil {
			return err
		}
		return s.predictFrom(ctx, "-", rows)
	}

	for _, file := range args.Index {
		rows, err := extract.RowGeneratorFromFile(file, dialect, args.Encoding)
		if err != nil {
			return err
		}
		err = s.predictFrom(ctx, file, rows)
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type stream struct {
	pipeline  ml.Pipeline
	scorer    *ml.Scorer // nil without --scores
	vocab     *data.Vocabulary
	opts      transform.Options
	idCol     transform.IDColumn
	makeLabel func(int) string
	cfg       Config
}

func (s *stream) predictFrom(ctx context.Context, source string, rows *extract.Rows) error {
	s.cfg.Metrics.InputSourcesInc()

	encoder := transform.NewFeatureEncoder(transform.TransformInput(rows, s.opts), s.vocab, s.idCol)
	width := encoder.Width()
	n := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		textID, features, err := encoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: row %d: %w", source, rows.Count(), err)
		}
		s.cfg.Metrics.InputRowsAdd(1)

		if err := s.predictRow(ctx, textID, sparse.Single(features, width)); err != nil {
			return fmt.Errorf("%s: row %d: %w", source, rows.Count(), err)
		}
		n++
	}

	s.cfg.Logger.Info().Str("source", source).Int("predictions", n).Msg("Stream prediction complete")
	return nil
}

func (s *stream) predictRow(ctx context.Context, textID string, X *sparse.CSR) error {
	start := time.Now()
	prediction, err := s.pipeline.Predict(ctx, X)
	if err != nil {
		return fmt.Errorf("predict failed: %w", err)
	}
	s.cfg.Metrics.PredictLatencyObserve(time.Since(start).Seconds())

	if len(prediction) != 1 {
		panic(fmt.Sprintf("not a single prediction: (%d,)", len(prediction)))
	}

	line := textID + "\t" + s.makeLabel(prediction[0])
	if s.scorer != nil {
		scores, err := s.scorer.Score(ctx, X)
		if err != nil {
			return fmt.Errorf("%s failed: %w", s.scorer.Method, err)
		}
		if len(scores) == 0 {
			return fmt.Errorf("%s returned no scores", s.scorer.Method)
		}
		line += "\t" + FormatScores(scores[0])
		s.cfg.Metrics.ScoresAdd(s.scorer.Method, 1)
	}

	if _, err := io.WriteString(s.cfg.Stdout, line+"\n"); err != nil {
		return fmt.Errorf("failed to write prediction: %w", err)
	}
	s.cfg.Metrics.PredictionsAdd(1)
	return nil
}

// findIDCol applies the id column precedence: no id, second, last, first.
func findIDCol(args Args) transform.IDColumn {
	switch {
	case args.NoID:
		return transform.NoID()
	case args.IDSecond:
		return transform.Column(1)
	case args.IDLast:
		return transform.Column(-1)
	default:
		return transform.Column(0)
	}
}
