package predict

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"time"

	"classy/internal/data"
	"classy/internal/ml"
)

// BatchPredictor predicts all rows of a single inverted index file with one
// pipeline call and writes the results in row order.
func BatchPredictor(ctx context.Context, args Args, cfg Config) error {
	cfg = cfg.withDefaults()

	switch {
	case len(args.Index) == 0:
		return fmt.Errorf("%w: missing input data file (inverted index)", ErrUsage)
	case len(args.Index) > 1:
		return fmt.Errorf("%w: more than one input data file (inverted index)", ErrUsage)
	}

	idx, err := data.LoadIndex(args.Index[0])
	if err != nil {
		return err
	}
	cfg.Metrics.InputSourcesInc()
	cfg.Metrics.InputRowsAdd(data.GetNRows(idx))

	pipeline, err := loadPipeline(ctx, args.Model, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	X := idx.ToCSR()

	start := time.Now()
	predictions, err := pipeline.Predict(ctx, X)
	if err != nil {
		return fmt.Errorf("predict failed: %w", err)
	}
	cfg.Metrics.PredictLatencyObserve(time.Since(start).Seconds())

	var scores [][]float64
	if args.Scores {
		scorer, err := ml.NewScorer(pipeline)
		if err != nil {
			return err
		}
		if scores, err = scorer.Score(ctx, X); err != nil {
			return fmt.Errorf("%s failed: %w", scorer.Method, err)
		}
		cfg.Metrics.ScoresAdd(scorer.Method, len(scores))
	}

	textIDs := getOrMakeTextIDs(idx)
	makeLabel := LabelResolver(args.Labels)

	n := min(len(predictions), len(textIDs))
	if args.Scores {
		n = min(n, len(scores))
	}

	w := bufio.NewWriter(cfg.Stdout)
	for i := 0; i < n; i++ {
		if args.Scores {
			fmt.Fprintf(w, "%s\t%s\t%s\n", textIDs[i], makeLabel(predictions[i]), FormatScores(scores[i]))
		} else {
			fmt.Fprintf(w, "%s\t%s\n", textIDs[i], makeLabel(predictions[i]))
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	cfg.Metrics.PredictionsAdd(n)

	cfg.Logger.Info().
		Str("index", args.Index[0]).
		Int("rows", X.NRows).
		Int("features", X.NCols).
		Int("predictions", n).
		Msg("Batch prediction complete")

	return nil
}

// getOrMakeTextIDs returns the ids stored in the index or 1..N.
func getOrMakeTextIDs(idx *data.Index) []string {
	if len(idx.TextIDs) > 0 {
		return idx.TextIDs
	}
	n := data.GetNRows(idx)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}
	return ids
}
