package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"classy/internal/sparse"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// RemotePipeline calls a scoring service over HTTP.
//
//	GET  <base>                    -> Description
//	POST <base>/predict            -> []int
//	POST <base>/predict_proba      -> [][]float64
//	POST <base>/decision_function  -> [][]float64 or []float64
//
// Every answer is wrapped in a Response.
type RemotePipeline struct {
	rest *resty.Client
	base string
	desc Description
	log  zerolog.Logger
}

// NewRemote connects to the service at base and fetches its description.
func NewRemote(ctx context.Context, base string, opts Options) (*RemotePipeline, error) {
	r := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetHeader("Accept", "application/json")

	p := &RemotePipeline{
		rest: r,
		base: strings.TrimRight(base, "/"),
		log:  opts.Logger.With().Str("backend", "remote").Logger(),
	}

	var out Response
	resp, err := r.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get(p.base)
	if err != nil {
		return nil, fmt.Errorf("describe request failed: %w", err)
	}
	if resp.IsError() || out.Error != "" {
		return nil, fmt.Errorf("describe failed: status %d: %s", resp.StatusCode(), errorText(out, resp))
	}
	if err := json.Unmarshal(out.Result, &p.desc); err != nil {
		return nil, fmt.Errorf("failed to parse description: %w", err)
	}
	if p.desc.Name == "" {
		p.desc.Name = p.base
	}

	return p, nil
}

func (p *RemotePipeline) Name() string {
	return p.desc.Name
}

func (p *RemotePipeline) Capabilities() Capabilities {
	return p.desc.Capabilities
}

// Close is a no-op; connections are pooled by the HTTP client.
func (p *RemotePipeline) Close() error {
	return nil
}

func (p *RemotePipeline) Predict(ctx context.Context, X *sparse.CSR) ([]int, error) {
	raw, err := p.call(ctx, "predict", X)
	if err != nil {
		return nil, err
	}
	return parsePredictions(raw)
}

func (p *RemotePipeline) PredictProba(ctx context.Context, X *sparse.CSR) ([][]float64, error) {
	if !p.desc.Probability {
		return nil, fmt.Errorf("%s: %s: %w", p.Name(), MethodProba, ErrNotSupported)
	}
	raw, err := p.call(ctx, MethodProba, X)
	if err != nil {
		return nil, err
	}
	return parseScores(raw)
}

func (p *RemotePipeline) DecisionFunction(ctx context.Context, X *sparse.CSR) ([][]float64, error) {
	if !p.desc.DecisionFunction {
		return nil, fmt.Errorf("%s: %s: %w", p.Name(), MethodDecision, ErrNotSupported)
	}
	raw, err := p.call(ctx, MethodDecision, X)
	if err != nil {
		return nil, err
	}
	return parseScores(raw)
}

func (p *RemotePipeline) call(ctx context.Context, op string, X *sparse.CSR) (json.RawMessage, error) {
	var out Response
	resp, err := p.rest.R().
		SetContext(ctx).
		SetBody(newMatrixRequest("", X)).
		SetResult(&out).
		SetError(&out).
		Post(p.base + "/" + op)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}

	if resp.StatusCode() == http.StatusNotImplemented {
		return nil, fmt.Errorf("%s: %s: %w", p.Name(), op, ErrNotSupported)
	}
	if resp.IsError() || out.Error != "" {
		p.log.Error().
			Str("op", op).
			Int("status", resp.StatusCode()).
			Int("rows", X.NRows).
			Str("error", errorText(out, resp)).
			Msg("Remote pipeline call failed")
		return nil, fmt.Errorf("%s failed: status %d: %s", op, resp.StatusCode(), errorText(out, resp))
	}

	p.log.Debug().Str("op", op).Int("rows", X.NRows).Msg("Remote pipeline call")
	return out.Result, nil
}

func errorText(out Response, resp *resty.Response) string {
	if out.Error != "" {
		return out.Error
	}
	return resp.String()
}
